package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ctpdaily/internal/product"
	"ctpdaily/internal/timeutil"

	"gopkg.in/yaml.v3"
)

// Input source kinds understood by the upstream orbital finder.
const (
	SourceHIR1B = "HIR1B"
	SourceCFSR  = "CFSR"
	SourcePTMSX = "PTMSX"
)

type Config struct {
	// MAINTAINER NOTE: fields shared between flags and the YAML file are merged
	// in MergeFile with flag > environment > file > default precedence. Keep
	// internal/cli flag wiring in sync when adding fields here.
	Processing Processing   `yaml:"processing"`
	Sources    InputSources `yaml:"input_sources"`
	Catalog    Catalog      `yaml:"catalog"`
	Software   Software     `yaml:"software"`
	Policy     Policy       `yaml:"policy"`
	Output     Output       `yaml:"-"`
	Runtime    Runtime      `yaml:"runtime"`
}

type Processing struct {
	// Satellite is the platform to process, e.g. noaa-18 (see --satellite).
	Satellite string `yaml:"satellite"`

	// Start and End are the first and last day to process (see --start, --end).
	// Accepted forms: YYYY-MM-DD, YYYY-JJJ, DYYJJJ. End is inclusive and
	// defaults to Start.
	Start string `yaml:"-"`
	End   string `yaml:"-"`

	// Interval is derived from Start and End by Validate.
	Interval timeutil.Interval `yaml:"-"`

	// Deliveries is the software lineage the contexts are built for.
	Deliveries product.Deliveries `yaml:"deliveries"`

	// PartialDays also emits contexts for days the interval only partly covers
	// (see --partial-days).
	PartialDays bool `yaml:"partial_days"`

	// Single processes only the first context of the interval (see --single).
	Single bool `yaml:"-"`
}

// InputSources locates the lists of upstream input files per source kind. It
// is constructed once at startup and handed to the components that need it.
type InputSources struct {
	// Collection names the archive each source kind is drawn from
	// (e.g. HIR1B: ILIAD). Informational only.
	Collection map[string]string `yaml:"collection"`

	// InputData maps a source kind to the path of its datalist. The token
	// {satellite} is replaced with the satellite id.
	InputData map[string]string `yaml:"input_data"`
}

// Datalist returns the datalist path for kind and satellite.
func (s InputSources) Datalist(kind, satellite string) (string, error) {
	tmpl, ok := s.InputData[kind]
	if !ok || strings.TrimSpace(tmpl) == "" {
		return "", fmt.Errorf("no input data configured for %s", kind)
	}
	return strings.ReplaceAll(tmpl, "{satellite}", satellite), nil
}

type Catalog struct {
	// Kind selects the catalog implementation: file or sqlite.
	Kind string `yaml:"kind"`

	// Root is the directory products are stored under (see --catalog-root).
	Root string `yaml:"root"`

	// Index is the SQLite index path for kind=sqlite. Defaults to
	// <root>/catalog.db.
	Index string `yaml:"index"`
}

type Software struct {
	// Root is the directory holding delivered software as <root>/<name>/<id>.
	Root string `yaml:"root"`

	// Deliveries lists explicit delivery locations; they take precedence over
	// the Root convention.
	Deliveries []DeliveryEntry `yaml:"deliveries"`

	// NCCopy is the nccopy executable used to compress outputs.
	NCCopy string `yaml:"nccopy"`

	// CompressionLevel is the deflate level passed to nccopy (1-9).
	CompressionLevel int `yaml:"compression_level"`

	// AllowUncompressed keeps outputs uncompressed when nccopy is unavailable.
	AllowUncompressed bool `yaml:"allow_uncompressed"`
}

type DeliveryEntry struct {
	Name    string `yaml:"name"`
	ID      string `yaml:"id"`
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
}

// Window is the input locator policy: how far the day is padded before the
// upstream query and how many neighbouring-day orbits survive pruning.
type Window struct {
	PadBefore    time.Duration `yaml:"pad_before"`
	PadAfter     time.Duration `yaml:"pad_after"`
	KeepPrevious int           `yaml:"keep_previous"`
	KeepNext     int           `yaml:"keep_next"`
}

// WindowOverride replaces individual Window fields for one satellite.
type WindowOverride struct {
	PadBefore    *time.Duration `yaml:"pad_before"`
	PadAfter     *time.Duration `yaml:"pad_after"`
	KeepPrevious *int           `yaml:"keep_previous"`
	KeepNext     *int           `yaml:"keep_next"`
}

type Policy struct {
	Window     `yaml:",inline"`
	Satellites map[string]WindowOverride `yaml:"satellites"`
}

// For returns the effective window for satellite.
func (p Policy) For(satellite string) Window {
	w := p.Window
	o, ok := p.Satellites[satellite]
	if !ok {
		return w
	}
	if o.PadBefore != nil {
		w.PadBefore = *o.PadBefore
	}
	if o.PadAfter != nil {
		w.PadAfter = *o.PadAfter
	}
	if o.KeepPrevious != nil {
		w.KeepPrevious = *o.KeepPrevious
	}
	if o.KeepNext != nil {
		w.KeepNext = *o.KeepNext
	}
	return w
}

func (w Window) validate(name string) error {
	if w.PadBefore < 0 || w.PadAfter < 0 {
		return fmt.Errorf("policy %s: padding must be >= 0", name)
	}
	if w.KeepPrevious < 0 || w.KeepNext < 0 {
		return fmt.Errorf("policy %s: keep_previous and keep_next must be >= 0", name)
	}
	return nil
}

type Output struct {
	// ConsoleFormat controls the console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// Out writes structured results to this path (see --out).
	Out string

	// OutFormat selects the format for --out. Inferred from the extension when empty.
	OutFormat string

	// Emit writes an additional structured stream to stdout (see --emit).
	Emit []string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool

	// ConsoleFilterStatus limits console results to these statuses.
	ConsoleFilterStatus []string

	// Report writes a Markdown run summary to this path (see --report).
	Report string
}

type Runtime struct {
	// WorkDir is the root of the per-context working directories (see --work-dir).
	WorkDir string `yaml:"work_dir"`

	// Concurrency is the number of contexts processed at once (see
	// --concurrency). Zero means one.
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds a whole run. Zero means no timeout (see --timeout).
	Timeout time.Duration `yaml:"timeout"`

	// Verbose enables debug logging (see --verbose).
	Verbose bool `yaml:"-"`
}

func New() *Config {
	return &Config{
		Catalog: Catalog{
			Kind: "file",
		},
		Software: Software{
			NCCopy:           "nccopy",
			CompressionLevel: 4,
		},
		Policy: Policy{
			Window: Window{
				PadBefore:    6 * time.Hour,
				PadAfter:     6 * time.Hour,
				KeepPrevious: 1,
				KeepNext:     1,
			},
		},
		Output: Output{
			ConsoleFormat: "text",
		},
	}
}

// Environment variables consulted by applyEnvOverrides.
const (
	EnvWorkDir      = "CTPDAILY_WORK_DIR"
	EnvCatalogRoot  = "CTPDAILY_CATALOG_ROOT"
	EnvSoftwareRoot = "CTPDAILY_SOFTWARE_ROOT"
)

// MergeFile loads a YAML configuration file and merges it into c. Values
// already set (from flags or the environment) are kept; the file fills the
// rest. A missing path is not an error when optional is true.
func (c *Config) MergeFile(path string, optional bool) error {
	c.applyEnvOverrides()
	if strings.TrimSpace(path) == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	fc := New()
	if err := yaml.Unmarshal(raw, fc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	fillString(&c.Processing.Satellite, fc.Processing.Satellite)
	mergeDeliveries(&c.Processing.Deliveries, fc.Processing.Deliveries)
	if fc.Processing.PartialDays {
		c.Processing.PartialDays = true
	}

	c.Sources = fc.Sources

	fillString(&c.Catalog.Root, fc.Catalog.Root)
	fillString(&c.Catalog.Index, fc.Catalog.Index)
	if c.Catalog.Kind == "" || c.Catalog.Kind == New().Catalog.Kind {
		c.Catalog.Kind = fc.Catalog.Kind
	}

	root := c.Software.Root
	c.Software = fc.Software
	if root != "" {
		c.Software.Root = root
	}

	c.Policy = fc.Policy

	fillString(&c.Runtime.WorkDir, fc.Runtime.WorkDir)
	if c.Runtime.Concurrency == 0 {
		c.Runtime.Concurrency = fc.Runtime.Concurrency
	}
	if c.Runtime.Timeout == 0 {
		c.Runtime.Timeout = fc.Runtime.Timeout
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	fillString(&c.Runtime.WorkDir, os.Getenv(EnvWorkDir))
	fillString(&c.Catalog.Root, os.Getenv(EnvCatalogRoot))
	fillString(&c.Software.Root, os.Getenv(EnvSoftwareRoot))
}

func fillString(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = strings.TrimSpace(v)
	}
}

func mergeDeliveries(dst *product.Deliveries, src product.Deliveries) {
	fillString(&dst.HIRS2NC, src.HIRS2NC)
	fillString(&dst.HIRSAVHRR, src.HIRSAVHRR)
	fillString(&dst.HIRSCSRBDaily, src.HIRSCSRBDaily)
	fillString(&dst.HIRSCSRBMonthly, src.HIRSCSRBMonthly)
	fillString(&dst.HIRSCTPOrbital, src.HIRSCTPOrbital)
	fillString(&dst.HIRSCTPDaily, src.HIRSCTPDaily)
}

// Validate normalizes and checks the settings every command needs: the
// satellite, interval, delivery lineage, output and policy.
func (c *Config) Validate() error {
	c.Processing.Satellite = normalizeEnumValue(c.Processing.Satellite)
	if c.Processing.Satellite == "" {
		return errors.New("--satellite is required")
	}

	iv, err := parseInterval(c.Processing.Start, c.Processing.End)
	if err != nil {
		return err
	}
	c.Processing.Interval = iv

	if err := c.Processing.Deliveries.Validate(); err != nil {
		return fmt.Errorf("invalid delivery lineage: %w", err)
	}

	c.Output.Emit = splitCommaList(c.Output.Emit)

	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", emit)
		}
		c.Output.Emit[i] = v
	}

	c.Output.ConsoleFilterStatus = splitCommaList(c.Output.ConsoleFilterStatus)
	for i, st := range c.Output.ConsoleFilterStatus {
		v := strings.ToUpper(strings.TrimSpace(st))
		switch v {
		case "LISTED", "SUCCESS", "PREPARED", "NOT_READY", "ERROR":
		default:
			return fmt.Errorf("unsupported --console-filter-status value: %s (must be one of: LISTED, SUCCESS, PREPARED, NOT_READY, ERROR)", st)
		}
		c.Output.ConsoleFilterStatus[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	if err := c.Policy.Window.validate("default"); err != nil {
		return err
	}
	for sat := range c.Policy.Satellites {
		if err := c.Policy.For(sat).validate(sat); err != nil {
			return err
		}
	}

	c.Catalog.Kind = normalizeEnumValue(c.Catalog.Kind)
	if c.Catalog.Kind == "" {
		c.Catalog.Kind = "file"
	}
	if c.Catalog.Kind != "file" && c.Catalog.Kind != "sqlite" {
		return fmt.Errorf("unsupported catalog kind: %s (must be one of: file, sqlite)", c.Catalog.Kind)
	}

	if c.Runtime.Concurrency == 0 {
		c.Runtime.Concurrency = 1
	}
	if c.Runtime.Concurrency < 0 {
		return fmt.Errorf("--concurrency must be >= 1, got %d", c.Runtime.Concurrency)
	}
	if c.Runtime.Timeout < 0 {
		return errors.New("--timeout must be >= 0")
	}
	return nil
}

// ValidatePrepare checks what locating inputs needs on top of Validate: the
// upstream datalists and a catalog.
func (c *Config) ValidatePrepare() error {
	if _, err := c.Sources.Datalist(SourceHIR1B, c.Processing.Satellite); err != nil {
		return fmt.Errorf("input_sources: %w", err)
	}
	if strings.TrimSpace(c.Catalog.Root) == "" {
		return errors.New("catalog root is required (set --catalog-root, " + EnvCatalogRoot + " or catalog.root)")
	}
	if c.Catalog.Kind == "sqlite" && c.Catalog.Index == "" {
		c.Catalog.Index = filepath.Join(c.Catalog.Root, "catalog.db")
	}
	return nil
}

// ValidateExecute checks what running the daily binary needs on top of
// ValidatePrepare.
func (c *Config) ValidateExecute() error {
	if err := c.ValidatePrepare(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Processing.Deliveries.HIRSCTPDaily) == "" {
		return errors.New("--hirs-ctp-daily-delivery-id is required to execute")
	}
	if c.Software.Root == "" && len(c.Software.Deliveries) == 0 {
		return errors.New("software root or explicit deliveries are required to execute")
	}
	if c.Software.CompressionLevel < 1 || c.Software.CompressionLevel > 9 {
		return fmt.Errorf("software.compression_level must be between 1 and 9, got %d", c.Software.CompressionLevel)
	}
	if c.Runtime.WorkDir == "" {
		c.Runtime.WorkDir = "work"
	}
	return nil
}

// parseInterval turns an inclusive day range into a half-open interval.
// A date-only end covers the whole of that day.
func parseInterval(start, end string) (timeutil.Interval, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" {
		return timeutil.Interval{}, errors.New("--start is required")
	}
	s, err := timeutil.ParseDate(start)
	if err != nil {
		return timeutil.Interval{}, fmt.Errorf("invalid --start value: %w", err)
	}
	if end == "" {
		end = start
	}
	e, err := timeutil.ParseDate(end)
	if err != nil {
		return timeutil.Interval{}, fmt.Errorf("invalid --end value: %w", err)
	}
	if e.Equal(timeutil.StartOfDay(e)) {
		e = e.AddDate(0, 0, 1)
	}
	iv, err := timeutil.New(s, e)
	if err != nil {
		return timeutil.Interval{}, fmt.Errorf("invalid interval: %w", err)
	}
	return iv, nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
