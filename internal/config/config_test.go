package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"ctpdaily/internal/product"
)

func validConfig() *Config {
	cfg := New()
	cfg.Processing.Satellite = "noaa-18"
	cfg.Processing.Start = "2017-01-01"
	cfg.Processing.Deliveries = product.Deliveries{
		HIRS2NC:         "20180410-1",
		HIRSAVHRR:       "20180505-1",
		HIRSCSRBDaily:   "20180714-1",
		HIRSCSRBMonthly: "20180516-1",
		HIRSCTPOrbital:  "20180730-1",
		HIRSCTPDaily:    "20180802-1",
	}
	return cfg
}

func TestValidate_SingleDayInterval(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	iv := cfg.Processing.Interval
	if want := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC); !iv.Start.Equal(want) {
		t.Fatalf("unexpected start %s", iv.Start)
	}
	if iv.Duration() != 24*time.Hour {
		t.Fatalf("expected one day, got %s", iv.Duration())
	}
}

func TestValidate_InclusiveEnd(t *testing.T) {
	cfg := validConfig()
	cfg.Processing.Start = "2017-001"
	cfg.Processing.End = "2017-01-03"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if got := cfg.Processing.Interval.Duration(); got != 72*time.Hour {
		t.Fatalf("expected 3 days, got %s", got)
	}
}

func TestValidate_NormalizesSatelliteAndEmit(t *testing.T) {
	cfg := validConfig()
	cfg.Processing.Satellite = "  NOAA-18 "
	cfg.Output.Emit = []string{"JSON, ndjson", ",,"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.Processing.Satellite != "noaa-18" {
		t.Fatalf("satellite not normalized: %q", cfg.Processing.Satellite)
	}
	if want := []string{"json", "ndjson"}; !reflect.DeepEqual(cfg.Output.Emit, want) {
		t.Fatalf("Emit normalized mismatch: got %v want %v", cfg.Output.Emit, want)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing satellite", func(c *Config) { c.Processing.Satellite = "" }, "--satellite"},
		{"missing start", func(c *Config) { c.Processing.Start = "" }, "--start"},
		{"bad start", func(c *Config) { c.Processing.Start = "soon" }, "--start"},
		{"end before start", func(c *Config) { c.Processing.End = "2016-12-30" }, "interval"},
		{"missing delivery", func(c *Config) { c.Processing.Deliveries.HIRS2NC = "" }, "hirs2nc"},
		{"bad console format", func(c *Config) { c.Output.ConsoleFormat = "xml" }, "--console-format"},
		{"bad emit", func(c *Config) { c.Output.Emit = []string{"yaml"} }, "--emit"},
		{"out without extension", func(c *Config) { c.Output.Out = "results" }, "missing extension"},
		{"bad out format", func(c *Config) { c.Output.Out = "r.json"; c.Output.OutFormat = "csv" }, "unsupported output format"},
		{"negative pad", func(c *Config) { c.Policy.PadBefore = -time.Hour }, "padding"},
		{"negative keep override", func(c *Config) {
			n := -1
			c.Policy.Satellites = map[string]WindowOverride{"noaa-06": {KeepNext: &n}}
		}, "noaa-06"},
		{"bad catalog kind", func(c *Config) { c.Catalog.Kind = "postgres" }, "catalog kind"},
		{"negative timeout", func(c *Config) { c.Runtime.Timeout = -time.Second }, "--timeout"},
		{"negative concurrency", func(c *Config) { c.Runtime.Concurrency = -2 }, "--concurrency"},
		{"bad console filter", func(c *Config) { c.Output.ConsoleFilterStatus = []string{"error,pass"} }, "--console-filter-status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_NormalizesRuntimeAndFilter(t *testing.T) {
	cfg := validConfig()
	cfg.Output.ConsoleFilterStatus = []string{"error, not_ready"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if want := []string{"ERROR", "NOT_READY"}; !reflect.DeepEqual(cfg.Output.ConsoleFilterStatus, want) {
		t.Fatalf("filter mismatch: got %v want %v", cfg.Output.ConsoleFilterStatus, want)
	}
	if cfg.Runtime.Concurrency != 1 {
		t.Fatalf("expected default concurrency 1, got %d", cfg.Runtime.Concurrency)
	}
}

func TestValidate_InfersOutFormat(t *testing.T) {
	for ext, want := range map[string]string{".json": "json", ".ndjson": "ndjson", ".jsonl": "ndjson"} {
		cfg := validConfig()
		cfg.Output.Out = "results" + ext
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() returned error for %s: %v", ext, err)
		}
		if cfg.Output.OutFormat != want {
			t.Fatalf("expected %s for %s, got %s", want, ext, cfg.Output.OutFormat)
		}
	}
}

func TestPolicy_ForAppliesOverrides(t *testing.T) {
	zero := time.Duration(0)
	two := 2
	p := New().Policy
	p.Satellites = map[string]WindowOverride{
		"noaa-06": {PadBefore: &zero, PadAfter: &zero, KeepPrevious: &two},
	}

	def := p.For("noaa-18")
	if def.PadBefore != 6*time.Hour || def.KeepPrevious != 1 {
		t.Fatalf("unexpected default window %+v", def)
	}

	o := p.For("noaa-06")
	if o.PadBefore != 0 || o.PadAfter != 0 {
		t.Fatalf("expected exact-day padding, got %+v", o)
	}
	if o.KeepPrevious != 2 || o.KeepNext != 1 {
		t.Fatalf("expected keep 2/1, got %+v", o)
	}
}

func TestInputSources_Datalist(t *testing.T) {
	s := InputSources{InputData: map[string]string{
		SourceHIR1B: "/data/{satellite}/HIR1B_{satellite}_latest",
	}}
	got, err := s.Datalist(SourceHIR1B, "metop-a")
	if err != nil {
		t.Fatalf("Datalist: %v", err)
	}
	if want := "/data/metop-a/HIR1B_metop-a_latest"; got != want {
		t.Fatalf("Datalist = %q, want %q", got, want)
	}
	if _, err := s.Datalist(SourcePTMSX, "metop-a"); err == nil {
		t.Fatal("expected error for unconfigured source")
	}
}

const sampleYAML = `
processing:
  satellite: noaa-19
  deliveries:
    hirs2nc: file-hirs2nc
    hirs_ctp_daily: file-daily
input_sources:
  collection:
    HIR1B: ILIAD
    CFSR: DELTA
  input_data:
    HIR1B: /lists/{satellite}/HIR1B_{satellite}_latest
    CFSR: /lists/CFSR.out
catalog:
  kind: sqlite
  root: /catalog
software:
  root: /software
  compression_level: 6
  deliveries:
    - name: hirs_ctp_daily
      id: 20180802-1
      path: /opt/hirs_ctp_daily
      version: v20150915
policy:
  pad_before: 0s
  keep_next: 2
  satellites:
    metop-a:
      pad_after: 3h
runtime:
  work_dir: /scratch
  timeout: 2h
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestMergeFile_FillsUnsetValues(t *testing.T) {
	t.Setenv(EnvWorkDir, "")
	t.Setenv(EnvCatalogRoot, "")
	t.Setenv(EnvSoftwareRoot, "")

	path := writeFile(t, "ctpdaily.yaml", sampleYAML)
	cfg := New()
	cfg.Processing.Deliveries.HIRSCTPDaily = "flag-daily"

	if err := cfg.MergeFile(path, false); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}

	if cfg.Processing.Satellite != "noaa-19" {
		t.Errorf("satellite not taken from file: %q", cfg.Processing.Satellite)
	}
	if cfg.Processing.Deliveries.HIRS2NC != "file-hirs2nc" {
		t.Errorf("hirs2nc not taken from file: %q", cfg.Processing.Deliveries.HIRS2NC)
	}
	if cfg.Processing.Deliveries.HIRSCTPDaily != "flag-daily" {
		t.Errorf("flag value must win over file, got %q", cfg.Processing.Deliveries.HIRSCTPDaily)
	}
	if cfg.Catalog.Kind != "sqlite" || cfg.Catalog.Root != "/catalog" {
		t.Errorf("unexpected catalog %+v", cfg.Catalog)
	}
	if cfg.Sources.Collection[SourceHIR1B] != "ILIAD" {
		t.Errorf("unexpected collection %v", cfg.Sources.Collection)
	}
	if cfg.Software.CompressionLevel != 6 || cfg.Software.NCCopy != "nccopy" {
		t.Errorf("unexpected software %+v", cfg.Software)
	}
	if len(cfg.Software.Deliveries) != 1 || cfg.Software.Deliveries[0].Version != "v20150915" {
		t.Errorf("unexpected deliveries %+v", cfg.Software.Deliveries)
	}
	if cfg.Policy.PadBefore != 0 || cfg.Policy.PadAfter != 6*time.Hour || cfg.Policy.KeepNext != 2 || cfg.Policy.KeepPrevious != 1 {
		t.Errorf("unexpected policy %+v", cfg.Policy.Window)
	}
	if got := cfg.Policy.For("metop-a").PadAfter; got != 3*time.Hour {
		t.Errorf("expected metop-a pad_after 3h, got %s", got)
	}
	if cfg.Runtime.WorkDir != "/scratch" || cfg.Runtime.Timeout != 2*time.Hour {
		t.Errorf("unexpected runtime %+v", cfg.Runtime)
	}
}

func TestMergeFile_EnvironmentBeatsFile(t *testing.T) {
	t.Setenv(EnvWorkDir, "/env/work")
	t.Setenv(EnvCatalogRoot, "/env/catalog")
	t.Setenv(EnvSoftwareRoot, "/env/software")

	cfg := New()
	if err := cfg.MergeFile(writeFile(t, "c.yaml", sampleYAML), false); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if cfg.Runtime.WorkDir != "/env/work" {
		t.Errorf("expected env work dir, got %q", cfg.Runtime.WorkDir)
	}
	if cfg.Catalog.Root != "/env/catalog" {
		t.Errorf("expected env catalog root, got %q", cfg.Catalog.Root)
	}
	if cfg.Software.Root != "/env/software" {
		t.Errorf("expected env software root, got %q", cfg.Software.Root)
	}
}

func TestMergeFile_MissingAndInvalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := New().MergeFile(missing, true); err != nil {
		t.Fatalf("optional missing file should be ignored, got %v", err)
	}
	if err := New().MergeFile(missing, false); err == nil {
		t.Fatal("expected error for required missing file")
	}
	bad := writeFile(t, "bad.yaml", "policy: [unterminated")
	if err := New().MergeFile(bad, false); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateExecute(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := cfg.ValidateExecute(); err == nil {
		t.Fatal("expected error without input sources")
	}

	cfg.Sources.InputData = map[string]string{SourceHIR1B: "/lists/{satellite}"}
	if err := cfg.ValidateExecute(); err == nil || !strings.Contains(err.Error(), "catalog root") {
		t.Fatalf("expected catalog root error, got %v", err)
	}

	cfg.Catalog.Root = "/catalog"
	cfg.Catalog.Kind = "sqlite"
	if err := cfg.ValidateExecute(); err == nil || !strings.Contains(err.Error(), "software") {
		t.Fatalf("expected software error, got %v", err)
	}
	if cfg.Catalog.Index != filepath.Join("/catalog", "catalog.db") {
		t.Fatalf("expected default sqlite index, got %q", cfg.Catalog.Index)
	}

	cfg.Software.Root = "/software"
	if err := cfg.ValidateExecute(); err != nil {
		t.Fatalf("ValidateExecute: %v", err)
	}
	if cfg.Runtime.WorkDir != "work" {
		t.Fatalf("expected default work dir, got %q", cfg.Runtime.WorkDir)
	}

	cfg.Processing.Deliveries.HIRSCTPDaily = ""
	if err := cfg.ValidateExecute(); err == nil {
		t.Fatal("expected error without daily delivery id")
	}
}
