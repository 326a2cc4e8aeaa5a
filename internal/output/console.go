package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"ctpdaily/internal/task"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	results         []Result // For JSON array output
	allowedStatuses map[string]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[string]bool)
		for _, st := range filterStatuses {
			s.allowedStatuses[strings.ToUpper(strings.TrimSpace(st))] = true
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	if len(s.allowedStatuses) > 0 {
		if r, ok := v.(Result); ok {
			if !s.allowedStatuses[string(r.Status)] {
				return nil
			}
		}
	}

	switch s.format {
	case "json":
		r, ok := v.(Result)
		if !ok {
			// Ignore non-result events in JSON console mode.
			return nil
		}
		s.results = append(s.results, r)
		return nil
	case "ndjson":
		return encodeStreamed(s.writer, v)
	case "text":
		r, ok := v.(Result)
		if !ok {
			// Ignore events in text mode.
			return nil
		}
		if _, err := fmt.Fprintln(s.writer, formatText(r)); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

var statusColors = map[Status]*color.Color{
	StatusListed:   color.New(color.FgBlue),
	StatusSuccess:  color.New(color.FgGreen, color.Bold),
	StatusPrepared: color.New(color.FgCyan),
	StatusNotReady: color.New(color.FgYellow),
	StatusError:    color.New(color.FgRed, color.Bold),
}

// formatText renders one result line, followed by indented inputs and
// outputs. Colors follow color.NoColor.
func formatText(r Result) string {
	status := "[" + string(r.Status) + "]"
	if c, ok := statusColors[r.Status]; ok {
		status = c.Sprint(status)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", status, r.Context)
	if r.State != "" && r.Status != StatusSuccess {
		fmt.Fprintf(&b, " (%s", r.State)
		if r.ExitCode != 0 {
			fmt.Fprintf(&b, ", exit code %d", r.ExitCode)
		}
		b.WriteString(")")
	}
	if r.Message != "" {
		fmt.Fprintf(&b, " - %s", r.Message)
	}

	inputs := sortedKeys(r.Inputs)
	task.SortNames(inputs)
	for _, name := range inputs {
		fmt.Fprintf(&b, "\n    %s  %s", name, r.Inputs[name])
	}
	for _, name := range sortedKeys(r.Outputs) {
		fmt.Fprintf(&b, "\n    %s -> %s", name, r.Outputs[name])
	}
	if r.Stored != "" {
		fmt.Fprintf(&b, "\n    stored %s", r.Stored)
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		return encodeAggregate(s.writer, s.results)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
