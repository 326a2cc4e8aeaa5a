package output

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ReportSink writes a Markdown summary of a run on Close.
type ReportSink struct {
	path         string
	file         *os.File
	mu           sync.Mutex
	results      []Result
	runID        string
	command      string
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := createWithDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case Result:
		s.results = append(s.results, t)
	case Event:
		switch t.Type {
		case EventRunStarted:
			s.runID = t.RunID
			s.command = t.Command
		case EventRunFinished:
			s.exitCode = t.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.file.WriteString(s.render())
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

var statusOrder = []Status{StatusListed, StatusSuccess, StatusPrepared, StatusNotReady, StatusError}

func (s *ReportSink) render() string {
	var b strings.Builder

	b.WriteString("# ctpdaily run report\n\n")
	if s.runID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", s.runID)
	}
	if s.command != "" {
		fmt.Fprintf(&b, "- Command: `%s`\n", s.command)
	}
	if s.haveExitCode {
		fmt.Fprintf(&b, "- Exit code: %d\n", s.exitCode)
	}
	fmt.Fprintf(&b, "- Contexts: %d\n\n", len(s.results))

	counts := make(map[Status]int)
	for _, r := range s.results {
		counts[r.Status]++
	}
	b.WriteString("## Summary\n\n| Status | Contexts |\n|---|---|\n")
	for _, st := range statusOrder {
		if counts[st] > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", st, counts[st])
		}
	}
	b.WriteString("\n")

	bySat := make(map[string][]Result)
	var sats []string
	for _, r := range s.results {
		if _, ok := bySat[r.Satellite]; !ok {
			sats = append(sats, r.Satellite)
		}
		bySat[r.Satellite] = append(bySat[r.Satellite], r)
	}
	sort.Strings(sats)

	for _, sat := range sats {
		rs := bySat[sat]
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Granule.Before(rs[j].Granule) })

		fmt.Fprintf(&b, "## %s\n\n| Day | Status | Inputs | Detail |\n|---|---|---|---|\n", sat)
		for _, r := range rs {
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", r.Day, r.Status, len(r.Inputs), escapeCell(detail(r)))
		}
		b.WriteString("\n")
	}

	reasons := make(map[string][]string)
	var keys []string
	for _, r := range s.results {
		if r.Status != StatusError && r.Status != StatusNotReady {
			continue
		}
		reason := normalizeErrorReason(r.Message)
		if _, ok := reasons[reason]; !ok {
			keys = append(keys, reason)
		}
		reasons[reason] = append(reasons[reason], r.Context)
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		b.WriteString("## Problems\n\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, formatContextList(reasons[k], 10))
		}
	}
	return b.String()
}

func detail(r Result) string {
	switch {
	case r.Stored != "":
		return r.Stored
	case r.Outputs != nil:
		return r.Outputs["out"]
	case r.ExitCode != 0:
		return fmt.Sprintf("exit code %d: %s", r.ExitCode, r.Message)
	default:
		return r.Message
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

var (
	reDayCode  = regexp.MustCompile(`\bD\d{5}\b`)
	rePath     = regexp.MustCompile(`(/[^\s:()]+)+`)
	reExitCode = regexp.MustCompile(`exit code -?\d+`)
)

// normalizeErrorReason strips context-specific details (day codes, paths)
// so that equal failures on different days group together.
func normalizeErrorReason(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "unknown"
	}
	msg = strings.TrimPrefix(msg, "HIRS_CTP_DAILY: ")
	msg = rePath.ReplaceAllString(msg, "<path>")
	msg = reDayCode.ReplaceAllString(msg, "<day>")
	if m := reExitCode.FindString(msg); m != "" {
		return "binary failed (" + m + ")"
	}
	if len(msg) > 120 {
		msg = msg[:117] + "..."
	}
	return msg
}

func formatContextList(contexts []string, max int) string {
	if len(contexts) <= max {
		return strings.Join(contexts, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(contexts[:max], ", "), len(contexts)-max)
}
