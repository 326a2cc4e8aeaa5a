package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ctpdaily/internal/config"
	"ctpdaily/internal/daily"
	"ctpdaily/internal/output"
	"ctpdaily/internal/product"
	"ctpdaily/internal/runner"
	"ctpdaily/internal/task"
	"ctpdaily/internal/timeutil"

	"github.com/google/go-cmp/cmp"
)

func testDeliveries() product.Deliveries {
	return product.Deliveries{
		HIRS2NC:         "20180410-1",
		HIRSAVHRR:       "20180505-1",
		HIRSCSRBDaily:   "20180714-1",
		HIRSCSRBMonthly: "20180516-1",
		HIRSCTPOrbital:  "20180730-1",
		HIRSCTPDaily:    "20180802-1",
	}
}

type fakeComputation struct {
	t        *testing.T
	contexts []product.Context
	findErr  error
	buildErr map[string]error
	runErr   map[string]task.Result

	mu    sync.Mutex
	built []string
	ran   []string
}

func (f *fakeComputation) FindContexts(timeutil.Interval, string, product.Deliveries) ([]product.Context, error) {
	return f.contexts, f.findErr
}

func (f *fakeComputation) BuildTask(_ context.Context, dc product.Context, b *task.Builder) error {
	f.mu.Lock()
	f.built = append(f.built, dc.DayCode())
	f.mu.Unlock()
	if err := f.buildErr[dc.DayCode()]; err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		p := product.Product{
			Computation: product.ComputationCTPOrbital,
			Dataset:     product.DatasetOut,
			Satellite:   dc.Satellite,
			Granule:     dc.Granule.Add(time.Duration(i) * time.Hour),
			DeliveryID:  dc.Deliveries.HIRSCTPOrbital,
			Filename:    "orbit_" + dc.DayCode() + "_" + string(rune('a'+i)) + ".nc",
		}
		if err := b.Input(daily.InputName(i), p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeComputation) Run(_ context.Context, inputs map[string]string, dc product.Context) task.Result {
	f.mu.Lock()
	f.ran = append(f.ran, dc.DayCode())
	f.mu.Unlock()
	if res, ok := f.runErr[dc.DayCode()]; ok {
		return res
	}
	out := filepath.Join(f.t.TempDir(), product.DailyFilename(dc))
	if err := os.WriteFile(out, []byte("CDF"), 0o644); err != nil {
		return task.Result{State: task.StateBinaryRunning, Err: err}
	}
	return task.Result{State: task.StateSuccess, Outputs: map[string]string{product.DatasetOut: out}}
}

type fakeStore struct {
	mu     sync.Mutex
	stored map[string]string
}

func (s *fakeStore) Path(_ context.Context, p product.Product) (string, error) {
	return "/catalog/" + p.Computation + "/" + p.Filename, nil
}

func (s *fakeStore) Store(_ context.Context, p product.Product, src string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = make(map[string]string)
	}
	path := "/catalog/" + p.Computation + "/" + p.Filename
	s.stored[p.Filename] = src
	return path, nil
}

func days(t *testing.T, n int) []product.Context {
	t.Helper()
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []product.Context
	for i := 0; i < n; i++ {
		c, err := product.NewContext(start.AddDate(0, 0, i), "noaa-18", testDeliveries())
		if err != nil {
			t.Fatalf("NewContext: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func testConfig(t *testing.T, out string) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Processing.Satellite = "noaa-18"
	cfg.Processing.Deliveries = testDeliveries()
	cfg.Output.NoConsole = true
	cfg.Output.Out = out
	cfg.Runtime.Concurrency = 1
	return cfg
}

func readResults(t *testing.T, path string) []output.Result {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var results []output.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, raw)
	}
	return results
}

func statuses(results []output.Result) []output.Status {
	var out []output.Status
	for _, r := range results {
		out = append(out, r.Status)
	}
	return out
}

func TestEngine_Run_ExecuteSuccess(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 2)}
	store := &fakeStore{}

	code := NewEngine(comp, store).Run(context.Background(), testConfig(t, out), ModeExecute)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	results := readResults(t, out)
	if diff := cmp.Diff([]output.Status{output.StatusSuccess, output.StatusSuccess}, statuses(results)); diff != "" {
		t.Fatalf("statuses (-want +got):\n%s", diff)
	}
	first := results[0]
	if first.Context != "noaa-18 D17001" || first.Day != "D17001" {
		t.Fatalf("unexpected identity %+v", first)
	}
	wantInputs := map[string]string{
		"CTPO-0": "/catalog/hirs_ctp_orbital/orbit_D17001_a.nc",
		"CTPO-1": "/catalog/hirs_ctp_orbital/orbit_D17001_b.nc",
	}
	if diff := cmp.Diff(wantInputs, first.Inputs); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
	if first.State != task.StateSuccess {
		t.Fatalf("expected SUCCESS state, got %s", first.State)
	}
	if want := "/catalog/hirs_ctp_daily/hirs_ctp_daily_noaa-18_D17001.nc"; first.Stored != want {
		t.Fatalf("expected stored %s, got %s", want, first.Stored)
	}
	if len(store.stored) != 2 {
		t.Fatalf("expected 2 stored outputs, got %v", store.stored)
	}
}

func TestEngine_Run_ExitCodes(t *testing.T) {
	notReady := &daily.NotReadyError{Satellite: "noaa-18", Day: time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC), Reason: "no HIRS_CTP_ORBITAL inputs available"}
	failed := task.Result{
		State:    task.StateBinaryFailed,
		ExitCode: 137,
		Err:      &runner.BinaryFailedError{Binary: "/sw/hirs_ctp_daily/20180802-1/bin/" + daily.BinaryName, ExitCode: 137},
	}

	tests := []struct {
		name     string
		comp     *fakeComputation
		wantCode int
		want     []output.Status
	}{
		{
			name:     "not ready",
			comp:     &fakeComputation{buildErr: map[string]error{"D17002": notReady}},
			wantCode: 1,
			want:     []output.Status{output.StatusSuccess, output.StatusNotReady, output.StatusSuccess},
		},
		{
			name:     "binary failed beats not ready",
			comp:     &fakeComputation{buildErr: map[string]error{"D17001": notReady}, runErr: map[string]task.Result{"D17003": failed}},
			wantCode: 2,
			want:     []output.Status{output.StatusNotReady, output.StatusSuccess, output.StatusError},
		},
		{
			name: "output missing",
			comp: &fakeComputation{runErr: map[string]task.Result{"D17002": {
				State: task.StateOutputMissing,
				Err:   &runner.OutputMissingError{Path: "work/noaa-18/D17002/hirs_ctp_daily_noaa-18_D17002.nc"},
			}}},
			wantCode: 2,
			want:     []output.Status{output.StatusSuccess, output.StatusError, output.StatusSuccess},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "results.json")
			tt.comp.t = t
			tt.comp.contexts = days(t, 3)

			code := NewEngine(tt.comp, &fakeStore{}).Run(context.Background(), testConfig(t, out), ModeExecute)
			if code != tt.wantCode {
				t.Fatalf("expected exit code %d, got %d", tt.wantCode, code)
			}
			if diff := cmp.Diff(tt.want, statuses(readResults(t, out))); diff != "" {
				t.Fatalf("statuses (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEngine_Run_BinaryFailureResult(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 1), runErr: map[string]task.Result{"D17001": {
		State:    task.StateBinaryFailed,
		ExitCode: 137,
		Err:      &runner.BinaryFailedError{Binary: "/sw/bin/" + daily.BinaryName, ExitCode: 137},
	}}}
	store := &fakeStore{}

	if code := NewEngine(comp, store).Run(context.Background(), testConfig(t, out), ModeExecute); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	r := readResults(t, out)[0]
	if r.State != task.StateBinaryFailed || r.ExitCode != 137 {
		t.Fatalf("unexpected task outcome %+v", r)
	}
	if r.Outputs != nil || r.Stored != "" {
		t.Fatalf("failed task must not report outputs: %+v", r)
	}
	if want := daily.BinaryName + " failed (exit code 137)"; r.Message != want {
		t.Fatalf("expected message %q, got %q", want, r.Message)
	}
	if len(store.stored) != 0 {
		t.Fatalf("nothing should be stored, got %v", store.stored)
	}
}

func TestEngine_Run_FatalWhenContextsFail(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, findErr: errors.New("invalid delivery lineage")}

	if code := NewEngine(comp, &fakeStore{}).Run(context.Background(), testConfig(t, out), ModeExecute); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("no output should be written on a fatal error, stat err = %v", err)
	}
}

func TestEngine_Run_PrepareDoesNotRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 2)}

	if code := NewEngine(comp, &fakeStore{}).Run(context.Background(), testConfig(t, out), ModePrepare); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if len(comp.ran) != 0 {
		t.Fatalf("prepare must not run tasks, ran %v", comp.ran)
	}
	for _, r := range readResults(t, out) {
		if r.Status != output.StatusPrepared || len(r.Inputs) != 2 || r.State != "" {
			t.Fatalf("unexpected prepared result %+v", r)
		}
	}
}

func TestEngine_Run_ContextsOnlyLists(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 3)}

	if code := NewEngine(comp, nil).Run(context.Background(), testConfig(t, out), ModeContexts); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if len(comp.built) != 0 {
		t.Fatalf("contexts must not locate inputs, built %v", comp.built)
	}
	results := readResults(t, out)
	var got []string
	for _, r := range results {
		if r.Status != output.StatusListed {
			t.Fatalf("unexpected status %s", r.Status)
		}
		got = append(got, r.Context)
	}
	want := []string{"noaa-18 D17001", "noaa-18 D17002", "noaa-18 D17003"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("contexts (-want +got):\n%s", diff)
	}
}

func TestEngine_Run_Single(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 3)}
	cfg := testConfig(t, out)
	cfg.Processing.Single = true

	if code := NewEngine(comp, &fakeStore{}).Run(context.Background(), cfg, ModeExecute); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if diff := cmp.Diff([]string{"D17001"}, comp.ran); diff != "" {
		t.Fatalf("ran (-want +got):\n%s", diff)
	}
}

func TestEngine_Run_ConcurrentContexts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 6)}
	cfg := testConfig(t, out)
	cfg.Runtime.Concurrency = 3

	if code := NewEngine(comp, &fakeStore{}).Run(context.Background(), cfg, ModeExecute); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	results := readResults(t, out)
	seen := make(map[string]bool)
	for _, r := range results {
		seen[r.Day] = true
	}
	if len(results) != 6 || len(seen) != 6 {
		t.Fatalf("expected one result per context, got %d results for %d days", len(results), len(seen))
	}
}

func TestEngine_Run_NDJSONEventStream(t *testing.T) {
	out := filepath.Join(t.TempDir(), "events.ndjson")
	comp := &fakeComputation{t: t, contexts: days(t, 2)}

	eng := NewEngine(comp, &fakeStore{}, WithRunID(func() string { return "run-1" }))
	if code := eng.Run(context.Background(), testConfig(t, out), ModeExecute); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev struct {
			Type     string `json:"type"`
			RunID    string `json:"run_id"`
			Contexts int    `json:"contexts"`
			ExitCode int    `json:"exit_code"`
		}
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("invalid NDJSON line %q: %v", sc.Text(), err)
		}
		if ev.RunID != "run-1" {
			t.Fatalf("event without run id: %s", sc.Text())
		}
		if ev.Type == output.EventRunStarted && ev.Contexts != 2 {
			t.Fatalf("run.started should carry the context count: %s", sc.Text())
		}
		types = append(types, ev.Type)
	}

	want := []string{
		output.EventRunStarted,
		output.EventContextStarted, output.EventTaskResult, output.EventContextFinished,
		output.EventContextStarted, output.EventTaskResult, output.EventContextFinished,
		output.EventRunFinished,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("event types (-want +got):\n%s", diff)
	}
}

func TestEngine_Run_ConcurrentEventsStayGroupedPerContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "events.ndjson")
	comp := &fakeComputation{
		t:        t,
		contexts: days(t, 6),
		buildErr: map[string]error{"D17004": errors.New("catalog unavailable")},
	}
	cfg := testConfig(t, out)
	cfg.Runtime.Concurrency = 3

	if code := NewEngine(comp, &fakeStore{}).Run(context.Background(), cfg, ModeExecute); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	perContext := map[string][]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev struct {
			Type    string `json:"type"`
			Context string `json:"context"`
		}
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("invalid NDJSON line %q: %v", sc.Text(), err)
		}
		if ev.Context != "" {
			perContext[ev.Context] = append(perContext[ev.Context], ev.Type)
		}
	}

	if len(perContext) != 6 {
		t.Fatalf("expected events for 6 contexts, got %d", len(perContext))
	}
	want := []string{output.EventContextStarted, output.EventTaskResult, output.EventContextFinished}
	for name, types := range perContext {
		if diff := cmp.Diff(want, types); diff != "" {
			t.Fatalf("%s event order (-want +got):\n%s", name, diff)
		}
	}
}

func TestEngine_Run_ReportSink(t *testing.T) {
	dir := t.TempDir()
	comp := &fakeComputation{t: t, contexts: days(t, 1)}
	cfg := testConfig(t, filepath.Join(dir, "results.json"))
	cfg.Output.Report = filepath.Join(dir, "report.md")

	if code := NewEngine(comp, &fakeStore{}).Run(context.Background(), cfg, ModeExecute); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	raw, err := os.ReadFile(cfg.Output.Report)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "| D17001 | SUCCESS |") {
		t.Fatalf("report missing context row:\n%s", raw)
	}
}

func TestEngine_Run_CanceledBeforeStart(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.json")
	comp := &fakeComputation{t: t, contexts: days(t, 3)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code := NewEngine(comp, &fakeStore{}).Run(ctx, testConfig(t, out), ModeExecute); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if len(comp.built) != 0 {
		t.Fatalf("no context should start after cancellation, built %v", comp.built)
	}
}

func TestExitCodeForRun(t *testing.T) {
	tests := []struct {
		fatal, failed, notReady bool
		want                    int
	}{
		{false, false, false, 0},
		{false, false, true, 1},
		{false, true, false, 2},
		{false, true, true, 2},
		{true, true, true, 3},
	}
	for _, tt := range tests {
		if got := exitCodeForRun(tt.fatal, tt.failed, tt.notReady); got != tt.want {
			t.Errorf("exitCodeForRun(%v, %v, %v) = %d, want %d", tt.fatal, tt.failed, tt.notReady, got, tt.want)
		}
	}
}
