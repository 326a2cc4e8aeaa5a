// Package engine is the local driver of the daily computation: it enumerates
// contexts, locates and materialises their inputs, runs the task and stores
// the output, reporting every step to the output sinks.
package engine

import (
	"context"
	"fmt"
	"os"

	"ctpdaily/internal/config"
	"ctpdaily/internal/ncutil"
	"ctpdaily/internal/output"
	"ctpdaily/internal/product"
	"ctpdaily/internal/task"
	"ctpdaily/internal/timeutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mode selects how far each context is taken.
type Mode string

const (
	ModeContexts Mode = "contexts"
	ModePrepare  Mode = "prepare"
	ModeExecute  Mode = "execute"
)

func exitCodeForRun(fatal, failed, notReady bool) int {
	// Exit code contract:
	// 0 = every context succeeded
	// 1 = some contexts were not ready
	// 2 = some contexts failed
	// 3 = fatal error (nothing ran)
	if fatal {
		return 3
	}
	if failed {
		return 2
	}
	if notReady {
		return 1
	}
	return 0
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil, cfg.Output.ConsoleFormat, cfg.Output.ConsoleFilterStatus)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(os.Stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// Computation is the daily computation as driven locally.
type Computation interface {
	FindContexts(iv timeutil.Interval, satellite string, deliveries product.Deliveries) ([]product.Context, error)
	BuildTask(ctx context.Context, dc product.Context, b *task.Builder) error
	Run(ctx context.Context, inputs map[string]string, dc product.Context) task.Result
}

// Store is where inputs are materialised from and outputs are stored to.
type Store interface {
	Path(ctx context.Context, p product.Product) (string, error)
	Store(ctx context.Context, p product.Product, src string) (string, error)
}

type Engine struct {
	comp   Computation
	store  Store
	logger *zap.Logger

	// newRunID is a test seam for deterministic run ids.
	newRunID func() string
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithRunID(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

func NewEngine(comp Computation, store Store, opts ...Option) *Engine {
	e := &Engine{
		comp:     comp,
		store:    store,
		logger:   zap.NewNop(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the per-invocation state shared by the workers.
type run struct {
	id     string
	mode   Mode
	cfg    *config.Config
	logger *zap.Logger
}

func (e *Engine) findContexts(cfg *config.Config, logger *zap.Logger) ([]product.Context, bool) {
	p := cfg.Processing
	if !cfg.Output.NoConsole {
		fmt.Fprintln(os.Stderr, "Finding contexts...")
	}
	contexts, err := e.comp.FindContexts(p.Interval, p.Satellite, p.Deliveries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding contexts: %v\n", err)
		logger.Error("context enumeration failed", zap.Error(err))
		return nil, false
	}
	if p.Single && len(contexts) > 1 {
		contexts = contexts[:1]
	}
	if !cfg.Output.NoConsole {
		fmt.Fprintf(os.Stderr, "Found %d contexts.\n", len(contexts))
	}
	logger.Info("contexts found",
		zap.Stringer("interval", p.Interval),
		zap.String("satellite", p.Satellite),
		zap.Int("contexts", len(contexts)))
	return contexts, true
}

// Run takes every context of cfg's interval as far as mode asks and returns
// the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config, mode Mode) int {
	if cfg.Runtime.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()
	}

	r := &run{id: e.newRunID(), mode: mode, cfg: cfg}
	r.logger = e.logger.With(zap.String("run_id", r.id), zap.String("command", string(mode)))

	contexts, ok := e.findContexts(cfg, r.logger)
	if !ok {
		return exitCodeForRun(true, false, false)
	}

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	defer outMgr.Close()

	concurrency := cfg.Runtime.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	scheduler, err := NewScheduler(func(ctx context.Context, dc product.Context) output.Result {
		// A context's events are written from its own worker so they stay
		// in started, result, finished order.
		_ = outMgr.Write(output.Event{Type: output.EventContextStarted, RunID: r.id, Context: dc.String()})
		res := e.processContext(ctx, r, dc)
		_ = outMgr.Write(res)
		_ = outMgr.Write(output.Event{Type: output.EventContextFinished, RunID: r.id, Context: res.Context})
		return res
	}, concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating scheduler: %v\n", err)
		return exitCodeForRun(true, false, false)
	}

	_ = outMgr.Write(output.Event{Type: output.EventRunStarted, RunID: r.id, Command: string(mode), Contexts: len(contexts)})

	resCh, errCh := scheduler.Execute(ctx, contexts)

	for res := range resCh {
		r.logger.Debug("context done", zap.String("context", res.Context), zap.String("status", string(res.Status)))
	}

	var schedErr error
	// Drain scheduler errors; keep one non-nil error.
	for err := range errCh {
		if err != nil {
			schedErr = err
		}
	}
	if schedErr != nil {
		r.logger.Error("run interrupted", zap.Error(schedErr))
		if !cfg.Output.NoConsole {
			fmt.Fprintf(os.Stderr, "Run interrupted: %v\n", schedErr)
		}
	}

	tally := outMgr.Tally()
	failed := schedErr != nil || tally[output.StatusError] > 0
	code := exitCodeForRun(false, failed, tally[output.StatusNotReady] > 0)
	_ = outMgr.Write(output.Event{Type: output.EventRunFinished, RunID: r.id, ExitCode: code})
	r.logger.Info("run finished", zap.Int("exit_code", code))
	return code
}

func (e *Engine) processContext(ctx context.Context, r *run, dc product.Context) output.Result {
	res := output.Result{
		RunID:     r.id,
		Context:   dc.String(),
		Satellite: dc.Satellite,
		Day:       dc.DayCode(),
		Granule:   dc.Granule,
	}

	if r.mode == ModeContexts {
		res.Status = output.StatusListed
		return res
	}

	logger := r.logger.With(zap.Object("context", dc))
	fail := func(err error) output.Result {
		p := presentTaskError(err, r.cfg.Runtime.Verbose)
		res.Status = p.status
		res.Message = p.message
		return res
	}

	b := task.NewBuilder()
	if err := e.comp.BuildTask(ctx, dc, b); err != nil {
		return fail(err)
	}
	inputs, err := e.materialize(ctx, b)
	if err != nil {
		logger.Error("materialising inputs failed", zap.Error(err))
		return fail(err)
	}
	res.Inputs = inputs
	if r.mode == ModePrepare {
		res.Status = output.StatusPrepared
		return res
	}

	tr := e.comp.Run(ctx, inputs, dc)
	res.State = tr.State
	res.ExitCode = tr.ExitCode
	if tr.Err != nil {
		return fail(tr.Err)
	}
	res.Outputs = tr.Outputs

	out := tr.Outputs[product.DatasetOut]
	logSummary(logger, out)
	stored, err := e.store.Store(ctx, product.Daily(dc), out)
	if err != nil {
		err = fmt.Errorf("store %s: %w", out, err)
		logger.Error("storing output failed", zap.Error(err))
		return fail(err)
	}
	logger.Info("output stored", zap.String("path", stored))
	res.Stored = stored
	res.Status = output.StatusSuccess
	return res
}

// materialize resolves each registered input product to its catalog path.
func (e *Engine) materialize(ctx context.Context, b *task.Builder) (map[string]string, error) {
	products := b.Inputs()
	paths := make(map[string]string, len(products))
	for _, name := range b.Names() {
		path, err := e.store.Path(ctx, products[name])
		if err != nil {
			return nil, fmt.Errorf("materialise %s (%s): %w", name, products[name], err)
		}
		paths[name] = path
	}
	return paths, nil
}

func logSummary(logger *zap.Logger, path string) {
	ce := logger.Check(zap.DebugLevel, "output summary")
	if ce == nil {
		return
	}
	s, err := ncutil.Inspect(path)
	if err != nil {
		logger.Debug("output not inspectable", zap.String("path", path), zap.Error(err))
		return
	}
	ce.Write(
		zap.String("path", path),
		zap.Int("variables", len(s.Variables)),
		zap.Int("attributes", len(s.Attributes)))
}
