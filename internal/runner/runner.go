// Package runner stages task inputs, runs the task binary and checks its
// output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"ctpdaily/internal/ncutil"
	"ctpdaily/internal/product"
	"ctpdaily/internal/task"

	"go.uber.org/zap"
)

// Request describes one binary invocation.
type Request struct {
	// Dir is the working directory; inputs are staged and the output is
	// written here.
	Dir string
	// Inputs maps input names to local file paths.
	Inputs map[string]string
	Binary string
	// Output is the output file name, relative to Dir.
	Output string
	// Env is the binary's environment. Nil means the current process
	// environment.
	Env []string
}

type Runner struct {
	compressor ncutil.Compressor
	logger     *zap.Logger
}

// New returns a runner. A nil compressor leaves outputs as produced.
func New(compressor ncutil.Compressor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{compressor: compressor, logger: logger}
}

// Run executes req. The result's State is the last state reached; a
// non-terminal state means the run stopped outside the binary (staging or
// compression). Outputs is set only on success.
func (r *Runner) Run(ctx context.Context, req Request) task.Result {
	m := task.NewMachine()
	fail := func(err error) task.Result {
		return task.Result{State: m.State(), Err: err}
	}

	if req.Dir == "" || req.Binary == "" || req.Output == "" {
		return fail(errors.New("runner: Dir, Binary and Output are required"))
	}
	if len(req.Inputs) == 0 {
		return fail(errors.New("runner: no inputs to stage"))
	}

	staged, err := Stage(req.Dir, req.Inputs)
	if err != nil {
		return fail(err)
	}
	manifest, err := WriteManifest(req.Dir, staged)
	if err != nil {
		return fail(err)
	}
	if err := m.Transition(task.StateInputsStaged); err != nil {
		return fail(err)
	}
	r.logger.Debug("inputs staged", zap.String("dir", req.Dir), zap.Int("count", len(staged)))

	out := filepath.Join(req.Dir, req.Output)
	if err := removeStale(out); err != nil {
		return fail(err)
	}

	if err := m.Transition(task.StateBinaryRunning); err != nil {
		return fail(err)
	}
	code, err := r.exec(ctx, req, filepath.Base(manifest))
	if err != nil || code != 0 {
		_ = m.Transition(task.StateBinaryFailed)
		r.logger.Error("task binary failed", zap.String("binary", req.Binary), zap.Int("exit_code", code), zap.Error(err))
		return task.Result{
			State:    m.State(),
			ExitCode: code,
			Err:      &BinaryFailedError{Binary: req.Binary, ExitCode: code, Err: err},
		}
	}

	if fi, err := os.Stat(out); err != nil || !fi.Mode().IsRegular() {
		_ = m.Transition(task.StateOutputMissing)
		r.logger.Error("task output missing", zap.String("path", out))
		return task.Result{State: m.State(), Err: &OutputMissingError{Path: out}}
	}

	if r.compressor != nil {
		compressed, err := r.compressor.Compress(ctx, out)
		if err != nil {
			return fail(fmt.Errorf("compress output: %w", err))
		}
		out = compressed
	}

	if err := m.Transition(task.StateSuccess); err != nil {
		return fail(err)
	}
	return task.Result{
		State:   m.State(),
		Outputs: map[string]string{product.DatasetOut: out},
	}
}

// exec runs `<binary> <manifest> <output>` in req.Dir. Combined stdout and
// stderr go to <output>.log. A start failure is returned as an error with
// exit code -1.
func (r *Runner) exec(ctx context.Context, req Request, manifest string) (int, error) {
	logPath := filepath.Join(req.Dir, req.Output+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return -1, fmt.Errorf("create log: %w", err)
	}
	defer logFile.Close()

	var tail bytes.Buffer
	w := io.MultiWriter(logFile, &tail)

	cmd := exec.CommandContext(ctx, req.Binary, manifest, req.Output)
	cmd.Dir = req.Dir
	if req.Env != nil {
		cmd.Env = req.Env
	}
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the process group, not just the binary.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	r.logger.Info("running task binary", zap.String("cmd", cmd.String()), zap.String("dir", req.Dir))
	err = cmd.Run()
	if out := strings.TrimSpace(tail.String()); out != "" {
		r.logger.Debug("task binary output", zap.String("log", logPath), zap.String("output", lastLines(out, 20)))
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, fmt.Errorf("execution cancelled: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				// Shell convention: 128 + signal number.
				return 128 + int(ws.Signal()), fmt.Errorf("killed by signal %s", ws.Signal())
			}
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed to start %s: %w", req.Binary, err)
	}
	return 0, nil
}

// removeStale deletes an output and compression leftover from an earlier
// attempt in the same directory, so only this run's binary can produce out.
func removeStale(out string) error {
	leftovers := []string{out, strings.TrimSuffix(out, filepath.Ext(out)) + ".nccopy.tmp"}
	for _, p := range leftovers {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale output: %w", err)
		}
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
