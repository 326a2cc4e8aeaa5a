package daily

import (
	"context"
	"fmt"
	"os"

	"ctpdaily/internal/delivery"
	"ctpdaily/internal/product"
	"ctpdaily/internal/runner"
	"ctpdaily/internal/task"

	"go.uber.org/zap"
)

// RunTask runs the daily binary over the materialised inputs of dc and
// returns {"out": path} on success.
func (c *Computation) RunTask(ctx context.Context, inputs map[string]string, dc product.Context) (map[string]string, error) {
	res := c.Run(ctx, inputs, dc)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Outputs, nil
}

// Run is RunTask reporting the full task result.
func (c *Computation) Run(ctx context.Context, inputs map[string]string, dc product.Context) task.Result {
	logger := c.logger.With(zap.Object("context", dc))

	d, err := c.deliveries.Lookup(product.ComputationCTPDaily, dc.Deliveries.HIRSCTPDaily)
	if err != nil {
		err = fmt.Errorf("%s: %w", prefix, err)
		logger.Error("delivery lookup failed", zap.Error(err))
		return task.Result{State: task.StatePending, Err: err}
	}

	req := runner.Request{
		Dir:    c.WorkDir(dc),
		Inputs: inputs,
		Binary: d.Bin(BinaryName),
		Output: product.DailyFilename(dc),
		Env:    delivery.Env(os.Environ(), d),
	}
	logger.Info("running task",
		zap.String("delivery", d.String()),
		zap.String("version", d.Version),
		zap.String("output", req.Output),
		zap.Int("inputs", len(inputs)))

	res := c.runner.Run(ctx, req)
	if res.Err != nil {
		res.Err = fmt.Errorf("%s: %w", prefix, res.Err)
		logger.Error("task failed", zap.String("state", string(res.State)), zap.Int("exit_code", res.ExitCode), zap.Error(res.Err))
		return res
	}
	logger.Info("task succeeded", zap.String("out", res.Outputs[product.DatasetOut]))
	return res
}
