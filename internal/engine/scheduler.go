package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ctpdaily/internal/output"
	"ctpdaily/internal/product"
)

// processFunc computes the result of one context.
type processFunc func(ctx context.Context, dc product.Context) output.Result

// Scheduler runs contexts through a processFunc with bounded concurrency.
// Each context has its own working directory, so contexts never share files.
type Scheduler struct {
	process     processFunc
	concurrency int
}

func NewScheduler(process processFunc, concurrency int) (*Scheduler, error) {
	if process == nil {
		return nil, errors.New("process func is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	return &Scheduler{process: process, concurrency: concurrency}, nil
}

// Execute streams per-context results.
//
// Channel semantics:
//   - In the normal (non-canceled) case, exactly one Result is sent per context.
//   - With concurrency 1, results arrive in context order.
//   - On context cancellation, no new contexts are started; contexts already
//     running still report their result.
//   - The results channel and error channel are both closed reliably.
//   - The error channel is used for fatal errors / cancellation signals; per-context
//     failures are recorded on the Result.
func (s *Scheduler) Execute(ctx context.Context, contexts []product.Context) (<-chan output.Result, <-chan error) {
	resultsCh := make(chan output.Result)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultsCh)
		defer close(errCh)

		trySendErr := func(err error) {
			if err == nil {
				return
			}
			select {
			case errCh <- err:
			default:
			}
		}

		if ctx == nil {
			trySendErr(errors.New("context is nil"))
			return
		}
		if s == nil {
			trySendErr(errors.New("scheduler is nil"))
			return
		}
		if s.process == nil {
			trySendErr(errors.New("scheduler process func is nil"))
			return
		}
		if s.concurrency <= 0 {
			trySendErr(fmt.Errorf("scheduler concurrency must be >= 1, got %d", s.concurrency))
			return
		}

		sem := make(chan struct{}, s.concurrency)
		var wg sync.WaitGroup

	scheduleLoop:
		for _, dc := range contexts {
			if ctx.Err() != nil {
				break
			}

			select {
			case sem <- struct{}{}:
				// acquired
			case <-ctx.Done():
				break scheduleLoop
			}
			if ctx.Err() != nil {
				<-sem
				break
			}

			wg.Add(1)
			go func(dc product.Context) {
				defer wg.Done()
				defer func() { <-sem }()

				// The consumer drains resultsCh until it is closed.
				resultsCh <- s.process(ctx, dc)
			}(dc)
		}

		wg.Wait()
		trySendErr(ctx.Err())
	}()

	return resultsCh, errCh
}
