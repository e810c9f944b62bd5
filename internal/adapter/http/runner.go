package http

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner executes work that outlives the request that started it, such as
// answering a webhook question after the platform has been acknowledged.
// The request's values (request id) are kept; its cancellation is not.
type Runner struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewRunner creates a Runner that bounds each task by timeout.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Go runs fn in its own goroutine.
func (r *Runner) Go(ctx context.Context, task string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "background task failed", "task", task, "error", err)
		}
	}()
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
