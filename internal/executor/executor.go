// Package executor runs independent jobs on a fixed pool of workers.
//
// Jobs are fed through a channel to Workers goroutines managed by an
// errgroup. The first job that returns an error cancels the context shared
// by every worker; jobs not yet picked up are skipped and the error is
// returned from Execute. Jobs that can fail without stopping the batch
// must handle that failure themselves and return nil.
package executor

import (
	"context"

	"github.com/vk/seedgrid/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Handler processes one job.
type Handler[T any] func(ctx context.Context, job T) error

// Executor fans jobs out to its workers.
type Executor[T any] struct {
	workers int
	handle  Handler[T]
}

// New returns an executor with the given number of workers, at least one.
func New[T any](workers int, handle Handler[T]) *Executor[T] {
	return &Executor[T]{workers: max(workers, 1), handle: handle}
}

// Execute runs every job and waits for the workers to finish. It returns
// the first job error, or the context error if ctx ended first.
func (e *Executor[T]) Execute(ctx context.Context, jobs []T) error {
	logger := ctxlog.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)

	queue := make(chan T)
	g.Go(func() error {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := min(e.workers, max(len(jobs), 1))
	for id := 1; id <= workers; id++ {
		g.Go(func() error {
			return e.worker(gctx, queue, id)
		})
	}

	logger.Debug("Executor started.", "workers", workers, "jobs", len(jobs))
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}
