package executor

import (
	"context"

	"github.com/vk/seedgrid/internal/ctxlog"
)

// worker is the processing loop of one worker.
func (e *Executor[T]) worker(ctx context.Context, queue <-chan T, workerID int) error {
	ctx = ctxlog.With(ctx, "worker", workerID)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.")

	for job := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.handle(ctx, job); err != nil {
			logger.Error("Job failed, stopping the batch.", "error", err)
			return err
		}
	}
	logger.Debug("Worker finished.")
	return nil
}
