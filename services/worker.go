package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// JobProcessor runs one queued import job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, id string) error
}

// StartImportWorker starts a background worker that consumes queued import
// ids and runs them through the pipeline. It returns a channel closed when
// the worker has stopped.
func StartImportWorker(ctx context.Context, jobs JobStore, proc JobProcessor, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if jobs == nil || proc == nil {
		logger.Warn("import worker not started: missing dependencies")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		RunImportWorker(ctx, jobs, proc, logger)
	}()
	return done
}

// RunImportWorker blocks until ctx is cancelled.
func RunImportWorker(ctx context.Context, jobs JobStore, proc JobProcessor, logger *zap.Logger) {
	logger.Info("import worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("import worker stopping")
			return
		default:
		}

		id, err := jobs.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info("import worker stopping")
				return
			}
			logger.Error("failed to read import queue", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if id == "" {
			continue
		}

		if err := proc.ProcessJob(ctx, id); err != nil {
			logger.Error("import job failed", zap.String("job", id), zap.Error(err))
			continue
		}
		logger.Info("import job done", zap.String("job", id))
	}
}
