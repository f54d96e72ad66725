package runner

import (
	"context"
	"log/slog"
)

type loggingTask struct {
	inner  Task
	logger *slog.Logger
}

// WithLogging wraps a Task to log failures at warn level.
func WithLogging(task Task, logger *slog.Logger) Task {
	if logger == nil {
		return task
	}
	return &loggingTask{inner: task, logger: logger}
}

func (l *loggingTask) Do(ctx context.Context, index int) error {
	err := l.inner.Do(ctx, index)
	if err != nil {
		l.logger.WarnContext(ctx, "task failed", "index", index, "error", err)
	}
	return err
}
