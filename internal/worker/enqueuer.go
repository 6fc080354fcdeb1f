package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

// TaskEnqueuer is the part of *asynq.Client the Enqueuer uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands notifications to the worker instead of writing them inline.
type Enqueuer struct {
	client TaskEnqueuer
	logger *zap.Logger
}

func NewEnqueuer(client TaskEnqueuer, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

// Save schedules the durable write of n.
func (e *Enqueuer) Save(ctx context.Context, n *domain.Notification) error {
	task, err := NewNotificationPersistTask(*n)
	if err != nil {
		return fmt.Errorf("build persist task: %w", err)
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue persist task: %w", err)
	}

	e.logger.Debug("Notification persist task enqueued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("notification_id", n.ID.String()))
	return nil
}
