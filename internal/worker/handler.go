package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"presence-service/internal/domain"
)

// NotificationSaver writes a notification to durable storage.
type NotificationSaver interface {
	Save(ctx context.Context, n *domain.Notification) error
}

// NotificationPersistHandler processes notification:persist tasks.
type NotificationPersistHandler struct {
	repo   NotificationSaver
	logger *zap.Logger
}

func NewNotificationPersistHandler(repo NotificationSaver, logger *zap.Logger) *NotificationPersistHandler {
	return &NotificationPersistHandler{repo: repo, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *NotificationPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	log := h.logger.With(
		zap.String("task_id", taskID),
		zap.String("task_type", t.Type()),
		zap.Int("retry", retry),
		zap.Int("max_retry", maxRetry),
	)

	var payload NotificationPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("Failed to unmarshal task payload", zap.Error(err))
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.repo.Save(ctx, &payload.Notification); err != nil {
		log.Warn("Failed to persist notification",
			zap.String("notification_id", payload.Notification.ID.String()),
			zap.Error(err))
		return fmt.Errorf("persist notification %s: %w", payload.Notification.ID, err)
	}

	log.Debug("Notification persisted", zap.String("notification_id", payload.Notification.ID.String()))
	return nil
}
