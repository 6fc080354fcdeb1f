package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"presence-service/internal/domain"
)

const (
	TypeNotificationPersist = "notification:persist"

	persistMaxRetry = 5
	persistTimeout  = 10 * time.Second
)

// NotificationPersistPayload carries one notification to be written to the inbox.
type NotificationPersistPayload struct {
	Notification domain.Notification `json:"notification"`
}

// NewNotificationPersistTask builds the task. The notification id doubles as
// the task id so an enqueue retry cannot schedule a second write.
func NewNotificationPersistTask(n domain.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(NotificationPersistPayload{Notification: n})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationPersist, payload,
		asynq.TaskID(n.ID.String()),
		asynq.MaxRetry(persistMaxRetry),
		asynq.Timeout(persistTimeout),
		asynq.Queue("default"),
	), nil
}
