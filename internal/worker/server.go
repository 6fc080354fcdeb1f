package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server runs the asynq worker that drains persistence tasks.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, repo NotificationSaver, logger *zap.Logger) *Server {
	log := logger.With(zap.String("component", "worker_server"))
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error("Task failed",
					zap.String("task_id", taskID),
					zap.String("task_type", task.Type()),
					zap.Int("retries", retryCount),
					zap.Int("max_retry", maxRetry),
					zap.Error(err))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationPersist, NewNotificationPersistHandler(repo, log).ProcessTask)

	return &Server{server: server, mux: mux, logger: log}
}

// Start blocks until Shutdown. Run it in its own goroutine.
func (s *Server) Start() {
	s.logger.Info("Worker server starting")
	if err := s.server.Run(s.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		s.logger.Error("Worker server stopped with error", zap.Error(err))
		return
	}
	s.logger.Info("Worker server stopped")
}

func (s *Server) Shutdown() {
	s.logger.Info("Shutting down worker server")
	s.server.Shutdown()
}
