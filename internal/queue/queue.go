// Package queue runs background tasks, on Redis through asynq or inline in
// the calling goroutine when no broker is configured.
package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
)

// Task is a typed job with an opaque payload. Payload encoding belongs to
// the task's producer and handler.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the backend to retry.
// Handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption tunes delivery. Zero values mean unspecified.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	Timeout   time.Duration
}

// Client enqueues tasks.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs handlers for enqueued tasks. Run blocks until ctx is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}

// New returns the asynq client and server when a Redis URL is configured,
// and a shared inline pair otherwise.
func New(cfg config.QueueConfig, logger *zap.Logger) (Client, Server, error) {
	logger = logger.Named("queue")
	if cfg.RedisURL == "" {
		inline := NewInline(logger)
		return inline, inline, nil
	}

	client, err := NewAsynqClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	server, err := NewAsynqServer(cfg.RedisURL, cfg.Concurrency, logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, server, nil
}
