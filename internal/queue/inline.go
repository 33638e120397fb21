package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Inline runs each enqueued task synchronously with its registered handler,
// so the caller sees the handler's error. It serves as both Client and Server.
type Inline struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	seq      atomic.Int64
	logger   *zap.Logger
}

var (
	_ Client = (*Inline)(nil)
	_ Server = (*Inline)(nil)
)

func NewInline(logger *zap.Logger) *Inline {
	return &Inline{handlers: make(map[string]Handler), logger: logger}
}

func (q *Inline) Register(taskType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

func (q *Inline) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	q.mu.RLock()
	h, ok := q.handlers[t.Type]
	q.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("inline queue: no handler for %q", t.Type)
	}

	for _, op := range opts {
		if op.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, op.Timeout)
			defer cancel()
		}
	}

	id := fmt.Sprintf("inline-%d", q.seq.Add(1))
	if err := h(ctx, t); err != nil {
		q.logger.Warn("inline task failed", zap.String("type", t.Type), zap.String("id", id), zap.Error(err))
		return id, err
	}
	return id, nil
}

func (q *Inline) Close() error { return nil }

// Run has nothing to consume; it waits for shutdown.
func (q *Inline) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
