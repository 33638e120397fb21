package ai

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Warmer issues at most one warm-up request for its lifetime.
type Warmer struct {
	once sync.Once
}

var processWarmer Warmer

// StartWarmup fires the process-wide warm-up call in the background. Only the
// first call in a process starts it; later calls return nil.
func StartWarmup(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration, logger *zap.Logger) <-chan struct{} {
	return processWarmer.Start(ctx, chatModel, timeout, logger)
}

// Start launches the warm-up once. The returned channel closes when the call
// finishes; it is nil when the warm-up already ran. Failures are only logged.
func (w *Warmer) Start(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration, logger *zap.Logger) <-chan struct{} {
	var done chan struct{}
	w.once.Do(func() {
		done = make(chan struct{})
		go func() {
			defer close(done)

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			_, err := chatModel.Generate(callCtx,
				[]*schema.Message{schema.UserMessage("ping")},
				model.WithMaxTokens(1))
			if err != nil {
				logger.Warn("model warm-up failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
				return
			}
			logger.Info("model warm-up done", zap.Duration("elapsed", time.Since(start)))
		}()
	})
	return done
}
