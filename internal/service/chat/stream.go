package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/model/chat"
	"github.com/nonotalk/backend/internal/service/ai"
	"github.com/nonotalk/backend/internal/service/history"
)

// SendStream answers a message by relaying model fragments to sink.
//
// Gate failures and crisis outcomes return before any event is emitted, so
// the caller can still answer with a plain response. Once start has been
// emitted, every failure ends with an error event and the returned error
// wraps ErrStreamAborted. The user message is committed before the model is
// called; the reply, the debit and the conversation update commit together
// after the last fragment, or not at all.
func (p *Pipeline) SendStream(ctx context.Context, req SendRequest, sink EventSink) (*SendResult, error) {
	t, err := p.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	if res, err := p.screen(ctx, t); res != nil || err != nil {
		return res, err
	}

	userMsg := &chat.Message{
		ConversationID:  t.conversation.ID,
		Content:         t.text,
		IsUser:          true,
		Timestamp:       p.opts.Now(),
		EmotionDetected: t.emotion,
	}
	if err := p.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	newestFirst, err := p.store.LatestMessages(ctx, t.conversation.ID, p.opts.StreamHistory+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	prompt := ai.Prompt{
		System:  p.assistant.SystemPrompt(t.emotion),
		History: history.Build(newestFirst, p.opts.StreamHistory, userMsg.ID),
		Query:   t.text,
	}

	if err := sink.Emit(ctx, StreamEvent{Type: EventStart}); err != nil {
		return nil, fmt.Errorf("%w: emit start: %w", ErrStreamAborted, err)
	}

	text, err := p.relay(ctx, prompt, sink, t.conversation.ID)
	if err != nil {
		return nil, p.abort(ctx, sink, fmt.Sprintf(ApologyFormat, err), err)
	}

	aiMsg := &chat.Message{
		ConversationID: t.conversation.ID,
		Content:        text,
		Timestamp:      p.after(userMsg.Timestamp),
	}
	remaining, err := p.commitTurn(ctx, t, userMsg, aiMsg, true)
	if err != nil {
		msg := InternalErrorText
		if errors.Is(err, ErrQuotaExhausted) {
			msg = "quota exhausted"
		}
		return nil, p.abort(ctx, sink, msg, err)
	}

	done := StreamEvent{
		Type:           EventDone,
		Text:           text,
		UserMessage:    userMsg,
		AIMessage:      aiMsg,
		QuotaRemaining: &remaining,
	}
	if err := sink.Emit(ctx, done); err != nil {
		// The turn is committed; only delivery of the final event failed.
		p.logger.Warn("failed to deliver done event", zap.Int64("conversation_id", t.conversation.ID), zap.Error(err))
	}

	return &SendResult{UserMessage: userMsg, AIMessage: aiMsg, QuotaRemaining: &remaining}, nil
}

// relay forwards non-empty fragments as delta events and returns their
// concatenation.
func (p *Pipeline) relay(ctx context.Context, prompt ai.Prompt, sink EventSink, conversationID int64) (string, error) {
	start := time.Now()

	stream, err := p.assistant.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var (
		full  strings.Builder
		first = true
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("receive fragment: %w", recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		if first {
			first = false
			ms := time.Since(start).Milliseconds()
			p.logger.Info("first fragment", zap.Int64("conversation_id", conversationID), zap.Int64("first_delta_ms", ms))
			if err := sink.Emit(ctx, StreamEvent{Type: EventFirstDeltaMS, MS: &ms}); err != nil {
				return "", fmt.Errorf("emit latency: %w", err)
			}
		}

		full.WriteString(chunk.Content)
		if err := sink.Emit(ctx, StreamEvent{Type: EventDelta, Content: chunk.Content}); err != nil {
			return "", fmt.Errorf("emit delta: %w", err)
		}
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}

// abort emits the terminal error event and wraps cause.
func (p *Pipeline) abort(ctx context.Context, sink EventSink, message string, cause error) error {
	p.logger.Error("stream aborted", zap.Error(cause))
	if err := sink.Emit(ctx, StreamEvent{Type: EventError, Error: message}); err != nil {
		p.logger.Debug("failed to deliver error event", zap.Error(err))
	}
	return fmt.Errorf("%w: %w", ErrStreamAborted, cause)
}
