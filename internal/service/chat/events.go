package chat

import (
	"context"

	"github.com/nonotalk/backend/internal/model/chat"
)

// EventType names a streaming event.
type EventType string

const (
	EventStart        EventType = "start"
	EventFirstDeltaMS EventType = "first_delta_ms"
	EventDelta        EventType = "delta"
	EventDone         EventType = "done"
	EventError        EventType = "error"
)

// StreamEvent is one message of a streamed reply. A stream is start, an
// optional first_delta_ms, zero or more delta, then exactly one done or error.
type StreamEvent struct {
	Type           EventType     `json:"type"`
	Content        string        `json:"content,omitempty"`
	MS             *int64        `json:"ms,omitempty"`
	Text           string        `json:"text,omitempty"`
	UserMessage    *chat.Message `json:"user_message,omitempty"`
	AIMessage      *chat.Message `json:"ai_message,omitempty"`
	QuotaRemaining *int          `json:"quota_remaining,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// EventSink delivers stream events to the caller's transport.
type EventSink interface {
	Emit(ctx context.Context, ev StreamEvent) error
}
