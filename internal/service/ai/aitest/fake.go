// Package aitest provides a scripted chat model for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Call records one provider invocation.
type Call struct {
	Messages []*schema.Message
	Options  *model.Options
	Stream   bool
}

// FakeModel is a model.ChatModel driven by fixed replies.
type FakeModel struct {
	mu sync.Mutex

	// GenerateFunc answers Generate; when nil Reply is returned.
	GenerateFunc func(call int, msgs []*schema.Message) (*schema.Message, error)
	Reply        string

	// Chunks are streamed in order; StreamErr fails the open, ChunkErr is
	// delivered after the chunks.
	Chunks    []string
	StreamErr error
	ChunkErr  error

	calls []Call
}

var _ model.ChatModel = (*FakeModel)(nil)

func (f *FakeModel) Generate(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Messages: msgs, Options: model.GetCommonOptions(&model.Options{}, opts...)})
	n := len(f.calls)
	f.mu.Unlock()

	if f.GenerateFunc != nil {
		return f.GenerateFunc(n, msgs)
	}
	if f.Reply == "" {
		return nil, errors.New("fake: no reply configured")
	}
	return schema.AssistantMessage(f.Reply, nil), nil
}

func (f *FakeModel) Stream(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Messages: msgs, Options: model.GetCommonOptions(&model.Options{}, opts...), Stream: true})
	f.mu.Unlock()

	if f.StreamErr != nil {
		return nil, f.StreamErr
	}

	if f.ChunkErr == nil {
		out := make([]*schema.Message, 0, len(f.Chunks))
		for _, c := range f.Chunks {
			out = append(out, schema.AssistantMessage(c, nil))
		}
		return schema.StreamReaderFromArray(out), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(f.Chunks) + 1)
	for _, c := range f.Chunks {
		sw.Send(schema.AssistantMessage(c, nil), nil)
	}
	sw.Send(nil, f.ChunkErr)
	sw.Close()
	return sr, nil
}

func (f *FakeModel) BindTools([]*schema.ToolInfo) error {
	return nil
}

// Calls returns a snapshot of recorded invocations.
func (f *FakeModel) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
