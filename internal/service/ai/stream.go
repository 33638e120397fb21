package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ModelStreamer opens a single provider stream with a shallow history
// window. There is no fallback tier: a failed stream is reported to the caller.
type ModelStreamer struct {
	chatModel model.BaseChatModel
	window    int
	opts      GenerationOptions
}

// NewModelStreamer wraps chatModel for streaming replies.
func NewModelStreamer(chatModel model.BaseChatModel, window int, opts GenerationOptions) *ModelStreamer {
	return &ModelStreamer{chatModel: chatModel, window: window, opts: opts}
}

// Stream returns fragments in provider delivery order. The caller must Close
// the reader.
func (s *ModelStreamer) Stream(ctx context.Context, p Prompt) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chatModel.Stream(ctx, buildMessages(p, s.window), s.opts.modelOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to open model stream: %w", err)
	}
	return stream, nil
}
