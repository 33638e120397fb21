package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/model/chat"
	"github.com/nonotalk/backend/internal/service/history"
)

var (
	ErrAllTiersFailed   = errors.New("all completion tiers failed")
	ErrEmptyCompletion  = errors.New("model returned an empty completion")
	ErrModelUnavailable = errors.New("chat model unavailable")
)

// Prompt is one completion request. History is chronological and does not
// contain Query.
type Prompt struct {
	System  string
	History []chat.Message
	Query   string
}

// Completer produces a full reply for a prompt.
type Completer interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// GenerationOptions bounds one provider call.
type GenerationOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

func (o GenerationOptions) modelOptions() []model.Option {
	opts := []model.Option{
		model.WithMaxTokens(o.MaxTokens),
		model.WithTemperature(o.Temperature),
	}
	if o.Model != "" {
		opts = append(opts, model.WithModel(o.Model))
	}
	return opts
}

// ChainCompleter runs the prompt through an eino chain
// (ChatTemplate -> ChatModel) with a deep history window.
type ChainCompleter struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	window int
	opts   GenerationOptions
}

// NewChainCompleter compiles the template chain around chatModel.
func NewChainCompleter(ctx context.Context, chatModel model.ChatModel, window int, opts GenerationOptions) (*ChainCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainCompleter{chain: runnable, window: window, opts: opts}, nil
}

func (c *ChainCompleter) Name() string { return "chain" }

func (c *ChainCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	input := map[string]any{
		"system":  p.System,
		"history": toSchemaMessages(history.Window(p.History, c.window)),
		"query":   p.Query,
	}

	response, err := c.chain.Invoke(ctx, input, compose.WithChatModelOption(c.opts.modelOptions()...))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	return contentOf(response)
}

// DirectCompleter calls the model with a hand-built message list and a
// shallow history window.
type DirectCompleter struct {
	chatModel model.BaseChatModel
	window    int
	opts      GenerationOptions
}

// NewDirectCompleter wraps chatModel.
func NewDirectCompleter(chatModel model.BaseChatModel, window int, opts GenerationOptions) *DirectCompleter {
	return &DirectCompleter{chatModel: chatModel, window: window, opts: opts}
}

func (c *DirectCompleter) Name() string { return "direct" }

func (c *DirectCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	response, err := c.chatModel.Generate(ctx, buildMessages(p, c.window), c.opts.modelOptions()...)
	if err != nil {
		return "", fmt.Errorf("failed to generate: %w", err)
	}
	return contentOf(response)
}

// Fallback tries each tier in order and returns the first success.
type Fallback struct {
	tiers  []Completer
	logger *zap.Logger
}

// NewFallback builds an ordered tier chain.
func NewFallback(logger *zap.Logger, tiers ...Completer) *Fallback {
	return &Fallback{tiers: tiers, logger: logger}
}

func (f *Fallback) Name() string { return "fallback" }

func (f *Fallback) Complete(ctx context.Context, p Prompt) (string, error) {
	errs := make([]error, 0, len(f.tiers))
	for i, tier := range f.tiers {
		text, err := tier.Complete(ctx, p)
		if err == nil {
			if i > 0 {
				f.logger.Info("completion served by fallback tier", zap.String("tier", tier.Name()))
			}
			return text, nil
		}

		f.logger.Warn("completion tier failed", zap.String("tier", tier.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrAllTiersFailed, errors.Join(errs...))
}

// buildMessages lays out system, windowed history and the query.
func buildMessages(p Prompt, window int) []*schema.Message {
	msgs := make([]*schema.Message, 0, window+2)
	msgs = append(msgs, schema.SystemMessage(p.System))
	msgs = append(msgs, toSchemaMessages(history.Window(p.History, window))...)
	msgs = append(msgs, schema.UserMessage(p.Query))
	return msgs
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.IsUser {
			out = append(out, schema.UserMessage(msg.Content))
		} else {
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}

func contentOf(msg *schema.Message) (string, error) {
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(msg.Content), nil
}
