package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/persona"
)

// Service is the completion client used by the message pipeline: a
// chain-then-direct fallback for buffered replies and a single-pass streamer.
type Service struct {
	persona   persona.Persona
	prompts   *PersonaPromptManager
	completer Completer
	streamer  *ModelStreamer
	logger    *zap.Logger
}

// NewService wires the completion tiers around chatModel.
func NewService(ctx context.Context, chatModel model.ChatModel, personas persona.Store, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	p, ok := personas.FindByID(cfg.PersonaID)
	if !ok {
		return nil, fmt.Errorf("persona %s not found", cfg.PersonaID)
	}
	logger = logger.Named("ai")

	buffered := GenerationOptions{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	streaming := GenerationOptions{Model: cfg.Model, MaxTokens: cfg.StreamMaxTokens, Temperature: cfg.Temperature}

	chain, err := NewChainCompleter(ctx, chatModel, cfg.RichHistory, buffered)
	if err != nil {
		return nil, err
	}

	return &Service{
		persona:   p,
		prompts:   NewPersonaPromptManager(),
		completer: NewFallback(logger, chain, NewDirectCompleter(chatModel, cfg.FallbackHistory, buffered)),
		streamer:  NewModelStreamer(chatModel, cfg.StreamHistory, streaming),
		logger:    logger,
	}, nil
}

// SystemPrompt renders the counselor prompt, optionally tuned to emotion.
func (s *Service) SystemPrompt(emotion string) string {
	return s.prompts.BuildSystemPrompt(&s.persona, emotion)
}

// Complete returns a full reply, trying each tier in turn.
func (s *Service) Complete(ctx context.Context, p Prompt) (string, error) {
	text, err := s.completer.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	s.logger.Debug("generated response", zap.Int("length", len(text)), zap.Int("history", len(p.History)))
	return text, nil
}

// Stream opens a streaming reply.
func (s *Service) Stream(ctx context.Context, p Prompt) (*schema.StreamReader[*schema.Message], error) {
	return s.streamer.Stream(ctx, p)
}
