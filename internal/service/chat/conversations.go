package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/chat"
	"github.com/nonotalk/backend/internal/service/history"
)

// ListConversations returns the caller's conversations, most recently active first.
func (p *Pipeline) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	convs, err := p.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	return convs, nil
}

// CreateConversation opens a conversation. An empty title gets the default
// placeholder, which the first message later replaces.
func (p *Pipeline) CreateConversation(ctx context.Context, userID int64, title string) (*chat.Conversation, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = config.DefaultConversationTitle
	}

	now := p.opts.Now()
	conv := &chat.Conversation{UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := p.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	p.logger.Debug("conversation created", zap.Int64("user_id", userID), zap.Int64("conversation_id", conv.ID))
	return conv, nil
}

// ConversationMessages returns the latest limit messages of an owned
// conversation in chronological order. A limit of zero returns the whole
// conversation.
func (p *Pipeline) ConversationMessages(ctx context.Context, userID, conversationID int64, limit int) ([]chat.Message, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	if _, err := p.conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		msgs, err := p.store.ListMessages(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}
		return msgs, nil
	}

	newestFirst, err := p.store.LatestMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	msgs := history.FromNewestFirst(newestFirst)
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}

// AcknowledgeCrisis resolves every open alert of the caller. Calling it
// again resolves nothing and succeeds.
func (p *Pipeline) AcknowledgeCrisis(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, ErrNotAuthenticated
	}
	n, err := p.store.ResolveCrisisAlerts(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve crisis alerts: %w", err)
	}
	if n > 0 {
		p.logger.Info("crisis alerts acknowledged", zap.Int64("user_id", userID), zap.Int64("resolved", n))
	}
	return n, nil
}
