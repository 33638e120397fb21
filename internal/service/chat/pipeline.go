package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/analysis/crisis"
	"github.com/nonotalk/backend/internal/analysis/emotion"
	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/chat"
	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/service/ai"
	"github.com/nonotalk/backend/internal/service/history"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/internal/store"
)

// Assistant is the completion client consumed by the pipeline.
type Assistant interface {
	SystemPrompt(emotion string) string
	Complete(ctx context.Context, p ai.Prompt) (string, error)
	Stream(ctx context.Context, p ai.Prompt) (*schema.StreamReader[*schema.Message], error)
}

// Options tunes the pipeline.
type Options struct {
	RichHistory   int
	StreamHistory int
	UploadDir     string
	Now           func() time.Time
}

// SendRequest is one user turn.
type SendRequest struct {
	UserID         int64
	ConversationID int64
	Message        string
	Emotion        string
}

// SendResult is either a crisis outcome or a completed exchange.
type SendResult struct {
	CrisisDetected   bool          `json:"crisis_detected,omitempty"`
	EmergencyMessage string        `json:"emergency_message,omitempty"`
	UserMessage      *chat.Message `json:"user_message,omitempty"`
	AIMessage        *chat.Message `json:"ai_message,omitempty"`
	QuotaRemaining   *int          `json:"quota_remaining,omitempty"`
	// Degraded is set when the reply is an unpersisted apology.
	Degraded bool `json:"degraded,omitempty"`
}

// Pipeline runs the send flow: quota check, crisis check, history, model
// call, persistence and quota debit.
type Pipeline struct {
	store     store.Store
	assistant Assistant
	detector  *crisis.Detector
	ledger    *quota.Ledger
	opts      Options
	logger    *zap.Logger
}

// NewPipeline wires the pipeline collaborators.
func NewPipeline(s store.Store, assistant Assistant, detector *crisis.Detector, ledger *quota.Ledger, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.RichHistory <= 0 {
		opts.RichHistory = 50
	}
	if opts.StreamHistory <= 0 {
		opts.StreamHistory = 8
	}
	return &Pipeline{
		store:     s,
		assistant: assistant,
		detector:  detector,
		ledger:    ledger,
		opts:      opts,
		logger:    logger.Named("chat"),
	}
}

// turn carries what the gates established about a request.
type turn struct {
	user         *user.User
	conversation *chat.Conversation
	text         string
	emotion      string
}

// Send answers a message with one buffered reply.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
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

	newestFirst, err := p.store.LatestMessages(ctx, t.conversation.ID, p.opts.RichHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	prompt := ai.Prompt{
		System:  p.assistant.SystemPrompt(t.emotion),
		History: history.Build(newestFirst, p.opts.RichHistory, 0),
		Query:   t.text,
	}

	reply, genErr := p.assistant.Complete(ctx, prompt)
	if genErr != nil {
		return p.degrade(ctx, t, userMsg, genErr)
	}

	aiMsg := &chat.Message{
		ConversationID: t.conversation.ID,
		Content:        reply,
		Timestamp:      p.after(userMsg.Timestamp),
	}
	remaining, err := p.commitTurn(ctx, t, userMsg, aiMsg, true)
	if err != nil {
		return nil, err
	}

	return &SendResult{UserMessage: userMsg, AIMessage: aiMsg, QuotaRemaining: &remaining}, nil
}

// degrade keeps the user's input, skips the debit and answers with an
// apology that is never stored.
func (p *Pipeline) degrade(ctx context.Context, t *turn, userMsg *chat.Message, cause error) (*SendResult, error) {
	p.logger.Error("completion failed, replying with apology",
		zap.Int64("conversation_id", t.conversation.ID), zap.Error(cause))

	if err := p.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	apology := &chat.Message{
		ConversationID: t.conversation.ID,
		Content:        fmt.Sprintf(ApologyFormat, cause),
		Timestamp:      p.after(userMsg.Timestamp),
	}
	remaining := t.user.QuotaRemaining
	return &SendResult{UserMessage: userMsg, AIMessage: apology, QuotaRemaining: &remaining, Degraded: true}, nil
}

// admit runs the gates shared by every send variant, in order: caller,
// quota, conversation ownership, non-empty text.
func (p *Pipeline) admit(ctx context.Context, req SendRequest) (*turn, error) {
	if req.UserID == 0 {
		return nil, ErrNotAuthenticated
	}

	u, err := p.ledger.Check(ctx, p.store, req.UserID)
	if err != nil {
		return nil, err
	}

	conv, err := p.conversation(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	// A client-supplied tag (usually from voice analysis) wins over the text.
	tag := strings.TrimSpace(req.Emotion)
	if tag == "" {
		tag = string(emotion.Analyze(text).Emotion)
	}
	return &turn{user: u, conversation: conv, text: text, emotion: tag}, nil
}

// screen records an alert and returns the emergency outcome when the text
// contains a crisis phrase. Nothing else is written on that path.
func (p *Pipeline) screen(ctx context.Context, t *turn) (*SendResult, error) {
	word, hit := p.detector.Match(t.text)
	if !hit {
		return nil, nil
	}

	alert := &chat.CrisisAlert{UserID: t.user.ID, Message: t.text, CreatedAt: p.opts.Now()}
	if err := p.store.CreateCrisisAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("record crisis alert: %w", err)
	}
	p.logger.Warn("crisis phrase detected",
		zap.Int64("user_id", t.user.ID), zap.Int64("alert_id", alert.ID), zap.String("keyword", word))

	return &SendResult{CrisisDetected: true, EmergencyMessage: crisis.EmergencyMessage}, nil
}

// commitTurn stores the exchange, debits one unit and bumps the conversation
// in a single transaction. userMsg is skipped when it already has an ID.
func (p *Pipeline) commitTurn(ctx context.Context, t *turn, userMsg, aiMsg *chat.Message, retitle bool) (int, error) {
	title := t.conversation.Title
	if retitle {
		title = nextTitle(title, t.text)
	}

	insertUser := userMsg.ID == 0
	var remaining int
	err := p.store.WithTx(ctx, func(q store.Queries) error {
		if insertUser {
			if err := q.CreateMessage(ctx, userMsg); err != nil {
				return err
			}
		}
		if err := q.CreateMessage(ctx, aiMsg); err != nil {
			return err
		}
		var err error
		if remaining, err = p.ledger.Use(ctx, q, t.user.ID); err != nil {
			return err
		}
		return q.TouchConversation(ctx, t.conversation.ID, title, aiMsg.Timestamp)
	})
	if err != nil {
		if insertUser {
			userMsg.ID = 0
		}
		aiMsg.ID = 0
		if errors.Is(err, ErrQuotaExhausted) {
			return 0, ErrQuotaExhausted
		}
		p.logger.Error("turn rolled back", zap.Int64("conversation_id", t.conversation.ID), zap.Error(err))
		return 0, fmt.Errorf("persist turn: %w", err)
	}

	t.conversation.Title = title
	t.conversation.UpdatedAt = aiMsg.Timestamp
	return remaining, nil
}

func (p *Pipeline) conversation(ctx context.Context, userID, conversationID int64) (*chat.Conversation, error) {
	conv, err := p.store.GetConversation(ctx, conversationID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

// after returns the current time, nudged past prev so replies sort after
// the message they answer.
func (p *Pipeline) after(prev time.Time) time.Time {
	now := p.opts.Now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// nextTitle derives a title from the first message while the conversation
// still has no title of its own.
func nextTitle(current, text string) string {
	if current != "" && current != config.DefaultConversationTitle {
		return current
	}
	if utf8.RuneCountInString(text) <= config.TitleMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:config.TitleMaxRunes]) + "..."
}
