package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/chat"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ImageRequest is an uploaded picture shared in a conversation.
type ImageRequest struct {
	UserID         int64
	ConversationID int64
	Filename       string
	Content        io.Reader
}

// ShareImage stores the picture, records it as a user message and answers
// with a fixed supportive reply. It costs one quota unit like any other turn.
func (p *Pipeline) ShareImage(ctx context.Context, req ImageRequest) (*SendResult, error) {
	if req.UserID == 0 {
		return nil, ErrNotAuthenticated
	}
	if req.Content == nil || req.Filename == "" {
		return nil, ErrImageRequired
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !imageExtensions[ext] {
		return nil, ErrUnsupportedImage
	}

	u, err := p.ledger.Check(ctx, p.store, req.UserID)
	if err != nil {
		return nil, err
	}
	conv, err := p.conversation(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("user_%d_%s%s", req.UserID, uuid.NewString(), ext)
	path, err := p.saveUpload(name, req.Content)
	if err != nil {
		return nil, err
	}

	t := &turn{user: u, conversation: conv, text: ImageMessageContent}
	userMsg := &chat.Message{
		ConversationID: conv.ID,
		Content:        ImageMessageContent,
		IsUser:         true,
		Timestamp:      p.opts.Now(),
		ImagePath:      "uploads/" + name,
	}
	aiMsg := &chat.Message{
		ConversationID: conv.ID,
		Content:        ImageReply,
		Timestamp:      p.after(userMsg.Timestamp),
	}
	remaining, err := p.commitTurn(ctx, t, userMsg, aiMsg, false)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			p.logger.Warn("failed to remove orphan upload", zap.String("path", path), zap.Error(rmErr))
		}
		return nil, err
	}

	p.logger.Info("image shared", zap.Int64("conversation_id", conv.ID), zap.String("file", name))
	return &SendResult{UserMessage: userMsg, AIMessage: aiMsg, QuotaRemaining: &remaining}, nil
}

func (p *Pipeline) saveUpload(name string, content io.Reader) (string, error) {
	dir := p.opts.UploadDir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(content, config.MaxUploadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		err = fmt.Errorf("write upload: %w", err)
	case n > config.MaxUploadBytes:
		err = ErrImageTooLarge
	case n == 0:
		err = ErrImageRequired
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

