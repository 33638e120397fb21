package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nonotalk/backend/internal/model/chat"
)

const conversationSelect = `
	SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
	FROM conversations c`

func scanConversation(row rowScanner) (*chat.Conversation, error) {
	var c chat.Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (q *queries) CreateConversation(ctx context.Context, c *chat.Conversation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	err := q.queryRow(ctx, `
		INSERT INTO conversations (user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", classify(err))
	}
	return nil
}

// GetConversation only returns conversations owned by userID.
func (q *queries) GetConversation(ctx context.Context, id, userID int64) (*chat.Conversation, error) {
	return scanConversation(q.queryRow(ctx, conversationSelect+` WHERE c.id = ? AND c.user_id = ?`, id, userID))
}

func (q *queries) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	rows, err := q.query(ctx, conversationSelect+` WHERE c.user_id = ? ORDER BY c.updated_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q *queries) TouchConversation(ctx context.Context, id int64, title string, updatedAt time.Time) error {
	return q.updateOne(ctx, `UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`, title, updatedAt, id)
}
