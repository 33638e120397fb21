package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nonotalk/backend/internal/model/chat"
)

const messageColumns = `id, conversation_id, content, is_user, timestamp, emotion_detected, image_path, audio_path`

func scanMessages(rows *sql.Rows) ([]chat.Message, error) {
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var (
			m                        chat.Message
			emotion, image, audioRef sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.IsUser, &m.Timestamp, &emotion, &image, &audioRef); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.EmotionDetected = emotion.String
		m.ImagePath = image.String
		m.AudioPath = audioRef.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *queries) CreateMessage(ctx context.Context, m *chat.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	err := q.queryRow(ctx, `
		INSERT INTO messages (conversation_id, content, is_user, timestamp, emotion_detected, image_path, audio_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		m.ConversationID, m.Content, m.IsUser, m.Timestamp,
		nullString(m.EmotionDetected), nullString(m.ImagePath), nullString(m.AudioPath)).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", classify(err))
	}
	return nil
}

// ListMessages returns the whole conversation in chronological order.
func (q *queries) ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	rows, err := q.query(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return scanMessages(rows)
}

func (q *queries) LatestMessages(ctx context.Context, conversationID int64, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := q.query(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	return scanMessages(rows)
}
