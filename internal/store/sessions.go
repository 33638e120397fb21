package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nonotalk/backend/internal/model/user"
)

func (q *queries) CreateSession(ctx context.Context, token string, userID int64, createdAt, expiresAt time.Time) error {
	if _, err := q.exec(ctx, `INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, createdAt, expiresAt); err != nil {
		return fmt.Errorf("insert session: %w", classify(err))
	}
	return nil
}

// GetSessionUser resolves a live session token to its user.
func (q *queries) GetSessionUser(ctx context.Context, token string, now time.Time) (*user.User, error) {
	return scanUser(q.queryRow(ctx, `
		SELECT u.id, u.username, u.email, u.pin_hash, u.quota_remaining, u.total_quota, u.filleuls_count,
		       u.parrain_email, u.created_at, u.last_login
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`, token, now))
}

func (q *queries) DeleteSession(ctx context.Context, token string) error {
	if _, err := q.exec(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
