package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nonotalk/backend/internal/model/chat"
)

func (q *queries) CreateCrisisAlert(ctx context.Context, a *chat.CrisisAlert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := q.queryRow(ctx, `
		INSERT INTO crisis_alerts (user_id, message, resolved, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`, a.UserID, a.Message, a.Resolved, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert crisis alert: %w", classify(err))
	}
	return nil
}

func (q *queries) ListCrisisAlerts(ctx context.Context, userID int64) ([]chat.CrisisAlert, error) {
	rows, err := q.query(ctx, `
		SELECT id, user_id, message, resolved, created_at
		FROM crisis_alerts WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list crisis alerts: %w", err)
	}
	defer rows.Close()

	var out []chat.CrisisAlert
	for rows.Next() {
		var a chat.CrisisAlert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Message, &a.Resolved, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan crisis alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveCrisisAlerts flips every open alert of the user and reports how many
// changed. Running it again is a no-op.
func (q *queries) ResolveCrisisAlerts(ctx context.Context, userID int64) (int64, error) {
	res, err := q.exec(ctx, `UPDATE crisis_alerts SET resolved = ? WHERE user_id = ? AND resolved = ?`, true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("resolve crisis alerts: %w", err)
	}
	return res.RowsAffected()
}
