package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nonotalk/backend/internal/model/user"
)

const userColumns = `id, username, email, pin_hash, quota_remaining, total_quota, filleuls_count, parrain_email, created_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u         user.User
		parrain   sql.NullString
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PINHash, &u.QuotaRemaining, &u.TotalQuota,
		&u.FilleulsCount, &parrain, &u.CreatedAt, &lastLogin); err != nil {
		return nil, classify(err)
	}
	u.ParrainEmail = parrain.String
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

func (q *queries) CreateUser(ctx context.Context, u *user.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	row := q.queryRow(ctx, `
		INSERT INTO users (username, email, pin_hash, quota_remaining, total_quota, filleuls_count, parrain_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		u.Username, u.Email, u.PINHash, u.QuotaRemaining, u.TotalQuota, u.FilleulsCount, nullString(u.ParrainEmail), u.CreatedAt)
	if err := row.Scan(&u.ID); err != nil {
		return fmt.Errorf("insert user: %w", classify(err))
	}
	return nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*user.User, error) {
	return scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (q *queries) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	return scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (q *queries) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return q.updateOne(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at, id)
}

func (q *queries) UpdatePINHash(ctx context.Context, id int64, hash string) error {
	return q.updateOne(ctx, `UPDATE users SET pin_hash = ? WHERE id = ?`, hash, id)
}

func (q *queries) UseQuota(ctx context.Context, userID int64) (int, error) {
	var remaining int
	err := q.queryRow(ctx, `
		UPDATE users SET quota_remaining = quota_remaining - 1
		WHERE id = ? AND quota_remaining > 0
		RETURNING quota_remaining`, userID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrQuotaExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("debit quota: %w", err)
	}
	return remaining, nil
}

func (q *queries) AddQuota(ctx context.Context, userID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("add quota: amount must be positive, got %d", amount)
	}
	return q.updateOne(ctx, `
		UPDATE users SET quota_remaining = quota_remaining + ?, total_quota = total_quota + ?
		WHERE id = ?`, amount, amount, userID)
}

func (q *queries) IncrementReferrals(ctx context.Context, userID int64) error {
	return q.updateOne(ctx, `UPDATE users SET filleuls_count = filleuls_count + 1 WHERE id = ?`, userID)
}

// updateOne runs an UPDATE expected to touch exactly one row.
func (q *queries) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
