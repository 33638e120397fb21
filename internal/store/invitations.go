package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nonotalk/backend/internal/model/user"
)

const invitationColumns = `id, inviter_id, email, accepted, accepted_at, created_at`

func scanInvitation(row rowScanner) (*user.Invitation, error) {
	var (
		inv        user.Invitation
		acceptedAt sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.InviterID, &inv.Email, &inv.Accepted, &acceptedAt, &inv.CreatedAt); err != nil {
		return nil, classify(err)
	}
	inv.AcceptedAt = timePtr(acceptedAt)
	return &inv, nil
}

func (q *queries) CreateInvitation(ctx context.Context, inv *user.Invitation) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	err := q.queryRow(ctx, `
		INSERT INTO invitations (inviter_id, email, accepted, accepted_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`, inv.InviterID, inv.Email, inv.Accepted, nullTime(inv.AcceptedAt), inv.CreatedAt).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", classify(err))
	}
	return nil
}

// FindPendingInvitation returns the oldest unaccepted invitation for the pair.
func (q *queries) FindPendingInvitation(ctx context.Context, inviterID int64, email string) (*user.Invitation, error) {
	return scanInvitation(q.queryRow(ctx, `SELECT `+invitationColumns+` FROM invitations
		WHERE inviter_id = ? AND email = ? AND accepted = ?
		ORDER BY id ASC LIMIT 1`, inviterID, email, false))
}

// FindPendingInvitationByEmail returns the oldest unaccepted invitation sent
// to email by anyone.
func (q *queries) FindPendingInvitationByEmail(ctx context.Context, email string) (*user.Invitation, error) {
	return scanInvitation(q.queryRow(ctx, `SELECT `+invitationColumns+` FROM invitations
		WHERE email = ? AND accepted = ?
		ORDER BY id ASC LIMIT 1`, email, false))
}

// AcceptInvitation marks a pending invitation accepted. An invitation that was
// already accepted yields ErrNotFound.
func (q *queries) AcceptInvitation(ctx context.Context, id int64, at time.Time) error {
	return q.updateOne(ctx, `UPDATE invitations SET accepted = ?, accepted_at = ? WHERE id = ? AND accepted = ?`, true, at, id, false)
}
