// Package quota owns the per-user exchange allowance and the referral bonus.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/store"
)

// CallToAction is shown when a user runs out of exchanges.
const CallToAction = "Tu as atteint ta limite gratuite. Invite un ami pour débloquer +5 échanges gratuits pour chacun 🎁"

var ErrExhausted = errors.New("quota exhausted")

// Referral sources.
const (
	SourceInvitation = "invitation"
	SourceParrain    = "parrain"
)

// Referral describes a bonus granted at registration.
type Referral struct {
	Source    string
	InviterID int64
	Bonus     int
}

// Ledger applies quota rules on top of store queries. Callers choose whether
// the queries run inside a transaction.
type Ledger struct {
	base   int
	bonus  int
	logger *zap.Logger
}

// NewLedger returns a ledger with the standard base quota and referral bonus.
func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{base: config.BaseQuota, bonus: config.ReferralBonus, logger: logger.Named("quota")}
}

// Check loads the user and fails closed: a missing user or an empty balance
// both yield ErrExhausted.
func (l *Ledger) Check(ctx context.Context, q store.Queries, userID int64) (*user.User, error) {
	u, err := q.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.HasQuota() {
		return nil, ErrExhausted
	}
	return u, nil
}

// Use debits one exchange and returns the remaining balance.
func (l *Ledger) Use(ctx context.Context, q store.Queries, userID int64) (int, error) {
	remaining, err := q.UseQuota(ctx, userID)
	if errors.Is(err, store.ErrQuotaExhausted) {
		return 0, ErrExhausted
	}
	return remaining, err
}

// Add credits amount to both counters.
func (l *Ledger) Add(ctx context.Context, q store.Queries, userID int64, amount int) error {
	return q.AddQuota(ctx, userID, amount)
}

// OpenAccount sets the starting balance of a user that is not stored yet.
func (l *Ledger) OpenAccount(u *user.User) {
	u.QuotaRemaining, u.TotalQuota = 0, 0
	u.AddQuota(l.base)
}

// ApplyReferral grants the registration bonus for a freshly inserted user.
// A pending invitation addressed to the user's email wins; otherwise a
// parrainEmail naming an existing account is honored. Run it in the same
// transaction as the user insert.
func (l *Ledger) ApplyReferral(ctx context.Context, q store.Queries, newUser *user.User, parrainEmail string, now time.Time) (*Referral, error) {
	inv, err := q.FindPendingInvitationByEmail(ctx, newUser.Email)
	switch {
	case err == nil:
		return l.applyInvitation(ctx, q, newUser, inv, now)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find invitation: %w", err)
	}

	parrainEmail = strings.ToLower(strings.TrimSpace(parrainEmail))
	if parrainEmail == "" {
		return nil, nil
	}
	parrain, err := q.GetUserByEmail(ctx, parrainEmail)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find parrain: %w", err)
	}
	if parrain.ID == newUser.ID {
		return nil, nil
	}
	if err := l.grant(ctx, q, parrain.ID, newUser); err != nil {
		return nil, err
	}
	l.logger.Info("parrain bonus granted", zap.Int64("inviter_id", parrain.ID), zap.Int64("user_id", newUser.ID))
	return &Referral{Source: SourceParrain, InviterID: parrain.ID, Bonus: l.bonus}, nil
}

func (l *Ledger) applyInvitation(ctx context.Context, q store.Queries, newUser *user.User, inv *user.Invitation, now time.Time) (*Referral, error) {
	if _, err := q.GetUser(ctx, inv.InviterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load inviter: %w", err)
	}

	if err := q.AcceptInvitation(ctx, inv.ID, now); err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	if err := l.grant(ctx, q, inv.InviterID, newUser); err != nil {
		return nil, err
	}
	l.logger.Info("invitation bonus granted", zap.Int64("inviter_id", inv.InviterID), zap.Int64("user_id", newUser.ID))
	return &Referral{Source: SourceInvitation, InviterID: inv.InviterID, Bonus: l.bonus}, nil
}

// grant credits both parties and counts the conversion for the inviter.
func (l *Ledger) grant(ctx context.Context, q store.Queries, inviterID int64, newUser *user.User) error {
	if err := q.AddQuota(ctx, inviterID, l.bonus); err != nil {
		return fmt.Errorf("credit inviter: %w", err)
	}
	if err := q.IncrementReferrals(ctx, inviterID); err != nil {
		return fmt.Errorf("count referral: %w", err)
	}
	if err := q.AddQuota(ctx, newUser.ID, l.bonus); err != nil {
		return fmt.Errorf("credit new user: %w", err)
	}
	newUser.AddQuota(l.bonus)
	return nil
}
