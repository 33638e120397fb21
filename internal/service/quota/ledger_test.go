package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/store"
	"github.com/nonotalk/backend/internal/store/storetest"
)

func register(t *testing.T, s store.Store, l *Ledger, email, parrain string) (*user.User, *Referral) {
	t.Helper()
	ctx := context.Background()

	u := &user.User{Username: email, Email: email, PINHash: "h"}
	l.OpenAccount(u)

	var ref *Referral
	err := s.WithTx(ctx, func(q store.Queries) error {
		if err := q.CreateUser(ctx, u); err != nil {
			return err
		}
		var err error
		ref, err = l.ApplyReferral(ctx, q, u, parrain, time.Now().UTC())
		return err
	})
	require.NoError(t, err)
	return u, ref
}

func TestCheckFailsClosed(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	l := NewLedger(zap.NewNop())

	_, err := l.Check(ctx, s, 42)
	assert.ErrorIs(t, err, ErrExhausted)

	empty := storetest.SeedUser(t, s, "empty", 0)
	_, err = l.Check(ctx, s, empty.ID)
	assert.ErrorIs(t, err, ErrExhausted)

	ok := storetest.SeedUser(t, s, "ok", 1)
	u, err := l.Check(ctx, s, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.QuotaRemaining)
}

func TestUseDebitsExactlyOne(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	l := NewLedger(zap.NewNop())
	u := storetest.SeedUser(t, s, "alice", 3)

	remaining, err := l.Use(ctx, s, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalQuota)
}

func TestOpenAccountUsesBaseQuota(t *testing.T) {
	u := &user.User{QuotaRemaining: 99, TotalQuota: 99}
	NewLedger(zap.NewNop()).OpenAccount(u)

	assert.Equal(t, 10, u.QuotaRemaining)
	assert.Equal(t, 10, u.TotalQuota)
}

func TestInvitationReferralGrantsOnce(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	l := NewLedger(zap.NewNop())
	inviter := storetest.SeedUser(t, s, "inviter", 10)
	require.NoError(t, s.CreateInvitation(ctx, &user.Invitation{InviterID: inviter.ID, Email: "new@example.com"}))

	newUser, ref := register(t, s, l, "new@example.com", "")
	require.NotNil(t, ref)
	assert.Equal(t, SourceInvitation, ref.Source)
	assert.Equal(t, 15, newUser.QuotaRemaining)
	assert.Equal(t, 15, newUser.TotalQuota)

	stored, err := s.GetUser(ctx, newUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stored.QuotaRemaining)

	inv, err := s.GetUser(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, inv.QuotaRemaining)
	assert.Equal(t, 15, inv.TotalQuota)
	assert.Equal(t, 1, inv.FilleulsCount)

	_, err = s.FindPendingInvitationByEmail(ctx, "new@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The same email cannot register twice, so the bonus cannot be claimed again.
	dup := &user.User{Username: "other", Email: "new@example.com", PINHash: "h"}
	l.OpenAccount(dup)
	assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrConflict)

	inv, err = s.GetUser(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.FilleulsCount)
}

func TestInvitationTakesPriorityOverParrain(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	l := NewLedger(zap.NewNop())
	inviter := storetest.SeedUser(t, s, "inviter", 10)
	parrain := storetest.SeedUser(t, s, "parrain", 10)
	require.NoError(t, s.CreateInvitation(ctx, &user.Invitation{InviterID: inviter.ID, Email: "new@example.com"}))

	_, ref := register(t, s, l, "new@example.com", parrain.Email)
	require.NotNil(t, ref)
	assert.Equal(t, inviter.ID, ref.InviterID)

	p, err := s.GetUser(ctx, parrain.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.QuotaRemaining)
	assert.Equal(t, 0, p.FilleulsCount)
}

func TestParrainReferral(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	l := NewLedger(zap.NewNop())
	parrain := storetest.SeedUser(t, s, "parrain", 4)

	newUser, ref := register(t, s, l, "filleul@example.com", "  PARRAIN@example.com ")
	require.NotNil(t, ref)
	assert.Equal(t, SourceParrain, ref.Source)
	assert.Equal(t, 15, newUser.QuotaRemaining)

	p, err := s.GetUser(ctx, parrain.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, p.QuotaRemaining)
	assert.Equal(t, 15, p.TotalQuota)
	assert.Equal(t, 1, p.FilleulsCount)
}

func TestUnknownParrainGrantsNothing(t *testing.T) {
	s := storetest.New(t)
	l := NewLedger(zap.NewNop())

	newUser, ref := register(t, s, l, "solo@example.com", "ghost@example.com")
	assert.Nil(t, ref)
	assert.Equal(t, 10, newUser.QuotaRemaining)
}
