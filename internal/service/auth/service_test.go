package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/internal/store"
	"github.com/nonotalk/backend/internal/store/storetest"
)

func newService(t *testing.T) (*Service, *store.SQLStore) {
	t.Helper()
	s := storetest.New(t)
	return NewService(s, quota.NewLedger(zap.NewNop()), time.Hour, zap.NewNop()), s
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"no username", RegisterRequest{Email: "a@b.c", PIN: "1234"}, ErrMissingFields},
		{"no pin", RegisterRequest{Username: "a", Email: "a@b.c"}, ErrMissingFields},
		{"no email", RegisterRequest{Username: "a", Email: "  ", PIN: "1234"}, ErrEmailRequired},
		{"bad email", RegisterRequest{Username: "a", Email: "nope", PIN: "1234"}, ErrInvalidEmail},
		{"short pin", RegisterRequest{Username: "a", Email: "a@b.c", PIN: "123"}, ErrInvalidPIN},
		{"letters in pin", RegisterRequest{Username: "a", Email: "a@b.c", PIN: "12ab"}, ErrInvalidPIN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterOpensSession(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: " Alice@Example.COM ", PIN: "4321"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, 10, sess.User.QuotaRemaining)
	assert.Equal(t, 10, sess.User.TotalQuota)
	assert.Zero(t, sess.BonusQuota)
	assert.NotEqual(t, "4321", sess.User.PINHash)

	u, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", PIN: "4321"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Register(ctx, RegisterRequest{Username: "alice2", Email: "ALICE@example.com", PIN: "4321"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	stored, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, stored.QuotaRemaining)
}

func TestRegisterWithInvitationGrantsOnce(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	inviter := storetest.SeedUser(t, s, "inviter", 10)
	require.NoError(t, s.CreateInvitation(ctx, &user.Invitation{InviterID: inviter.ID, Email: "friend@example.com"}))

	sess, err := svc.Register(ctx, RegisterRequest{Username: "friend", Email: "Friend@example.com", PIN: "1111"})
	require.NoError(t, err)
	assert.Equal(t, 5, sess.BonusQuota)
	assert.Equal(t, 15, sess.User.QuotaRemaining)
	assert.Equal(t, 15, sess.User.TotalQuota)

	reloaded, err := s.GetUser(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.QuotaRemaining)
	assert.Equal(t, 1, reloaded.FilleulsCount)

	_, err = s.FindPendingInvitationByEmail(ctx, "friend@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Register(ctx, RegisterRequest{Username: "friend2", Email: "friend@example.com", PIN: "1111"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	reloaded, err = s.GetUser(ctx, inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.QuotaRemaining)
	assert.Equal(t, 1, reloaded.FilleulsCount)
}

func TestRegisterWithParrainEmail(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	parrain := storetest.SeedUser(t, s, "parrain", 10)

	sess, err := svc.Register(ctx, RegisterRequest{Username: "filleul", Email: "filleul@example.com", PIN: "2222",
		ParrainEmail: "PARRAIN@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 5, sess.BonusQuota)
	assert.Equal(t, 15, sess.User.QuotaRemaining)

	reloaded, err := s.GetUser(ctx, parrain.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.TotalQuota)
	assert.Equal(t, 1, reloaded.FilleulsCount)

	sess, err = svc.Register(ctx, RegisterRequest{Username: "solo", Email: "solo@example.com", PIN: "2222",
		ParrainEmail: "nobody@example.com"})
	require.NoError(t, err)
	assert.Zero(t, sess.BonusQuota)
	assert.Equal(t, 10, sess.User.QuotaRemaining)
}

func TestLogin(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", PIN: "1234"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "9999")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob", "1234")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "", "1234")
	assert.ErrorIs(t, err, ErrMissingFields)

	sess, err := svc.Login(ctx, " alice ", "1234")
	require.NoError(t, err)
	require.NotNil(t, sess.User.LastLogin)

	stored, err := s.GetUser(ctx, sess.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
}

func TestLoginRehashesLegacyPIN(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	// storetest seeds the PIN in clear, like accounts predating hashing.
	u := storetest.SeedUser(t, s, "legacy", 10)

	_, err := svc.Login(ctx, "legacy", "0000")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "legacy", "1234")
	require.NoError(t, err)

	stored, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "1234", stored.PINHash)

	legacy, ok := checkPIN(stored.PINHash, "1234")
	assert.False(t, legacy)
	assert.True(t, ok)
}

func TestLogoutAndExpiry(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", PIN: "1234"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	svc.now = func() time.Time { return time.Now().UTC() }

	require.NoError(t, svc.Logout(ctx, sess.Token))
	_, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	require.NoError(t, svc.Logout(ctx, ""))
}

func TestMe(t *testing.T) {
	svc, s := newService(t)
	u := storetest.SeedUser(t, s, "alice", 3)

	got, err := svc.Me(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.Me(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.Me(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a@b.c"))
	assert.False(t, ValidEmail("@b.c"))
	assert.False(t, ValidEmail("a@"))
	assert.False(t, ValidEmail("a b@c.d"))
	assert.False(t, ValidEmail("ab.c"))
}
