// Package storetest opens migrated in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/model/chat"
	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/store"
)

// New returns an empty, migrated SQLite store closed at test cleanup.
func New(t testing.TB) *store.SQLStore {
	t.Helper()

	s, err := store.Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, store.Migrate(s, zap.NewNop()))
	return s
}

// SeedUser inserts a user with the given quota.
func SeedUser(t testing.TB, q store.Queries, username string, quota int) *user.User {
	t.Helper()

	u := &user.User{
		Username:       username,
		Email:          username + "@example.com",
		PINHash:        "1234",
		QuotaRemaining: quota,
		TotalQuota:     max(quota, 10),
	}
	require.NoError(t, q.CreateUser(context.Background(), u))
	return u
}

// SeedConversation inserts a conversation owned by userID.
func SeedConversation(t testing.TB, q store.Queries, userID int64, title string) *chat.Conversation {
	t.Helper()

	c := &chat.Conversation{UserID: userID, Title: title}
	require.NoError(t, q.CreateConversation(context.Background(), c))
	return c
}
