// Package store persists users, conversations, messages, crisis alerts,
// invitations and login sessions in a relational database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nonotalk/backend/internal/model/chat"
	"github.com/nonotalk/backend/internal/model/user"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrConflict       = errors.New("record already exists")
)

// Queries is the read/write contract shared by the store and its transactions.
type Queries interface {
	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id int64) (*user.User, error)
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePINHash(ctx context.Context, id int64, hash string) error
	// UseQuota debits one unit and returns the remaining balance. It returns
	// ErrQuotaExhausted without touching the row when nothing is left.
	UseQuota(ctx context.Context, userID int64) (int, error)
	AddQuota(ctx context.Context, userID int64, amount int) error
	IncrementReferrals(ctx context.Context, userID int64) error

	// Sessions
	CreateSession(ctx context.Context, token string, userID int64, createdAt, expiresAt time.Time) error
	GetSessionUser(ctx context.Context, token string, now time.Time) (*user.User, error)
	DeleteSession(ctx context.Context, token string) error

	// Conversations
	CreateConversation(ctx context.Context, c *chat.Conversation) error
	GetConversation(ctx context.Context, id, userID int64) (*chat.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error)
	TouchConversation(ctx context.Context, id int64, title string, updatedAt time.Time) error

	// Messages
	CreateMessage(ctx context.Context, m *chat.Message) error
	ListMessages(ctx context.Context, conversationID int64) ([]chat.Message, error)
	// LatestMessages returns at most limit messages, newest first.
	LatestMessages(ctx context.Context, conversationID int64, limit int) ([]chat.Message, error)

	// Crisis alerts
	CreateCrisisAlert(ctx context.Context, a *chat.CrisisAlert) error
	ListCrisisAlerts(ctx context.Context, userID int64) ([]chat.CrisisAlert, error)
	ResolveCrisisAlerts(ctx context.Context, userID int64) (int64, error)

	// Invitations
	CreateInvitation(ctx context.Context, inv *user.Invitation) error
	FindPendingInvitation(ctx context.Context, inviterID int64, email string) (*user.Invitation, error)
	FindPendingInvitationByEmail(ctx context.Context, email string) (*user.Invitation, error)
	AcceptInvitation(ctx context.Context, id int64, at time.Time) error
}

// Store adds transaction scoping and lifecycle to Queries.
type Store interface {
	Queries
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close() error
}
