// Package auth registers users, checks PINs and manages login sessions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/internal/store"
)

var (
	ErrMissingFields      = errors.New("username and pin are required")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmail       = errors.New("email is invalid")
	ErrInvalidPIN         = errors.New("pin must be 4 to 8 digits")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already in use")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	Username     string
	Email        string
	PIN          string
	ParrainEmail string
}

// Session is an issued login token.
type Session struct {
	User      *user.User
	Token     string
	ExpiresAt time.Time
	// BonusQuota is the referral bonus granted at registration.
	BonusQuota int
}

// Service implements sign-up, login and session lookup.
type Service struct {
	store  store.Store
	ledger *quota.Ledger
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewService builds the service. Sessions live for ttl.
func NewService(s store.Store, ledger *quota.Ledger, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		store:  s,
		ledger: ledger,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("auth"),
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail is the loose check used for sign-up and invitations.
func ValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// HashPIN returns the bcrypt hash of pin.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}

// ValidPIN reports whether pin is 4 to 8 ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) < config.MinPINLength || len(pin) > config.MaxPINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Register creates the account, applies any referral bonus and opens a
// session, all in one transaction.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.PIN == "" {
		return nil, ErrMissingFields
	}
	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !ValidPIN(req.PIN) {
		return nil, ErrInvalidPIN
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := HashPIN(req.PIN)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &user.User{
		Username:     username,
		Email:        email,
		PINHash:      hash,
		ParrainEmail: NormalizeEmail(req.ParrainEmail),
		CreatedAt:    now,
	}
	s.ledger.OpenAccount(u)

	sess := &Session{User: u, Token: uuid.NewString(), ExpiresAt: now.Add(s.ttl)}
	err = s.store.WithTx(ctx, func(q store.Queries) error {
		if err := q.CreateUser(ctx, u); err != nil {
			return err
		}
		ref, err := s.ledger.ApplyReferral(ctx, q, u, req.ParrainEmail, now)
		if err != nil {
			return err
		}
		if ref != nil {
			sess.BonusQuota = ref.Bonus
		}
		return q.CreateSession(ctx, sess.Token, u.ID, now, sess.ExpiresAt)
	})
	if err != nil {
		u.ID = 0
		return nil, conflictError(err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.Int("bonus_quota", sess.BonusQuota))
	return sess, nil
}

// conflictError names the unique column behind a lost insert race.
func conflictError(err error) error {
	if !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("register user: %w", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "email"):
		return ErrEmailTaken
	}
	return fmt.Errorf("register user: %w", err)
}

// Login checks the PIN and opens a session. Accounts created before PIN
// hashing store the PIN in clear; it is accepted once and re-hashed.
func (s *Service) Login(ctx context.Context, username, pin string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || pin == "" {
		return nil, ErrMissingFields
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	legacy, ok := checkPIN(u.PINHash, pin)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	sess := &Session{User: u, Token: uuid.NewString(), ExpiresAt: now.Add(s.ttl)}
	err = s.store.WithTx(ctx, func(q store.Queries) error {
		if legacy {
			hash, err := HashPIN(pin)
			if err != nil {
				return err
			}
			if err := q.UpdatePINHash(ctx, u.ID, hash); err != nil {
				return err
			}
			u.PINHash = hash
		}
		if err := q.UpdateLastLogin(ctx, u.ID, now); err != nil {
			return err
		}
		return q.CreateSession(ctx, sess.Token, u.ID, now, sess.ExpiresAt)
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	u.LastLogin = &now

	if legacy {
		s.logger.Info("legacy pin re-hashed", zap.Int64("user_id", u.ID))
	}
	return sess, nil
}

// checkPIN compares pin against a bcrypt hash, or against a legacy clear
// value, in which case legacy is true.
func checkPIN(stored, pin string) (legacy, ok bool) {
	if strings.HasPrefix(stored, "$2") {
		return false, bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil
	}
	return true, stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(pin)) == 1
}

// Logout drops the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a live session token.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	u, err := s.store.GetSessionUser(ctx, token, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return u, nil
}

// Me reloads the caller's account.
func (s *Service) Me(ctx context.Context, userID int64) (*user.User, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
