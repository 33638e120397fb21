// Package invite lets users invite friends by email for a shared quota bonus.
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/mail"
	"github.com/nonotalk/backend/internal/model/user"
	"github.com/nonotalk/backend/internal/queue"
	"github.com/nonotalk/backend/internal/service/auth"
	"github.com/nonotalk/backend/internal/store"
)

// TaskEmail is the queue task delivering an invitation email.
const TaskEmail = "invite:email"

var (
	ErrEmailRequired     = errors.New("email is required")
	ErrInvalidEmail      = errors.New("email is invalid")
	ErrSelfInvite        = errors.New("cannot invite yourself")
	ErrAlreadyRegistered = errors.New("email already has an account")
	ErrInviterNotFound   = errors.New("inviter not found")
)

// Result reports the invitation and whether its email went out.
type Result struct {
	Invitation *user.Invitation
	// Created is false when a pending invitation was reused.
	Created   bool
	EmailSent bool
}

// EmailPayload is the JSON body of a TaskEmail task.
type EmailPayload struct {
	To      string `json:"to"`
	Inviter string `json:"inviter"`
}

// Service creates invitations and dispatches their emails.
type Service struct {
	store  store.Store
	queue  queue.Client
	now    func() time.Time
	logger *zap.Logger
}

func NewService(s store.Store, q queue.Client, logger *zap.Logger) *Service {
	return &Service{
		store:  s,
		queue:  q,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("invite"),
	}
}

// Invite records an invitation from inviterID to email and sends the email.
// A pending invitation for the same pair is reused and its email re-sent.
func (s *Service) Invite(ctx context.Context, inviterID int64, email string) (*Result, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !auth.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	inviter, err := s.store.GetUser(ctx, inviterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInviterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load inviter: %w", err)
	}
	if auth.NormalizeEmail(inviter.Email) == email {
		return nil, ErrSelfInvite
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	res := &Result{}
	inv, err := s.store.FindPendingInvitation(ctx, inviter.ID, email)
	switch {
	case err == nil:
		res.Invitation = inv
	case errors.Is(err, store.ErrNotFound):
		inv = &user.Invitation{InviterID: inviter.ID, Email: email, CreatedAt: s.now()}
		if err := s.store.CreateInvitation(ctx, inv); err != nil {
			return nil, fmt.Errorf("create invitation: %w", err)
		}
		res.Invitation, res.Created = inv, true
	default:
		return nil, fmt.Errorf("find invitation: %w", err)
	}

	res.EmailSent = s.dispatch(ctx, email, inviter.Username)
	s.logger.Info("invitation sent",
		zap.Int64("inviter_id", inviter.ID),
		zap.Int64("invitation_id", inv.ID),
		zap.Bool("created", res.Created),
		zap.Bool("email_sent", res.EmailSent))
	return res, nil
}

// dispatch enqueues the email. With the inline queue the result reflects
// actual delivery; with a broker it reflects acceptance by the broker.
func (s *Service) dispatch(ctx context.Context, to, inviter string) bool {
	payload, err := json.Marshal(EmailPayload{To: to, Inviter: inviter})
	if err != nil {
		s.logger.Error("encode invitation email", zap.Error(err))
		return false
	}
	opt := queue.EnqueueOption{MaxRetry: 3, Timeout: 30 * time.Second}
	if _, err := s.queue.Enqueue(ctx, queue.Task{Type: TaskEmail, Payload: payload}, opt); err != nil {
		s.logger.Warn("invitation email not sent", zap.String("to", to), zap.Error(err))
		return false
	}
	return true
}

// RegisterEmailTask binds the invitation email handler to srv.
func RegisterEmailTask(srv queue.Server, sender mail.Sender, baseURL, signupURL string) {
	srv.Register(TaskEmail, func(ctx context.Context, t queue.Task) error {
		var p EmailPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode invitation payload: %w", err)
		}
		msg, err := mail.Invitation(p.To, p.Inviter, baseURL, signupURL)
		if err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	})
}
