package user

import "time"

// Invitation is a pending or fulfilled referral sent by an existing user.
type Invitation struct {
	ID         int64      `json:"id"`
	InviterID  int64      `json:"inviter_id"`
	Email      string     `json:"email"`
	Accepted   bool       `json:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
