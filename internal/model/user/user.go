package user

import "time"

// User is an authenticated account together with its quota counters.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PINHash        string     `json:"-"`
	QuotaRemaining int        `json:"quota_remaining"`
	TotalQuota     int        `json:"total_quota"`
	FilleulsCount  int        `json:"filleuls_count"`
	ParrainEmail   string     `json:"parrain_email,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// HasQuota reports whether at least one exchange remains.
func (u *User) HasQuota() bool {
	return u != nil && u.QuotaRemaining > 0
}

// AddQuota credits both counters; total quota never decreases.
func (u *User) AddQuota(amount int) {
	if amount <= 0 {
		return
	}
	u.QuotaRemaining += amount
	u.TotalQuota += amount
}
