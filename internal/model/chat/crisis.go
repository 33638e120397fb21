package chat

import "time"

// CrisisAlert records a message that matched a crisis phrase.
type CrisisAlert struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}
