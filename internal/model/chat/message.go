package chat

import "time"

// Message is one immutable turn of a conversation.
type Message struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversation_id"`
	Content         string    `json:"content"`
	IsUser          bool      `json:"is_user"`
	Timestamp       time.Time `json:"timestamp"`
	EmotionDetected string    `json:"emotion_detected,omitempty"`
	ImagePath       string    `json:"image_path,omitempty"`
	AudioPath       string    `json:"audio_path,omitempty"`
}
