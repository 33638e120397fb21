package config

const (
	// Quota
	BaseQuota     = 10
	ReferralBonus = 5

	// Conversations
	DefaultConversationTitle = "Nouvelle conversation"
	TitleMaxRunes            = 50

	// Streaming: padding comment that pushes proxies to flush the first event.
	StreamPadding = 2048

	// Uploads
	MaxUploadBytes = 10 << 20

	// PIN length bounds
	MinPINLength = 4
	MaxPINLength = 8
)
