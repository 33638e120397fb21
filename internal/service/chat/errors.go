package chat

import (
	"errors"

	"github.com/nonotalk/backend/internal/service/quota"
)

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrQuotaExhausted       = quota.ErrExhausted
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrImageRequired        = errors.New("image is required")
	ErrUnsupportedImage     = errors.New("unsupported image type")
	ErrImageTooLarge        = errors.New("image too large")
	// ErrStreamAborted marks failures that were already reported to the
	// caller as a terminal error event.
	ErrStreamAborted = errors.New("stream aborted")
)

// User-facing texts.
const (
	ApologyFormat       = "Désolé, je rencontre un problème technique. Peux-tu réessayer ? (Erreur: %s)"
	InternalErrorText   = "Une erreur interne est survenue. Réessaie dans un instant."
	ImageMessageContent = "[Image partagée]"
	ImageReply          = "Merci pour cette image. Elle semble refléter un état intérieur particulier. " +
		"Qu'est-ce qui t'a poussé à la choisir ou à la partager aujourd'hui ?"
)
