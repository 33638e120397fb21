// Package respond maps service errors onto HTTP responses.
package respond

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/service/auth"
	chatservice "github.com/nonotalk/backend/internal/service/chat"
	"github.com/nonotalk/backend/internal/service/invite"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/pkg/utils"
)

// QuotaExceeded is the 403 body sent when a user has no exchanges left.
type QuotaExceeded struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	QuotaExceeded bool   `json:"quota_exceeded"`
}

var clientErrors = []struct {
	err     error
	status  int
	message string
}{
	{chatservice.ErrNotAuthenticated, http.StatusUnauthorized, "Non connecté"},
	{auth.ErrNotAuthenticated, http.StatusUnauthorized, "Non connecté"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Identifiants invalides"},
	{chatservice.ErrConversationNotFound, http.StatusNotFound, "Conversation non trouvée"},
	{chatservice.ErrEmptyMessage, http.StatusBadRequest, "Message vide"},
	{chatservice.ErrImageRequired, http.StatusBadRequest, "Aucune image fournie"},
	{chatservice.ErrUnsupportedImage, http.StatusBadRequest, "Format d'image non supporté"},
	{chatservice.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "Image trop volumineuse"},
	{auth.ErrMissingFields, http.StatusBadRequest, "Username et PIN requis"},
	{auth.ErrEmailRequired, http.StatusBadRequest, "Le champ email est obligatoire"},
	{auth.ErrInvalidEmail, http.StatusBadRequest, "Email invalide"},
	{auth.ErrInvalidPIN, http.StatusBadRequest, "Le PIN doit contenir 4 à 8 chiffres"},
	{auth.ErrUsernameTaken, http.StatusConflict, "Ce nom d'utilisateur existe déjà"},
	{auth.ErrEmailTaken, http.StatusConflict, "Cet email est déjà utilisé"},
	{invite.ErrEmailRequired, http.StatusBadRequest, "Email requis"},
	{invite.ErrInvalidEmail, http.StatusBadRequest, "Email invalide"},
	{invite.ErrSelfInvite, http.StatusBadRequest, "Tu ne peux pas t’inviter toi-même"},
	{invite.ErrAlreadyRegistered, http.StatusBadRequest, "Cet email a déjà un compte"},
	{invite.ErrInviterNotFound, http.StatusNotFound, "Utilisateur non trouvé"},
}

// Status returns the HTTP status and user-facing message for err. Unknown
// errors map to a generic 500.
func Status(err error) (int, string) {
	if errors.Is(err, quota.ErrExhausted) {
		return http.StatusForbidden, "Quota épuisé"
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			return ce.status, ce.message
		}
	}
	return http.StatusInternalServerError, "Erreur interne du serveur"
}

// Error writes the response for err. Unknown errors are logged and hidden
// behind a generic 500.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, message := Status(err)
	switch {
	case errors.Is(err, quota.ErrExhausted):
		utils.RespondJSON(w, status, QuotaExceeded{
			Error:         message,
			Message:       quota.CallToAction,
			QuotaExceeded: true,
		})
		return
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", zap.Error(err))
	}
	utils.RespondError(w, status, message)
}
