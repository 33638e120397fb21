package invite

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/handler/respond"
	"github.com/nonotalk/backend/internal/middleware"
	inviteservice "github.com/nonotalk/backend/internal/service/invite"
	"github.com/nonotalk/backend/pkg/utils"
)

// Handler 邀请好友的HTTP处理器
type Handler struct {
	svc    *inviteservice.Service
	logger *zap.Logger
}

// New 创建邀请处理器
func New(svc *inviteservice.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.Named("http.invite")}
}

// RegisterRoutes 注册邀请路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireUser).Post("/invite", h.handleInvite)
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Invite(r.Context(), middleware.UserIDFromContext(r.Context()), payload.Email)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	status, message := http.StatusOK, "Invitation déjà envoyée"
	if res.Created {
		status, message = http.StatusCreated, "Invitation créée"
	}
	utils.RespondJSON(w, status, map[string]any{
		"message":    message,
		"invitation": res.Invitation,
		"email_sent": res.EmailSent,
	})
}
