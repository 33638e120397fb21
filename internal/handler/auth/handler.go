package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/handler/respond"
	"github.com/nonotalk/backend/internal/middleware"
	"github.com/nonotalk/backend/internal/model/user"
	authservice "github.com/nonotalk/backend/internal/service/auth"
	"github.com/nonotalk/backend/pkg/utils"
)

// Handler 认证相关的HTTP处理器
type Handler struct {
	svc    *authservice.Service
	cookie config.AuthConfig
	logger *zap.Logger
}

// New 创建认证处理器
func New(svc *authservice.Service, cookie config.AuthConfig, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, cookie: cookie, logger: logger.Named("http.auth")}
}

// RegisterRoutes 注册 /auth 路由；依赖外层已挂载 Session 中间件。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.With(middleware.RequireUser).Get("/me", h.handleMe)
		r.With(middleware.RequireUser).Get("/check-quota", h.handleCheckQuota)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		PIN          string `json:"pin"`
		ParrainEmail string `json:"parrain_email"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.svc.Register(r.Context(), authservice.RegisterRequest{
		Username:     payload.Username,
		Email:        payload.Email,
		PIN:          payload.PIN,
		ParrainEmail: payload.ParrainEmail,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.setCookie(w, sess.Token, sess.ExpiresAt)
	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"message":     "Inscription réussie",
		"user":        sess.User,
		"bonus_quota": sess.BonusQuota,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		PIN      string `json:"pin"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.svc.Login(r.Context(), payload.Username, payload.PIN)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.setCookie(w, sess.Token, sess.ExpiresAt)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message": "Connexion réussie",
		"user":    sess.User,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookie.CookieName); err == nil {
		if err := h.svc.Logout(r.Context(), c.Value); err != nil {
			h.logger.Warn("failed to drop session", zap.Error(err))
		}
	}
	h.setCookie(w, "", time.Unix(0, 0))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Déconnexion réussie"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]*user.User{"user": u})
}

func (h *Handler) handleCheckQuota(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"quota_remaining": u.QuotaRemaining,
		"total_quota":     u.TotalQuota,
		"filleuls_count":  u.FilleulsCount,
		"has_quota":       u.HasQuota(),
		"can_chat":        u.HasQuota(),
	})
}

// setCookie 写入会话 Cookie；跨站部署时需要 SameSite=None 与 Secure。
func (h *Handler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	sameSite := http.SameSiteLaxMode
	if h.cookie.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	maxAge := int(time.Until(expires).Seconds())
	if token == "" || maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: sameSite,
	})
}
