package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/handler/auth"
	"github.com/nonotalk/backend/internal/handler/chat"
	"github.com/nonotalk/backend/internal/handler/invite"
	"github.com/nonotalk/backend/internal/handler/persona"
	"github.com/nonotalk/backend/internal/handler/static"
	"github.com/nonotalk/backend/internal/handler/stream"
	"github.com/nonotalk/backend/internal/handler/ws"
	"github.com/nonotalk/backend/internal/middleware"
	personaModel "github.com/nonotalk/backend/internal/model/persona"
	authService "github.com/nonotalk/backend/internal/service/auth"
	chatService "github.com/nonotalk/backend/internal/service/chat"
	inviteService "github.com/nonotalk/backend/internal/service/invite"
	"github.com/nonotalk/backend/pkg/utils"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the router exposes.
type Deps struct {
	Config   *config.Config
	DB       Pinger
	Personas personaModel.Store
	Auth     *authService.Service
	Pipeline *chatService.Pipeline
	Invites  *inviteService.Service
	Origins  middleware.OriginMatcher
	Logger   *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.Origins))
	r.Use(middleware.Session(d.Auth, d.Config.Auth.CookieName))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handleHealth(d.DB))

		auth.New(d.Auth, d.Config.Auth, d.Logger).RegisterRoutes(api)
		invite.New(d.Invites, d.Logger).RegisterRoutes(api)
		persona.New(d.Personas).RegisterRoutes(api)

		api.Route("/chat", func(cr chi.Router) {
			cr.Use(middleware.RequireUser)
			chat.New(d.Pipeline, d.Logger).RegisterRoutes(cr)
			stream.New(d.Pipeline, d.Logger).RegisterRoutes(cr)
			ws.New(d.Pipeline, d.Origins, d.Logger).RegisterRoutes(cr)
		})
	})

	static.New(d.Config.Server.UploadDir, d.Config.Server.StaticDir, d.Logger).RegisterRoutes(r)

	return r
}

// handleHealth reports liveness and database reachability.
func handleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		if err := db.Ping(ctx); err != nil {
			status = "error"
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": status,
		})
	}
}
