package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/analysis/crisis"
	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/middleware"
	"github.com/nonotalk/backend/internal/model/persona"
	"github.com/nonotalk/backend/internal/queue"
	"github.com/nonotalk/backend/internal/service/ai"
	"github.com/nonotalk/backend/internal/service/ai/aitest"
	authService "github.com/nonotalk/backend/internal/service/auth"
	chatService "github.com/nonotalk/backend/internal/service/chat"
	inviteService "github.com/nonotalk/backend/internal/service/invite"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/internal/store/storetest"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()

	s := storetest.New(t)
	if db == nil {
		db = s
	}
	cfg := &config.Config{
		Server: config.ServerConfig{UploadDir: t.TempDir(), StaticDir: t.TempDir()},
		AI: config.AIConfig{
			Model:           "test-model",
			Temperature:     0.7,
			MaxTokens:       150,
			StreamMaxTokens: 180,
			RichHistory:     50,
			FallbackHistory: 6,
			StreamHistory:   8,
			PersonaID:       "nono",
		},
		Auth: config.AuthConfig{CookieName: "nonotalk_session", SessionTTL: time.Hour},
	}
	personas := persona.NewMemoryStore(persona.Seed())
	svc, err := ai.NewService(context.Background(), &aitest.FakeModel{Reply: "Je suis là."}, personas, cfg.AI, zap.NewNop())
	require.NoError(t, err)

	ledger := quota.NewLedger(zap.NewNop())
	client, _, err := queue.New(config.QueueConfig{}, zap.NewNop())
	require.NoError(t, err)

	return NewRouter(Deps{
		Config:   cfg,
		DB:       db,
		Personas: personas,
		Auth:     authService.NewService(s, ledger, cfg.Auth.SessionTTL, zap.NewNop()),
		Pipeline: chatService.NewPipeline(s, svc, crisis.NewDetector(crisis.DefaultKeywords), ledger,
			chatService.Options{UploadDir: cfg.Server.UploadDir}, zap.NewNop()),
		Invites: inviteService.NewService(s, client, zap.NewNop()),
		Origins: middleware.NewOriginMatcher([]string{"http://localhost:5173"}, regexp.MustCompile(`^https://.*\.onrender\.com$`)),
		Logger:  zap.NewNop(),
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, resp.Body.String())

	r = newTestRouter(t, failingPinger{})
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.JSONEq(t, `{"status":"ok","database":"error"}`, resp.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)

	for origin, allowed := range map[string]bool{
		"http://localhost:5173":         true,
		"https://nonotalk.onrender.com": true,
		"https://evil.test":             false,
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/chat/conversations", nil)
		req.Header.Set("Origin", origin)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code, origin)
		if allowed {
			assert.Equal(t, origin, resp.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", resp.Header().Get("Access-Control-Allow-Credentials"))
		} else {
			assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"), origin)
		}
	}
}

func TestChatRequiresSession(t *testing.T) {
	r := newTestRouter(t, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegisterThenChat(t *testing.T) {
	r := newTestRouter(t, nil)

	body, _ := json.Marshal(map[string]string{"username": "dora", "email": "dora@example.com", "pin": "2468"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	cookies := resp.Result().Cookies()
	require.NotEmpty(t, cookies)

	do := func(method, target, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, bytes.NewBufferString(payload))
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	resp = do(http.MethodPost, "/api/chat/conversations", `{}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		Conversation struct {
			ID int64 `json:"id"`
		} `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	resp = do(http.MethodPost, "/api/chat/conversations/"+strconv.FormatInt(created.Conversation.ID, 10)+"/send", `{"message":"bonjour"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "Je suis là.")

	resp = do(http.MethodGet, "/api/auth/check-quota", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"quota_remaining":9`)

	resp = do(http.MethodGet, "/api/persona", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}
