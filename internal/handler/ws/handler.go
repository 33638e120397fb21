package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatHandler "github.com/nonotalk/backend/internal/handler/chat"
	"github.com/nonotalk/backend/internal/handler/respond"
	"github.com/nonotalk/backend/internal/middleware"
	chatService "github.com/nonotalk/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Handler WebSocket聊天处理器，每条入站消息触发一次流式回复
type Handler struct {
	pipeline *chatService.Pipeline
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// New 创建WebSocket处理器；没有 Origin 头的客户端（非浏览器）始终放行
func New(pipeline *chatService.Pipeline, origins middleware.OriginMatcher, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		logger:   logger.Named("http.ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins(origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由，挂载在 /chat 下
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{conversationID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Message string `json:"message"`
	Emotion string `json:"emotion"`
}

type crisisMessage struct {
	Type             string `json:"type"`
	EmergencyMessage string `json:"emergency_message"`
	Message          string `json:"message"`
}

type errorMessage struct {
	Type          chatService.EventType `json:"type"`
	Error         string                `json:"error"`
	QuotaExceeded bool                  `json:"quota_exceeded,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	convID, ok := chatHandler.ConversationID(r)
	if !ok {
		respond.Error(w, h.logger, chatService.ErrConversationNotFound)
		return
	}
	userID := middleware.UserIDFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := &socket{conn: conn}
	defer conn.Close()

	h.logger.Info("connection opened", zap.Int64("user_id", userID), zap.Int64("conversation_id", convID))

	ctx, cancel := context.WithCancel(r.Context())

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pingLoop(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, c, chatService.SendRequest{
			UserID:         userID,
			ConversationID: convID,
			Message:        msg.Message,
			Emotion:        msg.Emotion,
		})
		// Pongs are only processed while reading, so a long reply must not
		// count against the read deadline.
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *socket, req chatService.SendRequest) {
	res, err := h.pipeline.SendStream(ctx, req, c)
	switch {
	case errors.Is(err, chatService.ErrStreamAborted):
		h.logger.Info("stream aborted", zap.Int64("conversation_id", req.ConversationID), zap.Error(err))
	case err != nil:
		status, message := respond.Status(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("send failed", zap.Error(err))
		}
		_ = c.write(errorMessage{
			Type:          chatService.EventError,
			Error:         message,
			QuotaExceeded: errors.Is(err, chatService.ErrQuotaExhausted),
		})
	case res != nil && res.CrisisDetected:
		_ = c.write(crisisMessage{
			Type:             "crisis",
			EmergencyMessage: res.EmergencyMessage,
			Message:          "Mots-clés de crise détectés",
		})
	}
}

// socket serializes writes; gorilla connections allow one concurrent writer.
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) Emit(ctx context.Context, ev chatService.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(ev)
}

func (s *socket) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *socket) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
