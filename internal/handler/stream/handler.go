package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	chatHandler "github.com/nonotalk/backend/internal/handler/chat"
	"github.com/nonotalk/backend/internal/handler/respond"
	"github.com/nonotalk/backend/internal/middleware"
	chatService "github.com/nonotalk/backend/internal/service/chat"
	"github.com/nonotalk/backend/pkg/utils"
)

// Handler manages streaming replies via Server-Sent Events
type Handler struct {
	pipeline *chatService.Pipeline
	logger   *zap.Logger
}

// New creates a new stream handler
func New(pipeline *chatService.Pipeline, logger *zap.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: logger.Named("http.stream")}
}

// RegisterRoutes mounts the streaming endpoint under /chat.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations/{conversationID}/send-stream", h.handleSendStream)
}

func (h *Handler) handleSendStream(w http.ResponseWriter, r *http.Request) {
	convID, ok := chatHandler.ConversationID(r)
	if !ok {
		respond.Error(w, h.logger, chatService.ErrConversationNotFound)
		return
	}
	var payload chatHandler.SendPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sse, ok := utils.NewSSEWriter(w)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sink := &sseSink{w: w, sse: sse}

	res, err := h.pipeline.SendStream(r.Context(), chatService.SendRequest{
		UserID:         middleware.UserIDFromContext(r.Context()),
		ConversationID: convID,
		Message:        payload.Message,
		Emotion:        payload.Emotion,
	}, sink)
	switch {
	case errors.Is(err, chatService.ErrStreamAborted):
		// The client already received the error event.
		h.logger.Info("stream aborted", zap.Int64("conversation_id", convID), zap.Error(err))
	case err != nil && !sink.started:
		respond.Error(w, h.logger, err)
	case err != nil:
		h.logger.Error("stream failed after headers", zap.Error(err))
	case res != nil && res.CrisisDetected:
		chatHandler.WriteResult(w, res)
	}
}

// sseSink writes stream events as SSE data lines. Headers are sent with the
// first event so pre-stream failures can still answer with a status code.
type sseSink struct {
	w       http.ResponseWriter
	sse     *utils.SSEWriter
	started bool
}

func (s *sseSink) Emit(ctx context.Context, ev chatService.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.started {
		utils.SetupSSEHeaders(s.w)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := s.sse.Data(ev); err != nil {
		return err
	}
	if ev.Type == chatService.EventStart {
		return s.sse.Pad(config.StreamPadding)
	}
	return nil
}
