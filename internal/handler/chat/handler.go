package chat

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/handler/respond"
	"github.com/nonotalk/backend/internal/middleware"
	chatService "github.com/nonotalk/backend/internal/service/chat"
	"github.com/nonotalk/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	pipeline *chatService.Pipeline
	logger   *zap.Logger
}

// New 创建聊天处理器
func New(pipeline *chatService.Pipeline, logger *zap.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: logger.Named("http.chat")}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载到 /chat 并要求登录。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations", h.handleListConversations)
	r.Post("/conversations", h.handleCreateConversation)
	r.Get("/conversations/{conversationID}/messages", h.handleListMessages)
	r.Post("/conversations/{conversationID}/send", h.handleSend)
	r.Post("/conversations/{conversationID}/upload-image", h.handleUploadImage)
	r.Post("/crisis/acknowledge", h.handleAcknowledgeCrisis)
}

// ConversationID 解析路径中的会话ID。
func ConversationID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.pipeline.ListConversations(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.pipeline.CreateConversation(r.Context(), middleware.UserIDFromContext(r.Context()), payload.Title)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"message":      "Conversation créée",
		"conversation": conv,
	})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	convID, ok := ConversationID(r)
	if !ok {
		respond.Error(w, h.logger, chatService.ErrConversationNotFound)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := h.pipeline.ConversationMessages(r.Context(), middleware.UserIDFromContext(r.Context()), convID, limit)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// SendPayload 是发送消息的请求体。
type SendPayload struct {
	Message string `json:"message"`
	Emotion string `json:"emotion"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	convID, ok := ConversationID(r)
	if !ok {
		respond.Error(w, h.logger, chatService.ErrConversationNotFound)
		return
	}
	var payload SendPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.pipeline.Send(r.Context(), chatService.SendRequest{
		UserID:         middleware.UserIDFromContext(r.Context()),
		ConversationID: convID,
		Message:        payload.Message,
		Emotion:        payload.Emotion,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	WriteResult(w, res)
}

// WriteResult 输出发送结果：危机提示或一轮完整的问答。
func WriteResult(w http.ResponseWriter, res *chatService.SendResult) {
	if res.CrisisDetected {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"crisis_detected":   true,
			"emergency_message": res.EmergencyMessage,
			"message":           "Mots-clés de crise détectés",
		})
		return
	}
	utils.RespondJSON(w, http.StatusOK, res)
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	convID, ok := ConversationID(r)
	if !ok {
		respond.Error(w, h.logger, chatService.ErrConversationNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		respond.Error(w, h.logger, chatService.ErrImageRequired)
		return
	}
	defer file.Close()

	res, err := h.pipeline.ShareImage(r.Context(), chatService.ImageRequest{
		UserID:         middleware.UserIDFromContext(r.Context()),
		ConversationID: convID,
		Filename:       header.Filename,
		Content:        file,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"image_message":   res.UserMessage,
		"ai_message":      res.AIMessage,
		"quota_remaining": res.QuotaRemaining,
	})
}

func (h *Handler) handleAcknowledgeCrisis(w http.ResponseWriter, r *http.Request) {
	n, err := h.pipeline.AcknowledgeCrisis(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":  "Crise acknowledgée",
		"resolved": n,
	})
}
