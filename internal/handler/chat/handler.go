package chat

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/service/conversation"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Replier answers one chat request.
type Replier interface {
	Reply(ctx context.Context, req conversation.Request) (string, error)
}

// Handler 对话补全的HTTP处理器
type Handler struct {
	replier Replier
	log     *zap.Logger
}

// New 创建聊天处理器
func New(replier Replier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{replier: replier, log: log.With(zap.String("component", "chat"))}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

type chatResponse struct {
	Response string `json:"response"`
}

// handleChat 生成治疗师风格的回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req conversation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.replier.Reply(r.Context(), req)
	if err != nil {
		h.log.Warn("chat failed", zap.String("therapist", req.TherapistID), zap.Error(err))
		utils.RespondFailure(w, err, "Failed to generate response")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{Response: reply})
}
