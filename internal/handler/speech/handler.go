package speech

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Transcriber 抽象语音转写，便于测试与替换实现
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Handler 语音转写的HTTP处理器
type Handler struct {
	transcriber Transcriber
	maxUpload   int64
	log         *zap.Logger
}

// New 创建语音处理器。transcriber 为 nil 时接口返回 503。
func New(transcriber Transcriber, maxUpload int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Handler{
		transcriber: transcriber,
		maxUpload:   maxUpload,
		log:         log.With(zap.String("component", "speech")),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/transcribe", h.handleTranscribe)
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "transcription unavailable")
		return
	}

	upload, ok := utils.ReadUpload(w, r, "audio", h.maxUpload)
	if !ok {
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), upload.Data, upload.Filename)
	if err != nil {
		h.log.Warn("transcription failed", zap.Error(err))
		utils.RespondFailure(w, err, "Failed to transcribe audio")
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcribeResponse{Transcription: text})
}
