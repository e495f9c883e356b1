package therapist

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	model "github.com/zhouzirui/z-companion/backend/internal/model/therapist"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Service 抽象治疗师档案的创建、查询与录音上传
type Service interface {
	Create(ctx context.Context, draft model.Draft) (string, error)
	Summary(ctx context.Context, id string) (model.Summary, error)
	AttachRecording(ctx context.Context, id string, scenario model.Scenario, audio []byte, filename, contentType string) (model.RecordingResult, error)
}

// Handler 治疗师档案的HTTP处理器
type Handler struct {
	svc       Service
	maxUpload int64
	log       *zap.Logger
}

// New 创建治疗师处理器
func New(svc Service, maxUpload int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Handler{svc: svc, maxUpload: maxUpload, log: log.With(zap.String("component", "therapist"))}
}

// RegisterRoutes 注册治疗师相关的路由。uploads 包裹录音上传路由（限流）。
func (h *Handler) RegisterRoutes(r chi.Router, uploads ...func(http.Handler) http.Handler) {
	r.Post("/therapists", h.handleCreate)
	r.Get("/therapists/{therapistID}", h.handleSummary)
	r.With(uploads...).Put("/therapists/{therapistID}/recordings/{scenario}", h.handleRecording)
}

type createResponse struct {
	ID string `json:"id"`
}

// handleCreate 创建治疗师档案
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.svc.Create(r.Context(), draft)
	if err != nil {
		h.log.Warn("create failed", zap.Error(err))
		utils.RespondFailure(w, err, "Failed to save therapist")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, createResponse{ID: id})
}

// handleSummary 返回会话页所需的公开信息
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context(), chi.URLParam(r, "therapistID"))
	if err != nil {
		utils.RespondFailure(w, err, "Failed to load therapist")
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

// handleRecording 上传一个场景的示例录音
func (h *Handler) handleRecording(w http.ResponseWriter, r *http.Request) {
	therapistID := chi.URLParam(r, "therapistID")
	scenario, err := model.ParseScenario(chi.URLParam(r, "scenario"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	upload, ok := utils.ReadUpload(w, r, "audio", h.maxUpload)
	if !ok {
		return
	}

	result, err := h.svc.AttachRecording(r.Context(), therapistID, scenario, upload.Data, upload.Filename, upload.ContentType)
	if err != nil {
		h.log.Warn("recording failed",
			zap.String("therapist", therapistID),
			zap.String("scenario", string(scenario)),
			zap.Error(err),
		)
		utils.RespondFailure(w, err, "Failed to save recording")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
