package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/handler/chat"
	"github.com/zhouzirui/z-companion/backend/internal/handler/speech"
	"github.com/zhouzirui/z-companion/backend/internal/handler/therapist"
	middlewarePkg "github.com/zhouzirui/z-companion/backend/internal/middleware"
	therapistModel "github.com/zhouzirui/z-companion/backend/internal/model/therapist"
	"github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Deps collects the services the router exposes. Transcriber may be nil when
// speech-to-text is not configured; Replier may be nil when no completion
// provider is configured.
type Deps struct {
	Profiles    therapistModel.Store
	Therapists  therapist.Service
	Transcriber speech.Transcriber
	Replier     chat.Replier
	Sessions    *session.Service
	Log         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limit := middlewarePkg.RateLimit(cfg.RateLimitPerMinute)

	r.Route("/api", func(api chi.Router) {
		// Upstream-cost routes share the per-IP limit
		api.Group(func(costly chi.Router) {
			costly.Use(limit)

			speech.New(deps.Transcriber, cfg.MaxUploadBytes, log).RegisterRoutes(costly)

			if deps.Replier != nil {
				chat.New(deps.Replier, log).RegisterRoutes(costly)
			} else {
				costly.Post("/chat", func(w http.ResponseWriter, _ *http.Request) {
					utils.RespondError(w, http.StatusServiceUnavailable, "ai chat unavailable")
				})
			}
		})

		if deps.Therapists != nil {
			therapist.New(deps.Therapists, cfg.MaxUploadBytes, log).RegisterRoutes(api, limit)
		}

		if deps.Replier != nil && deps.Sessions != nil && deps.Profiles != nil {
			ws := speech.NewWebSocketHandler(deps.Transcriber, deps.Replier, deps.Sessions, deps.Profiles, cfg.MaxUploadBytes, log)
			ws.RegisterWebSocketRoutes(api)
		} else {
			api.Get("/therapists/{therapistID}/ws", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "voice websocket not available")
			})
		}
	})

	return r
}
