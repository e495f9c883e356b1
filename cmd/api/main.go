package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/handler"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
	"github.com/zhouzirui/z-companion/backend/internal/service/conversation"
	"github.com/zhouzirui/z-companion/backend/internal/service/session"
	therapistservice "github.com/zhouzirui/z-companion/backend/internal/service/therapist"
	"github.com/zhouzirui/z-companion/backend/internal/service/transcribe"
	"github.com/zhouzirui/z-companion/backend/internal/storage/assets"
	"github.com/zhouzirui/z-companion/backend/internal/storage/postgres"
	"github.com/zhouzirui/z-companion/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	store, closeStore := openStore(ctx, cfg.Store, zl)
	defer closeStore()

	deps := handler.Deps{
		Profiles: store,
		Sessions: session.NewService(),
		Log:      zl,
	}

	// Initialize transcription
	var transcriber therapistservice.Transcriber
	if cfg.Transcribe.Enabled() {
		svc := transcribe.NewService(cfg.Transcribe, zl)
		transcriber = svc
		deps.Transcriber = svc
		zl.Info("transcription enabled", zap.String("model", cfg.Transcribe.Model))
	} else {
		zl.Warn("OPENAI_API_KEY not set, transcription disabled")
	}

	// Initialize AI service
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, zl)
		if err != nil {
			zl.Warn("failed to initialize AI service, continuing without chat", zap.Error(err))
		} else {
			deps.Replier = conversation.NewService(store, aiService, zl)
			zl.Info("AI service initialized", zap.String("provider", string(cfg.AI.Provider)))
		}
	} else {
		zl.Warn("completion provider credentials missing, chat disabled", zap.String("provider", string(cfg.AI.Provider)))
	}

	// Initialize asset storage
	var assetStore therapistservice.AssetStore
	if cfg.Assets.Enabled() {
		s3, err := assets.New(ctx, cfg.Assets)
		if err != nil {
			zl.Warn("failed to initialize asset storage, recordings keep transcripts only", zap.Error(err))
		} else {
			assetStore = s3
			zl.Info("asset storage initialized", zap.String("bucket", cfg.Assets.Bucket))
		}
	} else {
		zl.Warn("S3 credentials missing, recordings keep transcripts only")
	}

	deps.Therapists = therapistservice.NewService(store, assetStore, transcriber, zl)

	router := handler.NewRouter(cfg.Server, deps)

	startServer(ctx, cfg.Server, router, zl)
}

// openStore returns the Postgres store when DATABASE_URL is set, otherwise an
// in-memory store seeded with the demo profile.
func openStore(ctx context.Context, cfg config.StoreConfig, zl *zap.Logger) (therapist.Store, func()) {
	if cfg.DatabaseURL == "" {
		zl.Warn("DATABASE_URL not set, using in-memory store", zap.String("demo_therapist", therapist.DemoID))
		return therapist.NewMemoryStore(therapist.Seed()), func() {}
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		zl.Fatal("failed to apply schema", zap.Error(err))
	}
	zl.Info("postgres store ready")
	return postgres.NewTherapistRepo(db), func() { closeDB(db, zl) }
}

func closeDB(db *sql.DB, zl *zap.Logger) {
	if err := db.Close(); err != nil {
		zl.Warn("failed to close database", zap.Error(err))
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, zl *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zl.Info("companion backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		zl.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
