package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pdfacil/pdfacil-backend/internal/api"
	"github.com/pdfacil/pdfacil-backend/internal/editsession"
	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	"github.com/pdfacil/pdfacil-backend/internal/preview"
	"github.com/pdfacil/pdfacil-backend/internal/ratelimit"
	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	"github.com/pdfacil/pdfacil-backend/internal/telemetry"
	"github.com/pdfacil/pdfacil-backend/internal/tools"
	"github.com/pdfacil/pdfacil-backend/internal/upload"
	"github.com/pdfacil/pdfacil-backend/pkg/config"
	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

const sweepInterval = 15 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load("api-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	// Initialize logger with the admin log-tail capture
	tail := logger.NewTailBuffer(0)
	log := logger.NewWithTail("api-server", cfg.Server.Environment, tail)
	log.Info().Msg("starting PDF API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	store, err := upload.NewStore(cfg.Upload.Folder, cfg.Upload.TTL(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upload store")
	}
	store.StartSweeper(ctx, sweepInterval)

	sessions := editsession.NewStore(store.Subdir(upload.EditSessionsDir), cfg.Upload.TTL(), log)
	sessions.StartSweeper(ctx, sweepInterval)

	// External tools
	paths := tools.Resolve(cfg, log)
	if paths.Ghostscript == "" {
		log.Warn().Msg("ghostscript not found; compression and previews unavailable")
	}
	if paths.LibreOffice == "" {
		log.Warn().Msg("libreoffice not found; document conversion unavailable")
	}
	if paths.OCR == "" {
		log.Warn().Msg("ocr engine not found; text recognition unavailable")
	}

	runner := sandbox.NewRunner(log)
	gs := tools.NewGhostscript(paths.Ghostscript, runner, time.Duration(cfg.Tools.GhostscriptTimeout)*time.Second, cfg.OCR.MemMB, log)
	office := tools.NewOffice(paths.LibreOffice, runner, time.Duration(cfg.Tools.LibreOfficeTimeout)*time.Second, cfg.OCR.MemMB, log)
	ocr := tools.NewOCR(paths, runner, log)

	previews := preview.NewCache(
		store.Subdir(upload.ThumbsDir),
		store.Subdir(upload.TmpPreviewsDir),
		func(ctx context.Context, input, output string) error {
			return gs.RenderFirstPagePNG(ctx, input, output, preview.RenderDPI)
		},
		log,
	)

	// Services
	svc := pipeline.New(cfg, store, gs, office, ocr, previews, sessions, log)
	metrics := telemetry.New()
	limiter := ratelimit.New(cfg.RateLimit)
	handler := api.New(cfg, svc, metrics, limiter, tail, paths, log)

	// Create router
	r := chi.NewRouter()
	if cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(httpCORS(cfg))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	handler.Routes(r)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func httpCORS(cfg *config.Config) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if cfg.Server.Environment == "development" {
				return strings.HasPrefix(origin, "http://localhost:") ||
					strings.HasPrefix(origin, "http://127.0.0.1:")
			}
			return strings.HasSuffix(origin, ".pdfacil.com.br") ||
				origin == "https://pdfacil.com.br"
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Admin-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
