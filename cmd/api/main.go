package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/article-rag/backend/internal/config"
	"github.com/zhouzirui/article-rag/backend/internal/handler"
	"github.com/zhouzirui/article-rag/backend/internal/scheduler"
	"github.com/zhouzirui/article-rag/backend/internal/service/ai"
	"github.com/zhouzirui/article-rag/backend/internal/service/ai/gemini"
	"github.com/zhouzirui/article-rag/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load configuration",
			"error", err)
		os.Exit(1)
	}

	log := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(log)

	if envErr != nil {
		log.InfoContext(ctx, "No .env file loaded, using system environment only",
			"error", envErr)
	}

	client := gemini.New(
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithTimeout(cfg.Gemini.Timeout),
	)

	aiService, err := ai.NewService(client, cfg.Gemini.APIKey, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize AI service",
			"error", err)
		os.Exit(1)
	}
	if !aiService.APIKeyConfigured() {
		log.WarnContext(ctx, "GEMINI_API_KEY is not set, requests must carry api_key")
	}
	log.InfoContext(ctx, "AI service is initialized",
		"model", client.Model(),
		"timeout", cfg.Gemini.Timeout.String())

	sessions := chat.NewService(
		chat.WithTTL(cfg.Session.TTL),
		chat.WithMaxSessions(cfg.Session.Max),
	)
	manager, err := chat.NewManager(sessions, aiService, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize chat manager",
			"error", err)
		os.Exit(1)
	}

	if cfg.Session.TTL > 0 {
		sched := scheduler.New(ctx, cfg.Session.SweepSpec, sessions, log)
		if err := sched.Start(); err != nil {
			log.ErrorContext(ctx, "Failed to start scheduler",
				"error", err,
				"spec", cfg.Session.SweepSpec)
			os.Exit(1)
		}
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"spec", cfg.Session.SweepSpec,
			"sessionTTL", cfg.Session.TTL.String(),
			"maxSessions", cfg.Session.Max)
	}

	router := handler.NewRouter(aiService, manager, cfg.Server.CORSAllowedOrigins, log)

	startServer(ctx, cfg.Server, router, log)

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *slog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.InfoContext(ctx, "Article summary server listening",
		"addr", addr)
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout); err != nil {
		log.ErrorContext(ctx, "Server error",
			"error", err,
			"addr", addr)
	}
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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
