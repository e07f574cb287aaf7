// Wayfarer - Travel Assistant Session Gateway
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/wayfarer-labs/wayfarer/internal/api"
	"github.com/wayfarer-labs/wayfarer/internal/assistant"
	"github.com/wayfarer-labs/wayfarer/internal/config"
	"github.com/wayfarer-labs/wayfarer/internal/identity"
	"github.com/wayfarer-labs/wayfarer/internal/middleware"
	"github.com/wayfarer-labs/wayfarer/internal/pipeline"
	"github.com/wayfarer-labs/wayfarer/internal/store"
	"github.com/wayfarer-labs/wayfarer/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// The assistant upstream is optional: without it, queries return 503
	// but slot recovery and the frontend still work.
	var assistantClient *assistant.Client
	var streamer pipeline.Streamer
	if cfg.AssistantURL != "" {
		assistantClient = assistant.NewClient(cfg.AssistantURL, logger)
		streamer = assistantClient
		slog.Info("Assistant upstream configured", "url", cfg.AssistantURL)
	} else {
		slog.Warn("ASSISTANT_URL not set, assistant queries disabled")
	}

	pipe := pipeline.New(streamer, repo, logger)

	// Initialize handlers.
	handler := api.NewHandler(pipe, repo, cfg, logger)
	healthHandler := api.NewHealthHandler(repo, assistantClient)
	wsHandler := api.NewWebSocketHandler(pipe, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// All API routes carry anonymous identity (no auth needed).
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		handler.RegisterRoutes(r)
		r.Get("/ws/assistant", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Note: SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartCleanupWorker(ctx, repo, cfg.SlotTTL)
	slog.Info("Slot cleanup worker started", "slot_ttl", cfg.SlotTTL)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
