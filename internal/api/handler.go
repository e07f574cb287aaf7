// Package api provides HTTP handlers for the Wayfarer gateway API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wayfarer-labs/wayfarer/internal/config"
	"github.com/wayfarer-labs/wayfarer/internal/pipeline"
	"github.com/wayfarer-labs/wayfarer/internal/store"
)

// Handler provides common handler dependencies.
type Handler struct {
	pipe        *pipeline.Pipeline
	repo        store.Repository
	rateLimiter *RateLimiter
	cfg         *config.Config
	logger      *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(pipe *pipeline.Pipeline, repo store.Repository, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipe:        pipe,
		repo:        repo,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		cfg:         cfg,
		logger:      logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
