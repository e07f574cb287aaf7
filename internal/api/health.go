package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wayfarer-labs/wayfarer/internal/assistant"
	"github.com/wayfarer-labs/wayfarer/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo      store.Repository
	assistant *assistant.Client
}

// NewHealthHandler creates a new health handler. The assistant client
// may be nil when no upstream is configured.
func NewHealthHandler(repo store.Repository, ac *assistant.Client) *HealthHandler {
	return &HealthHandler{repo: repo, assistant: ac}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "component", "database", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.assistant != nil {
		if err := h.assistant.Health(ctx); err != nil {
			slog.Warn("Health check failed", "component", "assistant", "error", err)
			// A sick upstream degrades the service but the gateway itself
			// can still serve persisted sessions.
			checks["assistant"] = "unreachable"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["assistant"] = "ok"
		}
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
