package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wayfarer-labs/wayfarer/internal/assistant"
	"github.com/wayfarer-labs/wayfarer/internal/domain"
	"github.com/wayfarer-labs/wayfarer/internal/identity"
	"github.com/wayfarer-labs/wayfarer/internal/pipeline"
	"github.com/wayfarer-labs/wayfarer/internal/stream"
)

// QueryPayload is the request body for an assistant query.
type QueryPayload struct {
	Message   string   `json:"message"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type progressPayload struct {
	Session *domain.Session `json:"session"`
}

type completePayload struct {
	Session *domain.Session `json:"session"`
	Route   string          `json:"route"`
}

// HandleQuery handles POST /api/assistant/query: it runs the session
// pipeline and streams its events to the browser as SSE. Progress
// events arrive as "message", the terminal event as "complete" (with
// the destination route) or "error". Periodic "ping" events keep the
// connection alive through proxies while the upstream is quiet.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	scope := identity.ScopeFromContext(r.Context())
	if scope.ProfileID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by profile only, not profile:tab, so clients cannot
	// bypass throttling by rotating tab IDs.
	if !h.rateLimiter.Allow(scope.ProfileID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.SSE.MaxRequestBodySize)

	var payload QueryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	var geo *pipeline.Geo
	if payload.Latitude != nil && payload.Longitude != nil {
		geo = &pipeline.Geo{Latitude: *payload.Latitude, Longitude: *payload.Longitude}
	}

	events, err := h.pipe.Run(r.Context(), scope, payload.Message, geo)
	if err != nil {
		if errors.Is(err, pipeline.ErrUpstreamUnavailable) {
			Error(w, http.StatusServiceUnavailable, "assistant is not available")
			return
		}
		if errors.Is(err, assistant.ErrMissingProfile) {
			Error(w, http.StatusUnauthorized, "no profile available")
			return
		}
		h.logger.Error("failed to start session pipeline", "profile_id", scope.ProfileID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	h.logger.Info("assistant query accepted",
		"profile_id", scope.ProfileID,
		"tab_id", scope.TabID,
		"message_length", len(payload.Message),
	)

	// Stream response via SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", h.cfg.SSE.RetryDelay.Milliseconds())); err != nil {
		h.logger.Warn("failed to write SSE retry header", "error", err)
		return
	}
	flusher.Flush()

	// Bridge the pipeline iterator onto a channel so keepalive pings can
	// interleave with event delivery; a long gap between upstream chunks
	// must not let proxies kill an idle connection.
	ch := make(chan pipeline.Event)
	go func() {
		defer close(ch)
		for ev := range events {
			select {
			case ch <- ev:
			case <-r.Context().Done():
				return
			}
		}
	}()

	keepalive := time.NewTicker(h.cfg.SSE.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("assistant stream disconnected", "profile_id", scope.ProfileID)
			return
		case <-keepalive.C:
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				h.logger.Warn("failed to write SSE keepalive ping", "error", err, "profile_id", scope.ProfileID)
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Kind {
			case stream.EventProgress:
				if !h.writeEvent(w, flusher, "message", progressPayload{Session: ev.Session}) {
					return
				}
			case stream.EventComplete:
				h.writeEvent(w, flusher, "complete", completePayload{Session: ev.Session, Route: ev.Route})
				return
			case stream.EventError:
				h.logger.Error("assistant stream failed",
					"profile_id", scope.ProfileID,
					"session_id", ev.Session.SessionID,
					"error", ev.Err,
				)
				h.writeEvent(w, flusher, "error", map[string]string{"error": ev.Err.Error()})
				return
			}
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to marshal SSE event", "event", event, "error", err)
		return false
	}
	if err := writeSSE(w, event, string(data)); err != nil {
		h.logger.Warn("failed to write SSE event", "event", event, "error", err)
		return false
	}
	flusher.Flush()
	return true
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// RegisterRoutes registers assistant and session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assistant", func(r chi.Router) {
		r.Post("/query", h.HandleQuery)
	})
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/current", h.HandleCurrent)
		r.Get("/completed", h.HandleCompleted)
		r.Delete("/", h.HandleClear)
	})
}
