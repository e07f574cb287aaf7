package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/wayfarer-labs/wayfarer/internal/identity"
	"github.com/wayfarer-labs/wayfarer/internal/pipeline"
	"github.com/wayfarer-labs/wayfarer/internal/store"
	"github.com/wayfarer-labs/wayfarer/internal/stream"
)

// WebSocketHandler serves assistant queries over a WebSocket
// connection for clients that cannot consume SSE. Each connection
// carries one query at a time: the client sends a "query" message and
// receives "message" frames followed by a terminal "complete" or
// "error" frame.
type WebSocketHandler struct {
	pipe          *pipeline.Pipeline
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(pipe *pipeline.Pipeline, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		pipe:          pipe,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// wsQuery is the inbound message shape.
type wsQuery struct {
	Type      string   `json:"type"`
	Message   string   `json:"message,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// wsEvent is the outbound message shape.
type wsEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scope := identity.ScopeFromContext(r.Context())
	if scope.ProfileID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "profile_id", scope.ProfileID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "profile_id", scope.ProfileID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.logger.Info("WebSocket connection opened", "profile_id", scope.ProfileID, "tab_id", scope.TabID, "ip", r.RemoteAddr)

	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "profile_id", scope.ProfileID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "profile_id", scope.ProfileID)
			}
			return
		}

		var q wsQuery
		if err := json.Unmarshal(message, &q); err != nil {
			h.writeEvent(ctx, ws, wsEvent{Type: "error", Error: "invalid message"})
			continue
		}

		switch q.Type {
		case "query":
			if q.Message == "" {
				h.writeEvent(ctx, ws, wsEvent{Type: "error", Error: "message is required"})
				continue
			}
			h.runQuery(ctx, ws, scope, q)
		case "ping":
			h.writeEvent(ctx, ws, wsEvent{Type: "pong"})
		default:
			h.writeEvent(ctx, ws, wsEvent{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) runQuery(ctx context.Context, ws *websocket.Conn, scope store.Scope, q wsQuery) {
	var geo *pipeline.Geo
	if q.Latitude != nil && q.Longitude != nil {
		geo = &pipeline.Geo{Latitude: *q.Latitude, Longitude: *q.Longitude}
	}

	events, err := h.pipe.Run(ctx, scope, q.Message, geo)
	if err != nil {
		h.logger.Error("Failed to start session pipeline", "profile_id", scope.ProfileID, "error", err)
		h.writeEvent(ctx, ws, wsEvent{Type: "error", Error: "failed to start session"})
		return
	}

	for ev := range events {
		switch ev.Kind {
		case stream.EventProgress:
			if !h.writeEvent(ctx, ws, wsEvent{Type: "message", Payload: progressPayload{Session: ev.Session}}) {
				return
			}
		case stream.EventComplete:
			h.writeEvent(ctx, ws, wsEvent{Type: "complete", Payload: completePayload{Session: ev.Session, Route: ev.Route}})
			return
		case stream.EventError:
			h.logger.Error("Assistant stream failed",
				"profile_id", scope.ProfileID,
				"session_id", ev.Session.SessionID,
				"error", ev.Err,
			)
			h.writeEvent(ctx, ws, wsEvent{Type: "error", Error: ev.Err.Error()})
			return
		}
	}
}

func (h *WebSocketHandler) writeEvent(ctx context.Context, ws *websocket.Conn, ev wsEvent) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("Failed to marshal WebSocket event", "type", ev.Type, "error", err)
		return false
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("WebSocket write error", "error", err)
		return false
	}
	return true
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
