package api

import (
	"net/http"

	"github.com/wayfarer-labs/wayfarer/internal/identity"
)

// HandleCurrent handles GET /api/sessions/current: it returns the
// scope's in-flight session, or 404 when nothing is recoverable.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	scope := identity.ScopeFromContext(r.Context())
	if scope.ProfileID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sess, err := h.pipe.Current(r.Context(), scope)
	if err != nil {
		h.logger.Error("failed to load current session", "profile_id", scope.ProfileID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "no current session")
		return
	}
	JSON(w, http.StatusOK, progressPayload{Session: sess})
}

// HandleCompleted handles GET /api/sessions/completed. When a
// sessionId query parameter is present the stored session is only
// returned if its id matches — result views recovering after a
// navigation must not trust a stale slot. Without the parameter the
// slot is returned as-is and verifying the id against the navigation
// state becomes the caller's obligation.
func (h *Handler) HandleCompleted(w http.ResponseWriter, r *http.Request) {
	scope := identity.ScopeFromContext(r.Context())
	if scope.ProfileID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	wantID := r.URL.Query().Get("sessionId")

	sess, err := h.repo.LoadCompleted(r.Context(), scope)
	if err != nil {
		h.logger.Error("failed to load completed session", "profile_id", scope.ProfileID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil || (wantID != "" && sess.SessionID != wantID) {
		Error(w, http.StatusNotFound, "no completed session")
		return
	}
	JSON(w, http.StatusOK, progressPayload{Session: sess})
}

// HandleClear handles DELETE /api/sessions: it clears both slots so a
// brand-new conversation starts without stale cross-query state.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	scope := identity.ScopeFromContext(r.Context())
	if scope.ProfileID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.pipe.Reset(r.Context(), scope); err != nil {
		h.logger.Error("failed to clear session slots", "profile_id", scope.ProfileID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear sessions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
