// Package identity provides anonymous per-device identity primitives.
//
// Every request carries a device profile (long-lived cookie) and a tab
// id (per-browser-tab header). The pair scopes session persistence so
// two tabs of the same device never clobber each other's slots.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
	"github.com/wayfarer-labs/wayfarer/internal/store"
)

const (
	AnonCookieName    = "wayfarer_anon_id"
	TabHeaderName     = "X-Wayfarer-Tab-ID"
	DefaultTabIDValue = "default"
	anonCookieMaxAge  = 30 * 24 * time.Hour
)

type contextKey int

const (
	profileIDKey contextKey = iota
	tabIDKey
)

var (
	anonIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	tabIDPattern  = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// ProfileIDFromContext extracts the profile ID from the request context.
func ProfileIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(profileIDKey).(string); ok {
		return v
	}
	return ""
}

// TabIDFromContext extracts the tab ID from the request context.
func TabIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tabIDKey).(string); ok {
		return v
	}
	return DefaultTabIDValue
}

// ScopeFromContext builds the persistence scope for the request.
func ScopeFromContext(ctx context.Context) store.Scope {
	return store.Scope{
		ProfileID: ProfileIDFromContext(ctx),
		TabID:     TabIDFromContext(ctx),
	}
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !tabIDPattern.MatchString(id) {
		return DefaultTabIDValue
	}
	return id
}

func deriveDisplayName(profileID string) string {
	if len(profileID) > 13 {
		return "traveler-" + profileID[len(profileID)-8:]
	}
	return "traveler"
}

func ensureProfile(ctx context.Context, repo store.Repository, profileID string) error {
	p, err := repo.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if p != nil {
		return nil
	}

	now := time.Now()
	return repo.UpsertProfile(ctx, &domain.Profile{
		ProfileID:   profileID,
		DisplayName: deriveDisplayName(profileID),
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func tabIDFromRequest(r *http.Request) string {
	tid := r.Header.Get(TabHeaderName)
	if tid == "" {
		tid = r.URL.Query().Get("tab_id")
	}
	return sanitizeTabID(tid)
}

// Middleware injects anonymous per-device identity and per-request tab ID.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profileID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			if err := ensureProfile(r.Context(), repo, profileID); err != nil {
				http.Error(w, `{"error":"failed to initialize anonymous profile"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), profileIDKey, profileID)
			ctx = context.WithValue(ctx, tabIDKey, tabIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
