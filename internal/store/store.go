// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

// Slot names one of the two logical session slots a scope holds.
type Slot string

const (
	// SlotCurrent holds the in-flight (or most recently started) session.
	SlotCurrent Slot = "current"
	// SlotCompleted holds the most recently finished session, kept apart
	// from the current slot so recovery can tell "still going" from "done".
	SlotCompleted Slot = "completed"
)

// Scope identifies the owner of a pair of session slots: one device
// profile, one browser tab.
type Scope struct {
	ProfileID string
	TabID     string
}

// Repository defines the interface for persisting profiles and
// session slots.
type Repository interface {
	// GetProfile retrieves a profile by id, nil when absent.
	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)

	// UpsertProfile creates or updates a profile record.
	UpsertProfile(ctx context.Context, p *domain.Profile) error

	// UpdateLastSeen updates the last_seen_at timestamp for a profile.
	UpdateLastSeen(ctx context.Context, profileID string, lastSeen time.Time) error

	// SaveCurrent serializes the session into the scope's current slot,
	// replacing whatever was there.
	SaveCurrent(ctx context.Context, scope Scope, s *domain.Session) error

	// SaveCompleted serializes the session into the scope's completed slot.
	SaveCompleted(ctx context.Context, scope Scope, s *domain.Session) error

	// LoadCurrent returns the scope's current session, or nil when the
	// slot is empty or holds an unparseable value. It never fails on
	// corrupt data — malformed state degrades to "nothing recovered".
	LoadCurrent(ctx context.Context, scope Scope) (*domain.Session, error)

	// LoadCompleted returns the scope's completed session under the same
	// degradation rules as LoadCurrent.
	LoadCompleted(ctx context.Context, scope Scope) (*domain.Session, error)

	// ClearSlots removes both slots for the scope. Callers invoke this
	// before starting an unrelated new conversation to avoid stale
	// cross-query contamination.
	ClearSlots(ctx context.Context, scope Scope) error

	// CleanupExpiredSlots removes slots not written to within ttl and
	// returns how many were removed.
	CleanupExpiredSlots(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
