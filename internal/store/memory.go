package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

type slotKey struct {
	profileID string
	tabID     string
	slot      Slot
}

type slotEntry struct {
	raw       string
	updatedAt time.Time
}

// MemoryStore is an in-memory Repository for tests and embedding. It
// serializes sessions through the same text encoding as the SQLite
// store so round-trip behavior matches.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	slots    map[slotKey]slotEntry
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.Profile),
		slots:    make(map[slotKey]slotEntry),
	}
}

// GetProfile retrieves a profile by id.
func (m *MemoryStore) GetProfile(_ context.Context, profileID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[profileID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// UpsertProfile creates or updates a profile record.
func (m *MemoryStore) UpsertProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ProfileID] = *p
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a profile.
func (m *MemoryStore) UpdateLastSeen(_ context.Context, profileID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileID]
	if !ok {
		slog.Warn("UpdateLastSeen on unknown profile", "profile_id", profileID)
		return nil
	}
	p.LastSeenAt = lastSeen
	p.UpdatedAt = time.Now()
	m.profiles[profileID] = p
	return nil
}

// SaveCurrent writes the session into the scope's current slot.
func (m *MemoryStore) SaveCurrent(_ context.Context, scope Scope, s *domain.Session) error {
	return m.saveSlot(scope, SlotCurrent, s)
}

// SaveCompleted writes the session into the scope's completed slot.
func (m *MemoryStore) SaveCompleted(_ context.Context, scope Scope, s *domain.Session) error {
	return m.saveSlot(scope, SlotCompleted, s)
}

func (m *MemoryStore) saveSlot(scope Scope, slot Slot, s *domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slotKey{scope.ProfileID, scope.TabID, slot}] = slotEntry{
		raw:       string(raw),
		updatedAt: time.Now(),
	}
	return nil
}

// LoadCurrent returns the scope's current session.
func (m *MemoryStore) LoadCurrent(_ context.Context, scope Scope) (*domain.Session, error) {
	return m.loadSlot(scope, SlotCurrent)
}

// LoadCompleted returns the scope's completed session.
func (m *MemoryStore) LoadCompleted(_ context.Context, scope Scope) (*domain.Session, error) {
	return m.loadSlot(scope, SlotCompleted)
}

func (m *MemoryStore) loadSlot(scope Scope, slot Slot) (*domain.Session, error) {
	m.mu.RLock()
	entry, ok := m.slots[slotKey{scope.ProfileID, scope.TabID, slot}]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(entry.raw), &sess); err != nil {
		slog.Warn("discarding unparseable session slot",
			"profile_id", scope.ProfileID,
			"tab_id", scope.TabID,
			"slot", slot,
			"error", err)
		return nil, nil
	}
	return &sess, nil
}

// ClearSlots removes both slots for the scope.
func (m *MemoryStore) ClearSlots(_ context.Context, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, slotKey{scope.ProfileID, scope.TabID, SlotCurrent})
	delete(m.slots, slotKey{scope.ProfileID, scope.TabID, SlotCompleted})
	return nil
}

// CleanupExpiredSlots removes slots not written to within ttl.
func (m *MemoryStore) CleanupExpiredSlots(_ context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for k, e := range m.slots {
		if e.updatedAt.Before(threshold) {
			delete(m.slots, k)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close releases nothing for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

var _ Repository = (*MemoryStore)(nil)
