package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

func newSQLiteForTest(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "wayfarer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func repos(t *testing.T) map[string]Repository {
	t.Helper()
	return map[string]Repository{
		"sqlite": newSQLiteForTest(t),
		"memory": NewMemory(),
	}
}

func sampleSession() *domain.Session {
	s := domain.NewSession(domain.DomainAccommodation)
	s.Query = "Best hotels in Tokyo"
	s.City = "Tokyo"
	s.Data.Hotels = []domain.Hotel{{Name: "h1", Rating: 4.5}, {Name: "h2"}}
	s.Data.GeneralCity = &domain.CityInfo{City: "Tokyo", Country: "Japan"}
	return s
}

func TestSlotRoundTrip(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := Scope{ProfileID: "p1", TabID: "t1"}
			s := sampleSession()

			require.NoError(t, repo.SaveCurrent(ctx, scope, s))
			got, err := repo.LoadCurrent(ctx, scope)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, s.SessionID, got.SessionID)
			assert.Equal(t, s.Domain, got.Domain)
			assert.Equal(t, s.Query, got.Query)
			assert.Equal(t, s.City, got.City)
			assert.Equal(t, s.Data, got.Data)
			assert.Equal(t, s.Status, got.Status)
		})
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := Scope{ProfileID: "p1", TabID: "t1"}

			current := sampleSession()
			done := sampleSession()
			require.NoError(t, done.Transition(domain.StatusStreaming))
			require.NoError(t, done.Transition(domain.StatusComplete))

			require.NoError(t, repo.SaveCurrent(ctx, scope, current))
			require.NoError(t, repo.SaveCompleted(ctx, scope, done))

			gotCurrent, err := repo.LoadCurrent(ctx, scope)
			require.NoError(t, err)
			gotDone, err := repo.LoadCompleted(ctx, scope)
			require.NoError(t, err)
			assert.Equal(t, current.SessionID, gotCurrent.SessionID)
			assert.Equal(t, done.SessionID, gotDone.SessionID)
			assert.Equal(t, domain.StatusComplete, gotDone.Status)
		})
	}
}

func TestLoadEmptySlotReturnsNil(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := repo.LoadCurrent(ctx, Scope{ProfileID: "nobody", TabID: "t0"})
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestNewQueryOverwritesCurrentSlot(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := Scope{ProfileID: "p1", TabID: "t1"}

			first := domain.NewSession(domain.DomainDining)
			second := domain.NewSession(domain.DomainActivities)
			require.NoError(t, repo.SaveCurrent(ctx, scope, first))
			require.NoError(t, repo.SaveCurrent(ctx, scope, second))

			got, err := repo.LoadCurrent(ctx, scope)
			require.NoError(t, err)
			assert.Equal(t, second.SessionID, got.SessionID)
		})
	}
}

func TestClearSlots(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := Scope{ProfileID: "p1", TabID: "t1"}
			other := Scope{ProfileID: "p1", TabID: "t2"}

			require.NoError(t, repo.SaveCurrent(ctx, scope, sampleSession()))
			require.NoError(t, repo.SaveCompleted(ctx, scope, sampleSession()))
			require.NoError(t, repo.SaveCurrent(ctx, other, sampleSession()))

			require.NoError(t, repo.ClearSlots(ctx, scope))

			got, err := repo.LoadCurrent(ctx, scope)
			require.NoError(t, err)
			assert.Nil(t, got)
			got, err = repo.LoadCompleted(ctx, scope)
			require.NoError(t, err)
			assert.Nil(t, got)

			// Other tabs keep their slots.
			got, err = repo.LoadCurrent(ctx, other)
			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestCorruptSlotDegradesToAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	scope := Scope{ProfileID: "p1", TabID: "t1"}

	t.Run("sqlite", func(t *testing.T) {
		repo := newSQLiteForTest(t)
		s := repo.(*SQLiteStore)
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO session_slots (profile_id, tab_id, slot, session_json, updated_at) VALUES (?, ?, ?, ?, ?)`,
			scope.ProfileID, scope.TabID, string(SlotCurrent), "%% not json %%", time.Now().Unix())
		require.NoError(t, err)

		got, err := repo.LoadCurrent(ctx, scope)
		require.NoError(t, err, "corrupt slot must not surface an error")
		assert.Nil(t, got)
	})

	t.Run("memory", func(t *testing.T) {
		m := NewMemory()
		m.slots[slotKey{scope.ProfileID, scope.TabID, SlotCurrent}] = slotEntry{
			raw:       "%% not json %%",
			updatedAt: time.Now(),
		}

		got, err := m.LoadCurrent(ctx, scope)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCleanupExpiredSlots(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.SaveCurrent(ctx, Scope{ProfileID: "p1", TabID: "t1"}, sampleSession()))

			// Fresh slots survive a long TTL.
			removed, err := repo.CleanupExpiredSlots(ctx, time.Hour)
			require.NoError(t, err)
			assert.Zero(t, removed)

			// A negative TTL makes every slot expired.
			removed, err = repo.CleanupExpiredSlots(ctx, -time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(1), removed)
		})
	}
}

func TestProfileRoundTrip(t *testing.T) {
	t.Parallel()

	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().Truncate(time.Second)
			p := &domain.Profile{
				ProfileID:   "anon_abc",
				DisplayName: "anon-abc",
				HomeCity:    "Lisbon",
				LastSeenAt:  now,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			require.NoError(t, repo.UpsertProfile(ctx, p))

			got, err := repo.GetProfile(ctx, "anon_abc")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, p.DisplayName, got.DisplayName)
			assert.Equal(t, p.HomeCity, got.HomeCity)

			missing, err := repo.GetProfile(ctx, "anon_missing")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}
