package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
	"github.com/wayfarer-labs/wayfarer/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	slotMu sync.Mutex // Mutex for slot writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS profiles (
		profile_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		home_city TEXT,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_slots (
		profile_id TEXT NOT NULL,
		tab_id TEXT NOT NULL,
		slot TEXT NOT NULL,
		session_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (profile_id, tab_id, slot)
	);
	CREATE INDEX IF NOT EXISTS idx_session_slots_updated ON session_slots(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by id.
func (s *SQLiteStore) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	query := `
		SELECT profile_id, display_name, home_city, last_seen_at, created_at, updated_at
		FROM profiles WHERE profile_id = ?`

	row := s.db.QueryRowContext(ctx, query, profileID)

	var p domain.Profile
	var homeCity sql.NullString
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&p.ProfileID, &p.DisplayName, &homeCity, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	p.HomeCity = homeCity.String
	p.LastSeenAt = time.Unix(lastSeen, 0)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

// UpsertProfile creates or updates a profile record.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	query := `
	INSERT INTO profiles (profile_id, display_name, home_city, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id) DO UPDATE SET
		display_name = excluded.display_name,
		home_city = COALESCE(excluded.home_city, profiles.home_city),
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	var homeCity interface{}
	if p.HomeCity != "" {
		homeCity = p.HomeCity
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ProfileID, p.DisplayName, homeCity,
		p.LastSeenAt.Unix(), p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a profile.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, profileID string, lastSeen time.Time) error {
	query := `UPDATE profiles SET last_seen_at = ?, updated_at = ? WHERE profile_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), profileID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "profile_id", profileID)
	}

	return nil
}

// SaveCurrent writes the session into the scope's current slot.
func (s *SQLiteStore) SaveCurrent(ctx context.Context, scope Scope, sess *domain.Session) error {
	return s.saveSlot(ctx, scope, SlotCurrent, sess)
}

// SaveCompleted writes the session into the scope's completed slot.
func (s *SQLiteStore) SaveCompleted(ctx context.Context, scope Scope, sess *domain.Session) error {
	return s.saveSlot(ctx, scope, SlotCompleted, sess)
}

func (s *SQLiteStore) saveSlot(ctx context.Context, scope Scope, slot Slot, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}

	query := `
		INSERT INTO session_slots (profile_id, tab_id, slot, session_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(profile_id, tab_id, slot) DO UPDATE SET
			session_json = excluded.session_json,
			updated_at = excluded.updated_at`

	// Retry with backoff on SQLITE_BUSY; slot writes happen on every
	// merged chunk and can race the cleanup worker.
	maxRetries := 3
	baseDelay := 100 * time.Millisecond
	for i := 0; i < maxRetries; i++ {
		err = s.execSlotWrite(ctx, query, scope.ProfileID, scope.TabID, string(slot), string(raw), time.Now().Unix())
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("slot write hit SQLITE_BUSY, retrying",
				"profile_id", scope.ProfileID,
				"slot", slot,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return fmt.Errorf("save %s slot: %w", slot, err)
}

func (s *SQLiteStore) execSlotWrite(ctx context.Context, query string, args ...interface{}) error {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// LoadCurrent returns the scope's current session.
func (s *SQLiteStore) LoadCurrent(ctx context.Context, scope Scope) (*domain.Session, error) {
	return s.loadSlot(ctx, scope, SlotCurrent)
}

// LoadCompleted returns the scope's completed session.
func (s *SQLiteStore) LoadCompleted(ctx context.Context, scope Scope) (*domain.Session, error) {
	return s.loadSlot(ctx, scope, SlotCompleted)
}

func (s *SQLiteStore) loadSlot(ctx context.Context, scope Scope, slot Slot) (*domain.Session, error) {
	query := `SELECT session_json FROM session_slots WHERE profile_id = ? AND tab_id = ? AND slot = ?`
	row := s.db.QueryRowContext(ctx, query, scope.ProfileID, scope.TabID, string(slot))

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s slot: %w", slot, err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// Corrupt persisted state degrades to "nothing recovered".
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
func (s *SQLiteStore) ClearSlots(ctx context.Context, scope Scope) error {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()

	query := `DELETE FROM session_slots WHERE profile_id = ? AND tab_id = ?`
	if _, err := s.db.ExecContext(ctx, query, scope.ProfileID, scope.TabID); err != nil {
		return fmt.Errorf("clear session slots: %w", err)
	}
	return nil
}

// CleanupExpiredSlots removes slots older than TTL.
func (s *SQLiteStore) CleanupExpiredSlots(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM session_slots WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired slots: %w", err)
	}
	return result.RowsAffected()
}
