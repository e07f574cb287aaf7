package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session records one user query's request/response lifecycle: identity,
// domain classification, the accumulated result payload, and status.
type Session struct {
	SessionID string     `json:"session_id"`
	Domain    Domain     `json:"domain"`
	Query     string     `json:"query,omitempty"`
	City      string     `json:"city,omitempty"`
	Data      ResultData `json:"data"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewSession creates a fresh session for the given domain with a unique
// id, an empty-but-shaped result accumulator, and pending status. Query
// and City stay unset until the caller assigns them.
func NewSession(d Domain) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID: uuid.NewString(),
		Domain:    d,
		Data:      ResultData{},
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyFragment merges a partial update into the session per the
// monotonic-enrichment rule: a populated field is only ever replaced by
// a newer non-empty value, never cleared. City and Domain metadata
// revealed by the server update the session opportunistically.
func (s *Session) ApplyFragment(f *Fragment) {
	if f == nil {
		return
	}
	s.Data.merge(f)
	if f.City != "" {
		s.City = f.City
	}
	if f.Domain != "" && Domain(f.Domain).Valid() {
		s.Domain = Domain(f.Domain)
	}
	if s.City == "" && f.GeneralCity != nil && f.GeneralCity.City != "" {
		s.City = f.GeneralCity.City
	}
	s.UpdatedAt = time.Now().UTC()
}
