// Package pipeline orchestrates the query-to-results session lifecycle:
// classify → create session → ingest the assistant stream → persist →
// compute the destination route.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/wayfarer-labs/wayfarer/internal/assistant"
	"github.com/wayfarer-labs/wayfarer/internal/classify"
	"github.com/wayfarer-labs/wayfarer/internal/domain"
	"github.com/wayfarer-labs/wayfarer/internal/routing"
	"github.com/wayfarer-labs/wayfarer/internal/store"
	"github.com/wayfarer-labs/wayfarer/internal/stream"
)

// ErrUpstreamUnavailable is returned when no assistant upstream is
// configured. The gateway still serves slot recovery without one.
var ErrUpstreamUnavailable = errors.New("assistant upstream not configured")

// Streamer opens the upstream incremental response for a query.
// Implemented by the assistant client.
type Streamer interface {
	Stream(ctx context.Context, req assistant.QueryRequest) (io.ReadCloser, error)
}

// Geo is an optional user location forwarded to the assistant.
type Geo struct {
	Latitude  float64
	Longitude float64
}

// Event is one pipeline outcome delivered to the transport layer.
// Route is set on the terminal complete event.
type Event struct {
	Kind    stream.EventKind
	Session *domain.Session
	Route   string
	Err     error
}

// Pipeline wires the classifier, assistant client, ingestor, and
// session persistence together. Persistence is injected so tests can
// substitute an in-memory store.
type Pipeline struct {
	assistant Streamer
	repo      store.Repository
	ingestor  *stream.Ingestor
	logger    *slog.Logger
}

// New creates a pipeline. A nil logger falls back to slog's default.
func New(a Streamer, repo store.Repository, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		assistant: a,
		repo:      repo,
		ingestor:  stream.NewIngestor(logger),
		logger:    logger,
	}
}

// Run starts a new session for the query and returns its event stream.
//
// A missing profile id fails synchronously before any session exists.
// Everything after session creation — upstream refusal, transport drop —
// surfaces through a terminal Error event instead, with the session
// finalized and persisted. The current slot is rewritten after every
// merged chunk; the completed slot is written once, at completion, so a
// later navigation can tell "still going" from "done". No retry happens
// here: callers restart the whole pipeline with a fresh session.
func (p *Pipeline) Run(ctx context.Context, scope store.Scope, query string, geo *Geo) (iter.Seq[Event], error) {
	if p.assistant == nil {
		return nil, ErrUpstreamUnavailable
	}
	if scope.ProfileID == "" {
		return nil, assistant.ErrMissingProfile
	}

	d := classify.Classify(query)
	sess := domain.NewSession(d)
	sess.Query = query

	if err := p.repo.SaveCurrent(ctx, scope, sess); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	p.logger.Info("session created",
		"profile_id", scope.ProfileID,
		"tab_id", scope.TabID,
		"session_id", sess.SessionID,
		"domain", sess.Domain,
	)

	req := assistant.QueryRequest{
		ProfileID: scope.ProfileID,
		Message:   query,
		Domain:    string(d),
		SessionID: sess.SessionID,
	}
	if geo != nil {
		req.Latitude = &geo.Latitude
		req.Longitude = &geo.Longitude
	}

	return func(yield func(Event) bool) {
		body, err := p.assistant.Stream(ctx, req)
		if err != nil {
			if terr := sess.Transition(domain.StatusError); terr != nil {
				p.logger.Warn("status transition rejected", "session_id", sess.SessionID, "error", terr)
			}
			p.saveCurrent(ctx, scope, sess)
			yield(Event{Kind: stream.EventError, Session: sess, Err: err})
			return
		}
		defer func() {
			if closeErr := body.Close(); closeErr != nil {
				p.logger.Debug("failed to close assistant stream", "session_id", sess.SessionID, "error", closeErr)
			}
		}()

		for ev := range p.ingestor.Events(body, sess) {
			switch ev.Kind {
			case stream.EventProgress:
				p.saveCurrent(ctx, scope, sess)
				if !yield(Event{Kind: stream.EventProgress, Session: sess}) {
					return
				}
			case stream.EventComplete:
				p.saveCurrent(ctx, scope, sess)
				if err := p.repo.SaveCompleted(ctx, scope, sess); err != nil {
					p.logger.Warn("failed to persist completed session", "session_id", sess.SessionID, "error", err)
				}
				route := routing.RouteFor(sess.Domain, sess.SessionID, sess.City)
				p.logger.Info("session complete",
					"session_id", sess.SessionID,
					"domain", sess.Domain,
					"city", sess.City,
					"route", route,
				)
				yield(Event{Kind: stream.EventComplete, Session: sess, Route: route})
				return
			case stream.EventError:
				p.saveCurrent(ctx, scope, sess)
				p.logger.Error("session stream failed", "session_id", sess.SessionID, "error", ev.Err)
				yield(Event{Kind: stream.EventError, Session: sess, Err: ev.Err})
				return
			}
		}
	}, nil
}

// saveCurrent persists the in-flight session; a failed save is logged
// and ingestion continues — partial persistence beats a dead stream.
func (p *Pipeline) saveCurrent(ctx context.Context, scope store.Scope, sess *domain.Session) {
	if err := p.repo.SaveCurrent(ctx, scope, sess); err != nil {
		p.logger.Warn("failed to persist session slot", "session_id", sess.SessionID, "error", err)
	}
}

// Resume returns the scope's completed session when its id matches the
// one the view was navigated with, nil otherwise. Views call this on
// mount before falling back to a fresh pipeline run.
func (p *Pipeline) Resume(ctx context.Context, scope store.Scope, sessionID string) (*domain.Session, error) {
	sess, err := p.repo.LoadCompleted(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load completed session: %w", err)
	}
	if sess == nil || sess.SessionID != sessionID {
		return nil, nil
	}
	return sess, nil
}

// Current returns the scope's in-flight session, if any.
func (p *Pipeline) Current(ctx context.Context, scope store.Scope) (*domain.Session, error) {
	sess, err := p.repo.LoadCurrent(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	return sess, nil
}

// Reset clears both session slots. Callers invoke this before starting
// an unrelated new conversation.
func (p *Pipeline) Reset(ctx context.Context, scope store.Scope) error {
	if err := p.repo.ClearSlots(ctx, scope); err != nil {
		return fmt.Errorf("clear session slots: %w", err)
	}
	return nil
}
