// Package stream ingests incremental assistant responses into a session.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/wayfarer-labs/wayfarer/internal/domain"
)

const (
	dataPrefix = "data: "
	doneSignal = "[DONE]"

	// maxChunkSize bounds a single SSE line so a misbehaving upstream
	// cannot grow the scanner buffer without limit. A line over this
	// limit is a transport fault (the session errors), not a malformed
	// chunk to skip: the scanner cannot resynchronize to the next line
	// once its buffer overflows mid-record.
	maxChunkSize = 1 << 20
)

// ErrIngestActive is returned when ingestion is started against a
// session that is not pending. Each user query must construct a new
// session; re-ingesting an in-flight or finished one is rejected.
var ErrIngestActive = errors.New("session already ingesting or finished")

// EventKind tags an ingestion event.
type EventKind string

const (
	// EventProgress fires after each successfully merged chunk.
	EventProgress EventKind = "progress"
	// EventComplete fires exactly once when the stream ends normally.
	EventComplete EventKind = "complete"
	// EventError fires exactly once on a transport-level failure.
	EventError EventKind = "error"
)

// Event is one tagged ingestion outcome. Progress events carry the
// mutated session; Complete carries the finalized session; Error
// carries the transport error. Complete and Error are terminal and
// mutually exclusive, and nothing follows either.
type Event struct {
	Kind    EventKind
	Session *domain.Session
	Err     error
}

// Ingestor consumes a chunked response body and merges partial updates
// into a session, one event per defined point in the lifecycle.
type Ingestor struct {
	logger *slog.Logger
}

// NewIngestor creates an ingestor. A nil logger falls back to the
// default slog logger.
func NewIngestor(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{logger: logger}
}

// Events consumes body and yields tagged events in chunk order.
//
// Each chunk is one SSE "data:" line holding a JSON fragment; the
// stream terminates on a "data: [DONE]" signal or a clean EOF. A
// malformed chunk is discarded and ingestion continues — partial data
// beats total failure. A read error finalizes the session as errored.
// Stopping the iterator early abandons the stream with no further
// effect on the session.
func (in *Ingestor) Events(body io.Reader, sess *domain.Session) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if sess.Status != domain.StatusPending {
			yield(Event{Kind: EventError, Session: sess, Err: fmt.Errorf("%w: %s", ErrIngestActive, sess.SessionID)})
			return
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxChunkSize)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			payload := strings.TrimPrefix(line, dataPrefix)
			if payload == doneSignal {
				break
			}

			frag, err := domain.DecodeFragment([]byte(payload))
			if err != nil {
				in.logger.Debug("discarding malformed chunk",
					"session_id", sess.SessionID,
					"error", err,
				)
				continue
			}

			sess.ApplyFragment(frag)
			if err := sess.Transition(domain.StatusStreaming); err != nil {
				// Unreachable given the pending check above; guards the
				// state machine all the same.
				in.logger.Warn("status transition rejected", "session_id", sess.SessionID, "error", err)
			}
			if !yield(Event{Kind: EventProgress, Session: sess}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if terr := sess.Transition(domain.StatusError); terr != nil {
				in.logger.Warn("status transition rejected", "session_id", sess.SessionID, "error", terr)
			}
			yield(Event{Kind: EventError, Session: sess, Err: fmt.Errorf("read stream: %w", err)})
			return
		}

		if err := sess.Transition(domain.StatusComplete); err != nil {
			in.logger.Warn("status transition rejected", "session_id", sess.SessionID, "error", err)
		}
		yield(Event{Kind: EventComplete, Session: sess})
	}
}

// Callbacks receives ingestion events for callers that prefer the
// callback shape over ranging the event iterator.
type Callbacks struct {
	OnProgress func(*domain.Session)
	OnComplete func(*domain.Session)
	OnError    func(error)
}

// Run consumes the body to completion, dispatching each event to the
// matching callback. Nil callbacks are skipped.
func (in *Ingestor) Run(body io.Reader, sess *domain.Session, cb Callbacks) {
	for ev := range in.Events(body, sess) {
		switch ev.Kind {
		case EventProgress:
			if cb.OnProgress != nil {
				cb.OnProgress(ev.Session)
			}
		case EventComplete:
			if cb.OnComplete != nil {
				cb.OnComplete(ev.Session)
			}
		case EventError:
			if cb.OnError != nil {
				cb.OnError(ev.Err)
			}
		}
	}
}
