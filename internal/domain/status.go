package domain

import (
	"errors"
	"fmt"
)

// Status is the session lifecycle state.
type Status string

const (
	// StatusPending means the session was created but ingestion has not started.
	StatusPending Status = "pending"
	// StatusStreaming means chunks are being merged into the session.
	StatusStreaming Status = "streaming"
	// StatusComplete means ingestion finished normally.
	StatusComplete Status = "complete"
	// StatusError means ingestion aborted on a transport failure.
	StatusError Status = "error"
)

// ErrInvalidTransition is returned for a status change the lifecycle
// does not allow (pending → streaming → complete|error; terminal states
// are also reachable straight from pending — an upstream refusal errors
// the session before any chunk arrives, and a chunkless stream that
// ends cleanly still completes).
var ErrInvalidTransition = errors.New("invalid session status transition")

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

func validTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusStreaming || to == StatusComplete || to == StatusError
	case StatusStreaming:
		return to == StatusStreaming || to == StatusComplete || to == StatusError
	}
	return false
}

// Transition moves the session to the given status, enforcing the
// lifecycle rules. Repeated streaming → streaming is a no-op so every
// merged chunk can assert the status cheaply.
func (s *Session) Transition(to Status) error {
	if s.Status == to && !s.Status.Terminal() {
		return nil
	}
	if !validTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return nil
}
