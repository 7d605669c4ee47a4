package query

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// Session is a consumer-scoped handle on an Executor. Starting a query on a
// session cancels the query it started before, if that one is still running.
// Queries on other sessions are unaffected.
type Session struct {
	id   string
	exec *Executor

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelCauseFunc
}

// NewSession creates a session with a fresh ID.
func (e *Executor) NewSession() *Session {
	return &Session{id: uuid.NewString(), exec: e}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Execute runs d, abandoning the session's previous in-flight query. The
// abandoned query fails with a cancellation-class error wrapping
// errors.ErrCancelled.
func (s *Session) Execute(ctx context.Context, d Description) ([]Record, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(errors.ErrCancelled)
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.generation == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel(nil)
	}()

	rows, err := s.exec.Execute(ctx, d)
	if err != nil {
		s.exec.logger.Debug("Session query ended", "session_id", s.id, "resource", d.Resource, "error", err)
	}
	return rows, err
}

// Cancel aborts the in-flight query, if any. Safe to call repeatedly.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel(errors.ErrCancelled)
		s.cancel = nil
	}
}
