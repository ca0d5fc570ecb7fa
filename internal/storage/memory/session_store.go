// Package memory keeps the session record in process memory for tests and
// short-lived console servers.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/searchconsole/internal/session"
)

// SessionStore holds at most one session record.
type SessionStore struct {
	mu  sync.RWMutex
	rec *session.Record
}

// NewSessionStore creates an empty in-memory store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Load returns a copy of the stored record, or nil.
func (s *SessionStore) Load(_ context.Context) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return nil, nil
	}
	out := clone(*s.rec)
	return &out, nil
}

// Save replaces the stored record.
func (s *SessionStore) Save(_ context.Context, rec session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := clone(rec)
	s.rec = &c
	return nil
}

// Clear drops the stored record.
func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

func clone(rec session.Record) session.Record {
	rec.User.Authorities = slices.Clone(rec.User.Authorities)
	return rec
}
