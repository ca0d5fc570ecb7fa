// Package memory keeps query log entries in memory for tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/searchconsole/internal/querylog"
)

// Logger stores logged entries for inspection.
type Logger struct {
	mu      sync.RWMutex
	entries []querylog.Entry
	err     error
}

// New returns an empty Logger.
func New() *Logger {
	return &Logger{}
}

// FailWith makes every later Log call return err.
func (l *Logger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Log records e.
func (l *Logger) Log(_ context.Context, e querylog.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries.
func (l *Logger) Entries() []querylog.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]querylog.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Close does nothing.
func (l *Logger) Close() error { return nil }
