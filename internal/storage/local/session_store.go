// Package local persists the session record as a JSON file on the local
// filesystem.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/searchconsole/internal/session"
)

// Config captures the parameters for the file-backed session store.
type Config struct {
	// Path is the file holding the session record.
	Path string `mapstructure:"path" yaml:"path"`
}

// SessionStore writes the session record to a single file. Writes go to a
// temporary file that is renamed over the target, so readers see either the
// old record or the new one.
type SessionStore struct {
	mu   sync.Mutex
	path string
}

// New creates a file-backed session store, creating the parent directory.
func New(cfg Config) (*SessionStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("session path is required")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat session directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("session directory path is not a directory")
	}
	return &SessionStore{path: path}, nil
}

// Path returns the file backing the store.
func (s *SessionStore) Path() string {
	return s.path
}

// Load reads the stored record. A missing file means no session.
func (s *SessionStore) Load(_ context.Context) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}
	return &rec, nil
}

// Save replaces the stored record atomically.
func (s *SessionStore) Save(_ context.Context, rec session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear removes the session file.
func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
