// Package postgres persists the session record in a Postgres table so several
// console servers can share one login.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/searchconsole/internal/session"
)

const (
	// DefaultTable is the table created by the embedded migrations.
	DefaultTable = "console_sessions"
	// DefaultKey identifies the record when no profile key is configured.
	DefaultKey = "default"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and row addressing.
type Config struct {
	DSN             string
	Table           string
	Key             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// SessionStore keeps one session record per key. Each write is a single
// upsert of the whole record.
type SessionStore struct {
	pool  queryCloser
	table string
	key   string
}

// New connects to Postgres and returns a store.
func New(ctx context.Context, cfg Config) (*SessionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("session.dsn is required")
	}
	table, key, err := normalize(cfg.Table, cfg.Key)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SessionStore{pool: pool, table: table, key: key}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool queryCloser, table, key string) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, key, err := normalize(table, key)
	if err != nil {
		return nil, err
	}
	return &SessionStore{pool: pool, table: table, key: key}, nil
}

func normalize(table, key string) (string, string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}
	if key == "" {
		key = DefaultKey
	}
	return table, key, nil
}

// Close releases the underlying pool resources.
func (s *SessionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load returns the record stored under the store's key, or nil.
func (s *SessionStore) Load(ctx context.Context) (*session.Record, error) {
	query := fmt.Sprintf(`SELECT record FROM %s WHERE id = $1`, s.table)
	var data []byte
	err := s.pool.QueryRow(ctx, query, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

// Save upserts the whole record.
func (s *SessionStore) Save(ctx context.Context, rec session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, record, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE
SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.key, data); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Clear deletes the record.
func (s *SessionStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
