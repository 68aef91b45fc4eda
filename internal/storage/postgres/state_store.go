// Package postgres keeps the seen-state document in a Postgres row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/boardwatch/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "boardwatch_state"

// Config controls the Postgres connection pool used for the state row.
type Config struct {
	DSN             string
	Table           string
	Key             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// StateStore reads and upserts one jsonb row keyed by the state key.
type StateStore struct {
	pool  pool
	table string
	key   string

	schemaMu    sync.Mutex
	schemaReady bool
}

var _ storage.Provider = (*StateStore)(nil)

// New builds a pool without dialing. The state table is created on first use
// so an unreachable database degrades the first load instead of start-up.
func New(ctx context.Context, cfg Config) (*StateStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table, cfg.Key)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table, key string) (*StateStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if key == "" {
		return nil, fmt.Errorf("state key is required")
	}
	return &StateStore{pool: p, table: table, key: key}, nil
}

// EnsureSchema creates the state table when it does not exist.
func (s *StateStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	state_key  TEXT PRIMARY KEY,
	ids        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

// ensureSchema runs EnsureSchema once; a failure is retried on the next call.
func (s *StateStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

// Read loads the document for the configured key.
func (s *StateStore) Read(ctx context.Context) ([]byte, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT ids FROM %s WHERE state_key = $1`, s.table)
	var ids []byte
	if err := s.pool.QueryRow(ctx, query, s.key).Scan(&ids); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select state row: %w", err)
	}
	return ids, nil
}

// Write upserts the document for the configured key.
func (s *StateStore) Write(ctx context.Context, data []byte) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (state_key, ids, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (state_key) DO UPDATE SET ids = EXCLUDED.ids, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.key, data); err != nil {
		return fmt.Errorf("upsert state row: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *StateStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
