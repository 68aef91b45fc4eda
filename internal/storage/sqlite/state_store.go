// Package sqlite keeps the seen-state document in a SQLite row.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/JakeFAU/boardwatch/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_state (
	state_key  TEXT PRIMARY KEY,
	ids        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Config describes the SQLite database and the row used for state.
type Config struct {
	// DSN is a file path or modernc DSN; ":memory:" keeps everything in memory.
	DSN string
	Key string
}

// StateStore reads and upserts one row keyed by the state key.
type StateStore struct {
	db  *sqlx.DB
	key string
}

var _ storage.Provider = (*StateStore)(nil)

// New opens the database, applies pragmas and creates the table.
func New(ctx context.Context, cfg Config) (*StateStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.sqlite_path is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("state key is required")
	}
	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &StateStore{db: db, key: cfg.Key}, nil
}

// Read loads the document for the configured key.
func (s *StateStore) Read(ctx context.Context) ([]byte, error) {
	var ids string
	err := s.db.GetContext(ctx, &ids, `SELECT ids FROM seen_state WHERE state_key = ?`, s.key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select state row: %w", err)
	}
	return []byte(ids), nil
}

// Write upserts the document for the configured key.
func (s *StateStore) Write(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO seen_state (state_key, ids, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(state_key) DO UPDATE SET ids = excluded.ids, updated_at = excluded.updated_at`,
		s.key, string(data))
	if err != nil {
		return fmt.Errorf("upsert state row: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *StateStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
