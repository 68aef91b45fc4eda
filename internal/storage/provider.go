// Package storage defines the interface for a seen-state document store.
// This abstraction lets the identity store stay independent of where the
// document lives (local file, SQLite, Postgres, or Google Cloud Storage).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no document has been written yet.
var ErrNotFound = errors.New("state document not found")

// Provider reads and overwrites a single state document.
type Provider interface {
	// Read returns the current document or ErrNotFound.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the document in full.
	Write(ctx context.Context, data []byte) error
}

// NoOpProvider never finds a document and discards writes. It backs dry runs
// where state must not change.
type NoOpProvider struct{}

// Read always reports ErrNotFound.
func (NoOpProvider) Read(_ context.Context) ([]byte, error) {
	return nil, ErrNotFound
}

// Write does nothing and always returns nil.
func (NoOpProvider) Write(_ context.Context, _ []byte) error {
	return nil
}
