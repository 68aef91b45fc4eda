// Package memory provides an in-memory state store for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/boardwatch/internal/storage"
)

// Store keeps the document in memory.
type Store struct {
	mu     sync.RWMutex
	data   []byte
	writes int
}

var _ storage.Provider = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Read returns a copy of the stored document or storage.ErrNotFound.
func (s *Store) Read(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// Write replaces the stored document.
func (s *Store) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte{}, data...)
	s.writes++
	return nil
}

// Writes reports how many times Write was called.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
