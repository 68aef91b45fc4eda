package seen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/storage"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Store loads and persists a Set through a storage.Provider. The document is
// a JSON array of IDs.
type Store struct {
	provider storage.Provider
	logger   *zap.Logger
}

// NewStore wires a Store to provider.
func NewStore(provider storage.Provider, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{provider: provider, logger: logger}
}

// Load reads the persisted set. It never fails: a missing document yields an
// empty set, and an unreadable or corrupt one yields an empty set plus a
// warning.
func (s *Store) Load(ctx context.Context) *Set {
	data, err := s.provider.Read(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Info("no persisted seen state, starting empty")
			return NewSet()
		}
		s.logger.Warn("seen state unreadable, starting empty",
			zap.Error(&watch.StorageError{Op: "load", Err: err}))
		return NewSet()
	}
	ids, err := decode(data)
	if err != nil {
		s.logger.Warn("seen state corrupt, starting empty",
			zap.Error(&watch.StorageError{Op: "load", Err: err}))
		return NewSet()
	}
	set := NewSet(ids...)
	s.logger.Info("seen state loaded", zap.Int("ids", set.Len()))
	return set
}

// Persist overwrites the stored document with every ID in set.
func (s *Store) Persist(ctx context.Context, set *Set) error {
	data, err := json.Marshal(set.IDs())
	if err != nil {
		return &watch.StorageError{Op: "persist", Err: fmt.Errorf("encode ids: %w", err)}
	}
	if err := s.provider.Write(ctx, data); err != nil {
		return &watch.StorageError{Op: "persist", Err: err}
	}
	return nil
}

func decode(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	return ids, nil
}
