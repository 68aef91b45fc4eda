// Package local implements the seen-state document on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/boardwatch/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// Path is the state file. Its directory is created when missing.
	Path string `mapstructure:"path" yaml:"path"`
}

// Store keeps the document in a single file.
type Store struct {
	path string
}

var _ storage.Provider = (*Store)(nil)

// New creates a file-backed store, making sure the parent directory exists
// and is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("state path is required")
	}
	dir := filepath.Dir(cfg.Path)

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat state directory: %w", err)
		}
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("state directory path is not a directory")
	}
	if info, err := os.Stat(cfg.Path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("state path %s is a directory", cfg.Path)
	}

	return &Store{path: cfg.Path}, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the file contents or storage.ErrNotFound.
func (s *Store) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return data, nil
}

// Write replaces the file atomically: the data goes to a temp file in the
// same directory which is then renamed over the target.
func (s *Store) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
