// Package gcs keeps the seen-state document as a Google Cloud Storage object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	store "github.com/JakeFAU/boardwatch/internal/storage"
)

// Config captures the bucket and object holding the document.
type Config struct {
	Bucket string
	Object string
}

// object is the subset of *storage.ObjectHandle the store needs.
type object interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) io.WriteCloser
}

type objectHandle struct {
	h *storage.ObjectHandle
}

func (o objectHandle) NewReader(ctx context.Context) (io.ReadCloser, error) {
	r, err := o.h.NewReader(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return r, nil
}

func (o objectHandle) NewWriter(ctx context.Context) io.WriteCloser {
	w := o.h.NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

// StateStore reads and overwrites one object.
type StateStore struct {
	obj object
	uri string
}

var _ store.Provider = (*StateStore)(nil)

// New creates a GCS-backed state store.
func New(client *storage.Client, cfg Config) (*StateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	return &StateStore{
		obj: objectHandle{h: client.Bucket(cfg.Bucket).Object(cfg.Object)},
		uri: fmt.Sprintf("gs://%s/%s", cfg.Bucket, cfg.Object),
	}, nil
}

// URI returns the gs:// location of the document.
func (s *StateStore) URI() string {
	return s.uri
}

// Read downloads the object or returns store.ErrNotFound.
func (s *StateStore) Read(ctx context.Context) ([]byte, error) {
	r, err := s.obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", s.uri, err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.uri, err)
	}
	return data, nil
}

// Write uploads the document, replacing the object. GCS object writes are
// atomic: readers see the old or the new version, never a partial one.
func (s *StateStore) Write(ctx context.Context, data []byte) error {
	writer := s.obj.NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
