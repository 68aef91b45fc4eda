package watch

import (
	"errors"
	"fmt"
)

// ErrExtractionEmpty reports that no extraction strategy produced enough
// candidates. A genuinely empty board and undetected markup drift look the
// same here.
var ErrExtractionEmpty = errors.New("no extraction strategy met the candidate threshold")

// RenderErrorKind tags the stage a render failed in.
type RenderErrorKind string

// Render error kinds.
const (
	RenderSession    RenderErrorKind = "session"
	RenderNavigation RenderErrorKind = "navigation"
)

// RenderError aborts the current cycle only.
type RenderError struct {
	Kind RenderErrorKind
	URL  string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// TransportError aborts a single alert; the item is still recorded as seen.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError wraps identity store failures. On load it degrades to an
// empty set; on persist the in-memory set stays authoritative.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("seen store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
