package watch

import (
	"context"
	"time"
)

// Renderer turns a URL into a rendered Document.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (Document, error)
	Close() error
}

// Notifier delivers a formatted alert.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}
