package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Fanout delivers every message to all transports. One transport failing
// does not stop the others; the joined error carries each TransportError.
type Fanout struct {
	notifiers []watch.Notifier
}

// NewFanout builds a Fanout over notifiers, skipping nils.
func NewFanout(notifiers ...watch.Notifier) *Fanout {
	f := &Fanout{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// Len returns the number of transports.
func (f *Fanout) Len() int {
	return len(f.notifiers)
}

// Send implements watch.Notifier.
func (f *Fanout) Send(ctx context.Context, msg watch.Message) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes messages to the logger instead of sending them. Used for dry
// runs.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a logging notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Send implements watch.Notifier.
func (l *Log) Send(_ context.Context, msg watch.Message) error {
	l.logger.Info("alert (dry run)",
		zap.String("item_id", msg.Item.ID),
		zap.String("keyword", msg.Keyword),
		zap.String("text", msg.Text))
	return nil
}
