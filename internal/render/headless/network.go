package headless

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// networkTracker counts in-flight requests of one tab so the renderer can
// wait for the network to go quiet.
type networkTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	now          func() time.Time

	// mainFrame filters document responses once the tab's target is known.
	mainFrame  cdp.FrameID
	statusCode int
	finalURL   string
}

func newNetworkTracker(now func() time.Time) *networkTracker {
	if now == nil {
		now = time.Now
	}
	return &networkTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: now(),
		now:          now,
	}
}

// observe is registered with chromedp.ListenTarget.
func (t *networkTracker) observe(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
		t.lastActivity = t.now()
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
		t.lastActivity = t.now()
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
		t.lastActivity = t.now()
	case *network.EventResponseReceived:
		// The challenge page reloads itself, so keep the latest document.
		// Iframes (ads, the challenge widget) load documents of their own.
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		if t.mainFrame == "" || e.FrameID == t.mainFrame {
			t.statusCode = int(e.Response.Status)
			t.finalURL = e.Response.URL
		}
	}
}

// setMainFrame restricts document tracking to frame.
func (t *networkTracker) setMainFrame(frame cdp.FrameID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mainFrame = frame
}

// idle reports whether nothing is in flight and nothing happened for window.
func (t *networkTracker) idle(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastActivity) >= window
}

func (t *networkTracker) document(requested string) (string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalURL == "" {
		return requested, t.statusCode
	}
	return t.finalURL, t.statusCode
}

// waitQuiet blocks until the tracker is idle for window or ctx ends.
func (t *networkTracker) waitQuiet(ctx context.Context, window time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if t.idle(window) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
