package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const pollInterval = 100 * time.Millisecond

// challengePage is what the challenge flow needs from a live tab.
type challengePage interface {
	markerCount(ctx context.Context) (int, error)
	waitQuiet(ctx context.Context, window time.Duration) error
}

type challengeConfig struct {
	timeout     time.Duration
	grace       time.Duration
	quietWindow time.Duration
}

// resolveChallenge waits out an interstitial if one is showing. An uncleared
// challenge is not an error; the caller reports it on the document.
func resolveChallenge(ctx context.Context, p challengePage, cfg challengeConfig, logger *zap.Logger) (challenged, cleared bool) {
	n, err := p.markerCount(ctx)
	if err != nil {
		logger.Warn("challenge probe failed", zap.Error(err))
		return false, true
	}
	if n == 0 {
		return false, true
	}
	logger.Info("challenge page detected, waiting", zap.Int("markers", n))

	quietCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	err = p.waitQuiet(quietCtx, cfg.quietWindow)
	cancel()
	if err != nil {
		logger.Debug("network did not settle before challenge timeout", zap.Error(err))
	}
	if err := sleep(ctx, cfg.grace); err != nil {
		return true, false
	}

	n, err = p.markerCount(ctx)
	if err != nil {
		logger.Warn("challenge recheck failed", zap.Error(err))
		return true, false
	}
	if n > 0 {
		logger.Warn("challenge still present after wait", zap.Int("markers", n))
		return true, false
	}
	logger.Info("challenge cleared")
	return true, true
}

// tab binds a chromedp tab to the challenge flow. Contexts passed to its
// methods must derive from the tab context.
type tab struct {
	marker  string
	tracker *networkTracker
}

func (t tab) markerCount(ctx context.Context) (int, error) {
	var n int
	if err := chromedp.Run(ctx, chromedp.Evaluate(markerScript(t.marker), &n)); err != nil {
		return 0, fmt.Errorf("evaluate challenge marker: %w", err)
	}
	return n, nil
}

func (t tab) waitQuiet(ctx context.Context, window time.Duration) error {
	return t.tracker.waitQuiet(ctx, window)
}

// markerScript counts leaf elements whose text contains marker.
func markerScript(marker string) string {
	quoted, _ := json.Marshal(marker)
	return fmt.Sprintf(`(function(m){
	var n = 0;
	var els = document.querySelectorAll('body *');
	for (var i = 0; i < els.length; i++) {
		var el = els[i];
		if (el.children.length === 0 && el.textContent && el.textContent.indexOf(m) !== -1) n++;
	}
	return n;
})(%s)`, quoted)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
