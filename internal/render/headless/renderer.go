// Package headless renders pages with headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/render"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Config controls the browser session.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Locale         string
	Timezone       string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// NoSandbox is needed when running as root in containers.
	NoSandbox bool

	NavTimeout       time.Duration
	ContentTimeout   time.Duration
	ChallengeMarker  string
	ChallengeTimeout time.Duration
	ChallengeGrace   time.Duration
	QuietWindow      time.Duration
	WaitSelectors    []string
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = render.DefaultUserAgent
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = render.DefaultAcceptLanguage
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = render.DefaultNavTimeout
	}
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = render.DefaultContentTimeout
	}
	if c.ChallengeMarker == "" {
		c.ChallengeMarker = render.DefaultChallenge
	}
	if c.ChallengeTimeout <= 0 {
		c.ChallengeTimeout = 15 * time.Second
	}
	if c.ChallengeGrace < 0 {
		c.ChallengeGrace = 0
	}
	if c.QuietWindow <= 0 {
		c.QuietWindow = 500 * time.Millisecond
	}
	if len(c.WaitSelectors) == 0 {
		c.WaitSelectors = render.DefaultWaitSelectors()
	}
}

// Renderer owns one browser process. Every Render runs in a fresh browser
// context, so cookies and storage never leak between calls.
type Renderer struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
}

var _ watch.Renderer = (*Renderer)(nil)

// New starts the browser and warms it up. A failure here is fatal for the
// caller and is reported as a session RenderError.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", cfg.Locale))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, &watch.RenderError{Kind: watch.RenderSession, Err: fmt.Errorf("chromedp warmup: %w", err)}
	}
	logger.Info("headless browser started")

	return &Renderer{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator.
func (r *Renderer) Close() error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Render navigates to rawURL, waits out a challenge if one shows, waits for
// the list markup, and snapshots the DOM. Only session and navigation
// failures are errors.
func (r *Renderer) Render(ctx context.Context, rawURL string, opts watch.RenderOptions) (watch.Document, error) {
	start := time.Now()
	logger := r.logger.With(zap.String("url", rawURL))

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx, chromedp.WithNewBrowserContext())
	defer cancelTab()
	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	tracker := newNetworkTracker(nil)
	chromedp.ListenTarget(tabCtx, tracker.observe)

	if err := chromedp.Run(tabCtx, r.sessionSetup()); err != nil {
		return watch.Document{}, &watch.RenderError{Kind: watch.RenderSession, URL: rawURL, Err: err}
	}
	// The top-level frame shares its id with the page target.
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		tracker.setMainFrame(cdp.FrameID(c.Target.TargetID))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.cfg.NavTimeout
	}
	navCtx, cancelNav := context.WithTimeout(tabCtx, timeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(rawURL))
	cancelNav()
	if err != nil {
		return watch.Document{}, &watch.RenderError{Kind: watch.RenderNavigation, URL: rawURL, Err: err}
	}

	challenged, cleared := resolveChallenge(tabCtx, tab{marker: r.cfg.ChallengeMarker, tracker: tracker}, challengeConfig{
		timeout:     r.cfg.ChallengeTimeout,
		grace:       r.cfg.ChallengeGrace,
		quietWindow: r.cfg.QuietWindow,
	}, logger)
	// Interstitials are served as 403/503, so the status only counts once
	// the challenge is out of the way.
	finalURL, status := tracker.document(rawURL)
	if err := statusError(rawURL, status); err != nil {
		return watch.Document{}, err
	}

	selectors := opts.WaitSelectors
	if len(selectors) == 0 {
		selectors = r.cfg.WaitSelectors
	}
	ready := r.waitContent(tabCtx, selectors)
	if !ready {
		logger.Warn("list markup did not appear, returning page anyway",
			zap.Strings("selectors", selectors),
			zap.Bool("challenged", challenged),
			zap.Bool("challenge_cleared", cleared))
	}

	if err := sleep(tabCtx, opts.ExtraWait); err != nil {
		return watch.Document{}, &watch.RenderError{Kind: watch.RenderSession, URL: rawURL, Err: err}
	}

	var html string
	snapCtx, cancelSnap := context.WithTimeout(tabCtx, timeout)
	err = chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	cancelSnap()
	if err != nil {
		return watch.Document{}, &watch.RenderError{Kind: watch.RenderSession, URL: rawURL, Err: fmt.Errorf("snapshot: %w", err)}
	}

	finalURL, status = tracker.document(rawURL)
	return watch.Document{
		RequestURL:       rawURL,
		FinalURL:         finalURL,
		StatusCode:       status,
		HTML:             []byte(html),
		Challenged:       challenged,
		ChallengeCleared: cleared,
		ContentReady:     ready,
		Duration:         time.Since(start),
	}, nil
}

// statusError maps a non-2xx main document to a navigation failure. A zero
// status means no document response was seen and is left to the caller.
func statusError(rawURL string, status int) error {
	if status == 0 || (status >= 200 && status < 300) {
		return nil
	}
	return &watch.RenderError{Kind: watch.RenderNavigation, URL: rawURL, Err: fmt.Errorf("status %d", status)}
}

func (r *Renderer) sessionSetup() chromedp.Tasks {
	tasks := chromedp.Tasks{
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": r.cfg.AcceptLanguage}),
		emulation.SetUserAgentOverride(r.cfg.UserAgent).WithAcceptLanguage(r.cfg.AcceptLanguage),
	}
	if r.cfg.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(r.cfg.Locale))
	}
	if r.cfg.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(r.cfg.Timezone))
	}
	return tasks
}

// waitContent reports whether any selector showed up within the content
// timeout.
func (r *Renderer) waitContent(tabCtx context.Context, selectors []string) bool {
	ctx, cancel := context.WithTimeout(tabCtx, r.cfg.ContentTimeout)
	defer cancel()
	err := chromedp.Run(ctx, chromedp.WaitReady(strings.Join(selectors, ", "), chromedp.ByQuery))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Debug("content wait failed", zap.Error(err))
	}
	return err == nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
