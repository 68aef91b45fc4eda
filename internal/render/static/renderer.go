// Package static renders pages with a plain HTTP GET through colly. It
// cannot run scripts, so a challenge page is detected but never cleared.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/render"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Config controls the collector.
type Config struct {
	UserAgent       string
	AcceptLanguage  string
	Timeout         time.Duration
	ChallengeMarker string
	WaitSelectors   []string
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Renderer implements watch.Renderer with colly.
type Renderer struct {
	cfg    Config
	logger *zap.Logger
}

var _ watch.Renderer = (*Renderer)(nil)

// New builds a Renderer.
func New(cfg Config, logger *zap.Logger) *Renderer {
	if cfg.UserAgent == "" {
		cfg.UserAgent = render.DefaultUserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = render.DefaultAcceptLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = render.DefaultNavTimeout
	}
	if cfg.ChallengeMarker == "" {
		cfg.ChallengeMarker = render.DefaultChallenge
	}
	if len(cfg.WaitSelectors) == 0 {
		cfg.WaitSelectors = render.DefaultWaitSelectors()
	}
	if cfg.Transport == nil {
		cfg.Transport = newHTTPTransport()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{cfg: cfg, logger: logger}
}

// Close is a no-op; the collector holds no session.
func (r *Renderer) Close() error {
	return nil
}

type result struct {
	finalURL string
	status   int
	body     []byte
	err      error
}

// Render fetches rawURL once. Transport failures and non-2xx responses are
// navigation RenderErrors.
func (r *Renderer) Render(ctx context.Context, rawURL string, opts watch.RenderOptions) (watch.Document, error) {
	start := time.Now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}

	c := colly.NewCollector(
		colly.UserAgent(r.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(timeout)
	c.WithTransport(r.cfg.Transport)

	res := &result{}
	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept-Language", r.cfg.AcceptLanguage)
	})
	c.OnResponse(func(resp *colly.Response) {
		res.finalURL = resp.Request.URL.String()
		res.status = resp.StatusCode
		res.body = append([]byte(nil), resp.Body...)
	})
	c.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			res.status = resp.StatusCode
		}
		res.err = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()
	select {
	case <-ctx.Done():
		return watch.Document{}, &watch.RenderError{Kind: watch.RenderNavigation, URL: rawURL, Err: ctx.Err()}
	case err := <-done:
		if err == nil {
			err = res.err
		}
		if err != nil {
			if res.status != 0 {
				err = fmt.Errorf("status %d: %w", res.status, err)
			}
			return watch.Document{}, &watch.RenderError{Kind: watch.RenderNavigation, URL: rawURL, Err: err}
		}
	}

	selectors := opts.WaitSelectors
	if len(selectors) == 0 {
		selectors = r.cfg.WaitSelectors
	}
	challenged := bytes.Contains(res.body, []byte(r.cfg.ChallengeMarker))
	doc := watch.Document{
		RequestURL:       rawURL,
		FinalURL:         res.finalURL,
		StatusCode:       res.status,
		HTML:             res.body,
		Challenged:       challenged,
		ChallengeCleared: !challenged,
		ContentReady:     hasAny(res.body, selectors),
		Duration:         time.Since(start),
	}
	if challenged {
		r.logger.Warn("challenge page served to static renderer", zap.String("url", rawURL))
	}
	return doc, nil
}

func hasAny(body []byte, selectors []string) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(strings.Join(selectors, ", ")).Length() > 0
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
