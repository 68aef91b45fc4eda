package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/extract"
	"github.com/JakeFAU/boardwatch/internal/metrics"
	"github.com/JakeFAU/boardwatch/internal/seen"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Extractor turns a document into items.
type Extractor interface {
	Extract(doc watch.Document) extract.Result
}

// Matcher selects the keyword an item title matches.
type Matcher interface {
	Match(title string) (string, bool)
}

// Formatter renders an alert.
type Formatter interface {
	Format(item watch.Item, keyword string) watch.Message
}

// SeenStore loads and persists the seen set.
type SeenStore interface {
	Load(ctx context.Context) *seen.Set
	Persist(ctx context.Context, set *seen.Set) error
}

// Config holds the per-cycle knobs.
type Config struct {
	TargetURL string
	Render    watch.RenderOptions
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Renderer  watch.Renderer
	Extractor Extractor
	Matcher   Matcher
	Formatter Formatter
	Notifier  watch.Notifier
	Store     SeenStore
	Clock     watch.Clock
	IDs       watch.IDGenerator
}

// Pipeline executes cycles. Cycles must not overlap; the Scheduler guarantees
// that, and RunCycle callers outside it must do the same.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	set   *seen.Set
	state atomic.Value

	mu      sync.RWMutex
	last    watch.CycleReport
	hasLast bool
}

// New validates deps and builds a Pipeline.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if cfg.TargetURL == "" {
		return nil, fmt.Errorf("target url is required")
	}
	switch {
	case deps.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Matcher == nil:
		return nil, fmt.Errorf("matcher is required")
	case deps.Formatter == nil:
		return nil, fmt.Errorf("formatter is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("seen store is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	p := &Pipeline{cfg: cfg, deps: deps, logger: logger}
	p.state.Store(watch.StateIdle)
	return p, nil
}

// Prime loads the seen set. RunCycle calls it on first use.
func (p *Pipeline) Prime(ctx context.Context) {
	if p.set != nil {
		return
	}
	p.set = p.deps.Store.Load(ctx)
	metrics.SetSeenIDs(p.set.Len())
}

// State returns the current lifecycle position.
func (p *Pipeline) State() watch.CycleState {
	s, _ := p.state.Load().(watch.CycleState)
	return s
}

// LastReport returns the most recent finished cycle.
func (p *Pipeline) LastReport() (watch.CycleReport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.hasLast
}

// Renderer exposes the renderer for on-demand fetches.
func (p *Pipeline) Renderer() watch.Renderer {
	return p.deps.Renderer
}

// Close releases the renderer.
func (p *Pipeline) Close() error {
	if err := p.deps.Renderer.Close(); err != nil {
		return fmt.Errorf("close renderer: %w", err)
	}
	return nil
}

// RunCycle executes one pass. The returned error is the RenderError or
// ErrExtractionEmpty that aborted the cycle; transport and storage failures
// are logged and counted in the report but do not fail the cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (report watch.CycleReport, err error) {
	report.StartedAt = p.deps.Clock.Now()
	report.CycleID = p.cycleID(report.StartedAt)
	logger := p.logger.With(zap.String("cycle_id", report.CycleID))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
			report.Outcome = watch.OutcomeFailed
			report.Error = err.Error()
			logger.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		report.Duration = time.Since(start)
		p.finish(report, logger)
	}()

	p.Prime(ctx)
	p.state.Store(watch.StateFetching)

	doc, err := p.deps.Renderer.Render(ctx, p.cfg.TargetURL, p.cfg.Render)
	if err != nil {
		report.Outcome = watch.OutcomeRenderError
		report.Error = err.Error()
		logger.Error("render failed", zap.String("url", p.cfg.TargetURL), zap.Error(err))
		return report, err
	}

	p.state.Store(watch.StateProcessing)
	res := p.deps.Extractor.Extract(doc)
	report.Strategy = res.Strategy
	report.Extracted = len(res.Items)
	metrics.ObserveExtraction(res.Strategy, len(res.Items))
	if len(res.Items) == 0 {
		report.Outcome = watch.OutcomeEmpty
		report.Error = watch.ErrExtractionEmpty.Error()
		logger.Warn("no items extracted; board empty or markup changed",
			zap.String("final_url", doc.FinalURL),
			zap.Int("status", doc.StatusCode),
			zap.Bool("challenged", doc.Challenged),
			zap.Bool("challenge_cleared", doc.ChallengeCleared),
			zap.Bool("content_ready", doc.ContentReady),
			zap.Int("candidates", res.Candidates))
		return report, watch.ErrExtractionEmpty
	}
	logger.Info("items extracted",
		zap.String("strategy", res.Strategy),
		zap.Int("candidates", res.Candidates),
		zap.Int("items", len(res.Items)))

	p.dispatch(ctx, res.Items, &report, logger)

	if report.New > 0 {
		if perr := p.deps.Store.Persist(ctx, p.set); perr != nil {
			logger.Error("persist seen state failed; in-memory set stays authoritative", zap.Error(perr))
		}
	}
	metrics.SetSeenIDs(p.set.Len())
	report.Outcome = watch.OutcomeOK
	return report, nil
}

func (p *Pipeline) dispatch(ctx context.Context, items []watch.Item, report *watch.CycleReport, logger *zap.Logger) {
	for _, item := range items {
		keyword, ok := p.deps.Matcher.Match(item.Title)
		if !ok {
			continue
		}
		report.Matched++
		if p.set.Contains(item.ID) {
			continue
		}
		report.New++
		report.Hits = append(report.Hits, item)

		msg := p.deps.Formatter.Format(item, keyword)
		itemLogger := logger.With(zap.String("item_id", item.ID), zap.String("keyword", keyword))
		if err := p.deps.Notifier.Send(ctx, msg); err != nil {
			report.Failed++
			metrics.ObserveAlert("failed")
			var transportErr *watch.TransportError
			if errors.As(err, &transportErr) {
				itemLogger.Warn("alert not delivered", zap.String("transport", transportErr.Transport), zap.Error(err))
			} else {
				itemLogger.Warn("alert not delivered", zap.Error(err))
			}
		} else {
			report.Sent++
			metrics.ObserveAlert("sent")
			itemLogger.Info("alert sent", zap.String("title", item.Title))
		}
		// recorded even when delivery failed; there is no retry
		p.set.Record(item.ID)
	}
}

func (p *Pipeline) finish(report watch.CycleReport, logger *zap.Logger) {
	p.state.Store(watch.StateIdle)
	metrics.ObserveCycle(string(report.Outcome), report.Duration)

	p.mu.Lock()
	p.last = report
	p.hasLast = true
	p.mu.Unlock()

	logger.Info("cycle finished",
		zap.String("outcome", string(report.Outcome)),
		zap.Duration("duration", report.Duration),
		zap.Int("extracted", report.Extracted),
		zap.Int("matched", report.Matched),
		zap.Int("new", report.New),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
}

func (p *Pipeline) cycleID(startedAt time.Time) string {
	id, err := p.deps.IDs.NewID()
	if err != nil {
		p.logger.Warn("cycle id generation failed", zap.Error(err))
		return startedAt.UTC().Format("20060102T150405.000000000")
	}
	return id
}
