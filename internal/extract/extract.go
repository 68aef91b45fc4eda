package extract

import (
	"bytes"
	"net/url"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

// Defaults applied when Config leaves a knob unset.
const (
	DefaultMinCandidates = 5
	DefaultMaxItems      = 30
)

// Config controls the extraction engine.
type Config struct {
	// MinCandidates is the count a strategy must exceed to be accepted.
	MinCandidates int
	// MaxItems bounds the head of the list that is returned.
	MaxItems   int
	Strategies []Strategy
}

// Result is the outcome of one extraction.
type Result struct {
	Items      []watch.Item
	Strategy   string
	Candidates int
}

// Engine runs the strategy chain.
type Engine struct {
	minCandidates int
	maxItems      int
	strategies    []Strategy
}

// New builds an Engine, filling defaults.
func New(cfg Config) *Engine {
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = DefaultMinCandidates
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	return &Engine{
		minCandidates: cfg.MinCandidates,
		maxItems:      cfg.MaxItems,
		strategies:    cfg.Strategies,
	}
}

// Extract returns the items of the first strategy that yields more than the
// minimum number of candidates. An empty Result.Strategy means none did.
func (e *Engine) Extract(doc watch.Document) Result {
	if len(doc.HTML) == 0 {
		return Result{}
	}
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.HTML))
	if err != nil {
		return Result{}
	}
	base, err := url.Parse(doc.BaseURL())
	if err != nil {
		base = nil
	}
	for _, s := range e.strategies {
		candidates := s.Candidates(parsed)
		if len(candidates) <= e.minCandidates {
			continue
		}
		return Result{
			Items:      e.build(base, candidates),
			Strategy:   s.Name,
			Candidates: len(candidates),
		}
	}
	return Result{}
}

func (e *Engine) build(base *url.URL, candidates []Candidate) []watch.Item {
	items := make([]watch.Item, 0, min(len(candidates), e.maxItems))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		item, ok := buildItem(base, c)
		if !ok {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
		if len(items) == e.maxItems {
			break
		}
	}
	return items
}

func buildItem(base *url.URL, c Candidate) (watch.Item, bool) {
	id, link, ok := Canonicalize(base, c.Href)
	if !ok {
		return watch.Item{}, false
	}
	title := CleanTitle(c.TitleHTML)
	if utf8.RuneCountInString(title) <= 1 {
		return watch.Item{}, false
	}
	item := watch.Item{ID: id, Title: title, URL: link}
	if prefix := CleanTitle(c.PrefixHTML); prefix != "" {
		item.Prefix = prefix
		item.Title = "[" + prefix + "] " + title
	}
	return item, true
}
