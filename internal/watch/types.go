package watch

import (
	"time"
)

// Item is a single post discovered on the monitored board.
type Item struct {
	// ID is the canonical URL (absolute, no query or fragment). It is the
	// only identity key; title drift never creates a new item.
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Prefix string `json:"prefix,omitempty"`
}

// RenderOptions tunes a single render call.
type RenderOptions struct {
	// WaitSelectors are list-container markers; the renderer waits until any
	// of them exists, bounded by the content timeout.
	WaitSelectors []string
	// Timeout bounds navigation. Zero uses the renderer default.
	Timeout time.Duration
	// ExtraWait is a fixed delay applied before the snapshot is taken.
	ExtraWait time.Duration
}

// Document is the rendered markup of one page. It is a value snapshot; the
// browsing session that produced it is already released.
type Document struct {
	RequestURL       string
	FinalURL         string
	StatusCode       int
	HTML             []byte
	Challenged       bool
	ChallengeCleared bool
	ContentReady     bool
	Duration         time.Duration
}

// BaseURL returns the URL relative links should be resolved against.
func (d Document) BaseURL() string {
	if d.FinalURL != "" {
		return d.FinalURL
	}
	return d.RequestURL
}

// Message is a formatted alert ready for a transport.
type Message struct {
	Text               string
	DisableLinkPreview bool
	Item               Item
	Keyword            string
}

// CycleState is the scheduler's lifecycle position.
type CycleState string

// Cycle states; a cycle moves idle -> fetching -> processing -> idle.
const (
	StateIdle       CycleState = "idle"
	StateFetching   CycleState = "fetching"
	StateProcessing CycleState = "processing"
)

// CycleOutcome classifies a finished cycle for logs and metrics.
type CycleOutcome string

// Cycle outcomes.
const (
	OutcomeOK          CycleOutcome = "ok"
	OutcomeEmpty       CycleOutcome = "empty"
	OutcomeRenderError CycleOutcome = "render_error"
	OutcomeFailed      CycleOutcome = "failed"
)

// CycleReport summarizes one pass of the pipeline.
type CycleReport struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Outcome   CycleOutcome  `json:"outcome"`
	Strategy  string        `json:"strategy,omitempty"`
	Extracted int           `json:"extracted"`
	Matched   int           `json:"matched"`
	New       int           `json:"new"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Hits      []Item        `json:"hits,omitempty"`
	Error     string        `json:"error,omitempty"`
}
