package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/boardwatch/internal/metrics"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

const (
	fetchSecretHeader   = "X-Fetch-Secret"
	defaultFetchTimeout = 45 * time.Second
	maxFetchTimeout     = 2 * time.Minute
	maxFetchWait        = 30 * time.Second
	maxFetchBody        = 64 << 10
	requestTimeout      = maxFetchTimeout + maxFetchWait + 10*time.Second
)

// StatusSource reports the pipeline state.
type StatusSource interface {
	State() watch.CycleState
	LastReport() (watch.CycleReport, bool)
}

// ScheduleSource reports scheduler cadence and skipped triggers.
type ScheduleSource interface {
	Interval() time.Duration
	Skipped() int64
}

// Options configures a Server. Every collaborator is optional; the routes
// that need a missing one answer 503.
type Options struct {
	Renderer      watch.Renderer
	Status        StatusSource
	Schedule      ScheduleSource
	FetchSecret   string
	WaitSelectors []string
	Logger        *zap.Logger
}

// Server wires HTTP handlers to the watcher components.
type Server struct {
	router chi.Router
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	s := &Server{opts: opts, logger: logger}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/status", s.status)

	if opts.FetchSecret != "" {
		r.With(secretMiddleware(opts.FetchSecret)).Post("/fetch", s.fetch)
	} else {
		logger.Info("fetch route disabled, no secret configured")
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "renderer unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	State           string        `json:"state"`
	IntervalSeconds float64       `json:"interval_seconds,omitempty"`
	SkippedCycles   int64         `json:"skipped_cycles"`
	LastCycle       *cycleSummary `json:"last_cycle,omitempty"`
}

type cycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
	Strategy   string    `json:"strategy,omitempty"`
	Extracted  int       `json:"extracted"`
	Matched    int       `json:"matched"`
	New        int       `json:"new"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	resp := statusResponse{State: string(s.opts.Status.State())}
	if s.opts.Schedule != nil {
		resp.IntervalSeconds = s.opts.Schedule.Interval().Seconds()
		resp.SkippedCycles = s.opts.Schedule.Skipped()
	}
	if report, ok := s.opts.Status.LastReport(); ok {
		resp.LastCycle = toCycleSummary(report)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toCycleSummary(r watch.CycleReport) *cycleSummary {
	return &cycleSummary{
		CycleID:    r.CycleID,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Outcome:    string(r.Outcome),
		Strategy:   r.Strategy,
		Extracted:  r.Extracted,
		Matched:    r.Matched,
		New:        r.New,
		Sent:       r.Sent,
		Failed:     r.Failed,
		Error:      r.Error,
	}
}

type fetchRequest struct {
	URL       string `json:"url"`
	Wait      string `json:"wait"`
	TimeoutMs int    `json:"timeoutMs"`
	WaitMs    int    `json:"waitMs"`
}

type fetchResponse struct {
	HTML     string `json:"html"`
	FinalURL string `json:"finalUrl"`
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "renderer unavailable")
		return
	}
	var req fetchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFetchBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts, err := s.toRenderOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.opts.Renderer.Render(r.Context(), req.URL, opts)
	if err != nil {
		s.logger.Warn("fetch render failed", zap.String("url", req.URL), zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{HTML: string(doc.HTML), FinalURL: doc.FinalURL})
}

func (s *Server) toRenderOptions(req fetchRequest) (watch.RenderOptions, error) {
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return watch.RenderOptions{}, errors.New("url must be an absolute http(s) URL")
	}
	if req.TimeoutMs < 0 || req.WaitMs < 0 {
		return watch.RenderOptions{}, errors.New("timeoutMs and waitMs must be >= 0")
	}
	opts := watch.RenderOptions{
		Timeout:       defaultFetchTimeout,
		WaitSelectors: s.opts.WaitSelectors,
		ExtraWait:     min(time.Duration(req.WaitMs)*time.Millisecond, maxFetchWait),
	}
	if req.TimeoutMs > 0 {
		opts.Timeout = min(time.Duration(req.TimeoutMs)*time.Millisecond, maxFetchTimeout)
	}
	if wait := strings.TrimSpace(req.Wait); wait != "" {
		opts.WaitSelectors = []string{wait}
	}
	return opts, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func secretMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(fetchSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
