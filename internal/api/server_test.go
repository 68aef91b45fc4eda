package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boardwatch/internal/watch"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewServer(Options{Renderer: &fakeRenderer{}}).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{})
	server.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_StatusReportsLastCycle(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{
		state: watch.StateIdle,
		report: watch.CycleReport{
			CycleID:   "cycle-1",
			StartedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			Duration:  1500 * time.Millisecond,
			Outcome:   watch.OutcomeEmpty,
			Error:     watch.ErrExtractionEmpty.Error(),
		},
		ok: true,
	}
	server := NewServer(Options{Status: status, Schedule: fakeSchedule{interval: 5 * time.Minute, skipped: 2}})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "idle", body.State)
	require.Equal(t, float64(300), body.IntervalSeconds)
	require.Equal(t, int64(2), body.SkippedCycles)
	require.NotNil(t, body.LastCycle)
	require.Equal(t, "cycle-1", body.LastCycle.CycleID)
	require.Equal(t, "empty", body.LastCycle.Outcome)
	require.Equal(t, int64(1500), body.LastCycle.DurationMs)
	require.Equal(t, watch.ErrExtractionEmpty.Error(), body.LastCycle.Error)
}

func TestServer_StatusBeforeFirstCycle(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{Status: &fakeStatus{state: watch.StateFetching}})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fetching")
	require.NotContains(t, rec.Body.String(), "last_cycle")
}

func TestServer_StatusWithoutScheduler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_FetchNotMountedWithoutSecret(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	server := NewServer(Options{Renderer: renderer})
	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{"url":"https://theqoo.net/bl"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, renderer.callCount())
}

func TestServer_FetchRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	server := NewServer(Options{Renderer: renderer, FetchSecret: "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{"url":"https://theqoo.net/bl"}`))
	req.Header.Set(fetchSecretHeader, "nope")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, renderer.callCount())
}

func TestServer_FetchPassesThrough(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{doc: watch.Document{
		HTML:     []byte("<html>board</html>"),
		FinalURL: "https://theqoo.net/bl?page=1",
	}}
	server := NewServer(Options{
		Renderer:      renderer,
		FetchSecret:   "s3cret",
		WaitSelectors: []string{"table.bd_lst"},
	})
	payload := `{"url":"https://theqoo.net/bl","wait":"td.title","timeoutMs":5000,"waitMs":250}`
	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(payload))
	req.Header.Set(fetchSecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body fetchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "<html>board</html>", body.HTML)
	require.Equal(t, "https://theqoo.net/bl?page=1", body.FinalURL)

	require.Equal(t, 1, renderer.callCount())
	require.Equal(t, "https://theqoo.net/bl", renderer.lastURL)
	require.Equal(t, 5*time.Second, renderer.lastOpts.Timeout)
	require.Equal(t, 250*time.Millisecond, renderer.lastOpts.ExtraWait)
	require.Equal(t, []string{"td.title"}, renderer.lastOpts.WaitSelectors)
}

func TestServer_FetchDefaultsAndClamps(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	server := NewServer(Options{Renderer: renderer, FetchSecret: "s", WaitSelectors: []string{"table.bd_lst"}})
	payload := `{"url":"https://theqoo.net/bl","waitMs":600000}`
	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(payload))
	req.Header.Set(fetchSecretHeader, "s")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, defaultFetchTimeout, renderer.lastOpts.Timeout)
	require.Equal(t, maxFetchWait, renderer.lastOpts.ExtraWait)
	require.Equal(t, []string{"table.bd_lst"}, renderer.lastOpts.WaitSelectors)
}

func TestServer_FetchValidation(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{Renderer: &fakeRenderer{}, FetchSecret: "s"})
	for _, payload := range []string{
		"{invalid",
		`{"url":"theqoo.net/bl"}`,
		`{"url":"https://theqoo.net/bl","timeoutMs":-1}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(payload))
		req.Header.Set(fetchSecretHeader, "s")
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func TestServer_FetchRenderError(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: &watch.RenderError{
		Kind: watch.RenderNavigation,
		URL:  "https://theqoo.net/bl",
		Err:  errors.New("net::ERR_NAME_NOT_RESOLVED"),
	}}
	server := NewServer(Options{Renderer: renderer, FetchSecret: "s"})
	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{"url":"https://theqoo.net/bl"}`))
	req.Header.Set(fetchSecretHeader, "s")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "ERR_NAME_NOT_RESOLVED")
}

func TestServer_RecoverMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(Options{Renderer: &fakeRenderer{panics: true}, FetchSecret: "s"})
	req := httptest.NewRequest(http.MethodPost, "/fetch", bytes.NewBufferString(`{"url":"https://theqoo.net/bl"}`))
	req.Header.Set(fetchSecretHeader, "s")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeRenderer struct {
	mu       sync.Mutex
	doc      watch.Document
	err      error
	panics   bool
	calls    int
	lastURL  string
	lastOpts watch.RenderOptions
}

func (f *fakeRenderer) Render(_ context.Context, url string, opts watch.RenderOptions) (watch.Document, error) {
	f.mu.Lock()
	f.calls++
	f.lastURL = url
	f.lastOpts = opts
	f.mu.Unlock()
	if f.panics {
		panic("renderer exploded")
	}
	if f.err != nil {
		return watch.Document{}, f.err
	}
	return f.doc, nil
}

func (f *fakeRenderer) Close() error { return nil }

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStatus struct {
	state  watch.CycleState
	report watch.CycleReport
	ok     bool
}

func (f *fakeStatus) State() watch.CycleState { return f.state }

func (f *fakeStatus) LastReport() (watch.CycleReport, bool) { return f.report, f.ok }

type fakeSchedule struct {
	interval time.Duration
	skipped  int64
}

func (f fakeSchedule) Interval() time.Duration { return f.interval }

func (f fakeSchedule) Skipped() int64 { return f.skipped }
