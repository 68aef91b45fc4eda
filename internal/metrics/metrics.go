// Package metrics exposes Prometheus collectors for the board watcher.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal                *prometheus.CounterVec
	cycleDurationSeconds       prometheus.Histogram
	cyclesSkippedTotal         prometheus.Counter
	itemsExtracted             prometheus.Gauge
	strategySelectedTotal      *prometheus.CounterVec
	alertsTotal                *prometheus.CounterVec
	seenIDs                    prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwatch_cycles_total",
				Help: "Total number of watch cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boardwatch_cycle_duration_seconds",
				Help:    "Histogram of watch cycle durations.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 180},
			},
		)

		cyclesSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "boardwatch_cycles_skipped_total",
				Help: "Total number of triggers skipped because a cycle was still running.",
			},
		)

		itemsExtracted = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "boardwatch_items_extracted",
				Help: "Number of items extracted by the most recent cycle.",
			},
		)

		strategySelectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwatch_strategy_selected_total",
				Help: "Total number of times each extraction strategy was accepted.",
			},
			[]string{"strategy"},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardwatch_alerts_total",
				Help: "Total number of alerts, labeled by delivery status.",
			},
			[]string{"status"},
		)

		seenIDs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "boardwatch_seen_ids",
				Help: "Number of canonical IDs in the seen set.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records a finished cycle.
func ObserveCycle(outcome string, duration time.Duration) {
	cyclesTotal.WithLabelValues(outcome).Inc()
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveSkippedCycle counts a trigger dropped by the busy guard.
func ObserveSkippedCycle() {
	cyclesSkippedTotal.Inc()
}

// ObserveExtraction records the accepted strategy and the item count.
func ObserveExtraction(strategy string, items int) {
	itemsExtracted.Set(float64(items))
	if strategy == "" {
		strategy = "none"
	}
	strategySelectedTotal.WithLabelValues(strategy).Inc()
}

// ObserveAlert counts an alert by delivery status ("sent", "failed", "dry_run").
func ObserveAlert(status string) {
	alertsTotal.WithLabelValues(status).Inc()
}

// SetSeenIDs reports the seen set size.
func SetSeenIDs(n int) {
	seenIDs.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
