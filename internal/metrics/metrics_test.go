package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if cyclesTotal == nil || cyclesSkippedTotal == nil || alertsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveCycleAndAlerts(t *testing.T) {
	Init()

	before := testutil.ToFloat64(cyclesTotal.WithLabelValues("ok"))
	ObserveCycle("ok", 2*time.Second)
	if got := testutil.ToFloat64(cyclesTotal.WithLabelValues("ok")); got != before+1 {
		t.Errorf("expected ok cycles to be %f, got %f", before+1, got)
	}

	skipped := testutil.ToFloat64(cyclesSkippedTotal)
	ObserveSkippedCycle()
	if got := testutil.ToFloat64(cyclesSkippedTotal); got != skipped+1 {
		t.Errorf("expected skipped cycles to be %f, got %f", skipped+1, got)
	}

	sent := testutil.ToFloat64(alertsTotal.WithLabelValues("sent"))
	ObserveAlert("sent")
	if got := testutil.ToFloat64(alertsTotal.WithLabelValues("sent")); got != sent+1 {
		t.Errorf("expected sent alerts to be %f, got %f", sent+1, got)
	}
}

func TestObserveExtraction(t *testing.T) {
	Init()

	none := testutil.ToFloat64(strategySelectedTotal.WithLabelValues("none"))
	ObserveExtraction("", 0)
	if got := testutil.ToFloat64(strategySelectedTotal.WithLabelValues("none")); got != none+1 {
		t.Errorf("expected empty strategy to count as none, got %f", got)
	}

	ObserveExtraction("board-table", 30)
	if got := testutil.ToFloat64(itemsExtracted); got != 30 {
		t.Errorf("expected items gauge to be 30, got %f", got)
	}

	SetSeenIDs(12)
	if got := testutil.ToFloat64(seenIDs); got != 12 {
		t.Errorf("expected seen gauge to be 12, got %f", got)
	}
}
