package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"marginScope/internal/model"
)

func TestMetricsObserveEvaluation(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvaluation(model.Evaluation{
		Borrower: "0xabc",
		Solvency: model.Solvency{SolventAtLower: true, SolventAtUpper: false},
		Thresholds: model.LiquidationThresholds{
			Lower: decimal.RequireFromString("0.5"),
			Upper: decimal.RequireFromString("2.25"),
		},
	})

	if got := testutil.ToFloat64(m.lowerThreshold.WithLabelValues("0xabc")); got != 0.5 {
		t.Fatalf("lower threshold: got %v", got)
	}
	if got := testutil.ToFloat64(m.upperThreshold.WithLabelValues("0xabc")); got != 2.25 {
		t.Fatalf("upper threshold: got %v", got)
	}
	if got := testutil.ToFloat64(m.solvent.WithLabelValues("0xabc", "lower")); got != 1 {
		t.Fatalf("solvent lower: got %v", got)
	}
	if got := testutil.ToFloat64(m.solvent.WithLabelValues("0xabc", "upper")); got != 0 {
		t.Fatalf("solvent upper: got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("insolvent")); got != 1 {
		t.Fatalf("insolvent count: got %v", got)
	}

	m.ObserveFailure()
	m.ObserveStale(3)
	m.ObserveStale(0)
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("error")); got != 1 {
		t.Fatalf("error count: got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("stale")); got != 3 {
		t.Fatalf("stale count: got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveDuration(250 * time.Millisecond)
	m.ObserveFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"marginscope_evaluation_seconds_count 1",
		`marginscope_evaluations_total{result="error"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.ObserveEvaluation(model.Evaluation{Borrower: "0xabc"})
	m.ObserveFailure()
	m.ObserveStale(2)
	m.ObserveDuration(time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}
