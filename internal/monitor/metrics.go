package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marginScope/internal/model"
)

// Metrics exports the latest evaluation of every watched borrower. All methods accept a nil receiver.
type Metrics struct {
	registry       *prometheus.Registry
	lowerThreshold *prometheus.GaugeVec
	upperThreshold *prometheus.GaugeVec
	solvent        *prometheus.GaugeVec
	evaluations    *prometheus.CounterVec
	duration       prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lowerThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marginscope_threshold_lower_price",
			Help: "Price below which the account becomes liquidatable.",
		}, []string{"borrower"}),
		upperThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marginscope_threshold_upper_price",
			Help: "Price above which the account becomes liquidatable.",
		}, []string{"borrower"}),
		solvent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marginscope_solvent",
			Help: "1 if the account is solvent at the probe price, 0 otherwise.",
		}, []string{"borrower", "probe"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marginscope_evaluations_total",
			Help: "Evaluations by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marginscope_evaluation_seconds",
			Help:    "Time to read and evaluate one account.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.lowerThreshold, m.upperThreshold, m.solvent, m.evaluations, m.duration)
	return m
}

// ObserveEvaluation publishes one account's thresholds and verdicts.
func (m *Metrics) ObserveEvaluation(e model.Evaluation) {
	if m == nil {
		return
	}
	lower, _ := e.Thresholds.Lower.Float64()
	upper, _ := e.Thresholds.Upper.Float64()
	m.lowerThreshold.WithLabelValues(e.Borrower).Set(lower)
	m.upperThreshold.WithLabelValues(e.Borrower).Set(upper)
	m.solvent.WithLabelValues(e.Borrower, "lower").Set(boolGauge(e.Solvency.SolventAtLower))
	m.solvent.WithLabelValues(e.Borrower, "upper").Set(boolGauge(e.Solvency.SolventAtUpper))

	result := "insolvent"
	if e.Solvency.Solvent() {
		result = "solvent"
	}
	m.evaluations.WithLabelValues(result).Inc()
}

// ObserveFailure counts an account that could not be read or evaluated.
func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues("error").Inc()
}

// ObserveStale counts evaluations dropped because a newer cycle superseded them.
func (m *Metrics) ObserveStale(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evaluations.WithLabelValues("stale").Add(float64(n))
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
