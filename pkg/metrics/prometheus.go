package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder implements domain.repository.Metrics using Prometheus. Each
// recorder owns its registry; a run is short lived, so the registry is
// pushed to a Pushgateway at the end instead of being scraped.
type Recorder struct {
	registry      *prometheus.Registry
	pushURL       string
	job           string
	fetchAttempts *prometheus.CounterVec
	symbols       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
}

// New creates a new Prometheus metrics recorder. An empty pushURL disables Push.
func New(pushURL, job string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		pushURL:  pushURL,
		job:      job,
		fetchAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepull_fetch_attempts_total",
				Help: "Provider requests by classified outcome",
			},
			[]string{"outcome"},
		),
		symbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepull_symbols_total",
				Help: "Symbols processed by result",
			},
			[]string{"symbol", "result"},
		),
		rows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepull_rows_total",
				Help: "Rows by pipeline stage",
			},
			[]string{"stage"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotepull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotepull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"operation"},
		),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "quotepull_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// RecordFetchAttempt counts one provider request.
func (r *Recorder) RecordFetchAttempt(outcome string) {
	r.fetchAttempts.WithLabelValues(outcome).Inc()
}

// RecordSymbol counts a symbol's final result.
func (r *Recorder) RecordSymbol(symbol, result string) {
	r.symbols.WithLabelValues(symbol, result).Inc()
}

// RecordRows adds n rows at a stage (normalized, skipped, written, ...).
func (r *Recorder) RecordRows(stage string, n int) {
	r.rows.WithLabelValues(stage).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Push sends every collected metric to the Pushgateway.
func (r *Recorder) Push(ctx context.Context) error {
	if r.pushURL == "" {
		return nil
	}
	r.lastSuccess.SetToCurrentTime()
	return push.New(r.pushURL, r.job).Gatherer(r.registry).PushContext(ctx)
}
