package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	events      *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastScore   *prometheus.GaugeVec
	gauges      *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_events_total",
				Help: "Pipeline events by stage and outcome (processed, triggered, filtered, duplicate, locked)",
			},
			[]string{"stage", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigfuse_last_score",
				Help: "Last computed total score for a symbol",
			},
			[]string{"symbol"},
		),
		gauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigfuse_state",
				Help: "Point-in-time pipeline state (pending windows, open positions, drawdown pct)",
			},
			[]string{"name"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEvent counts one event passing a stage with an outcome.
func (r *Recorder) RecordEvent(stage, outcome string) {
	r.events.WithLabelValues(stage, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordScore records the last total score for a symbol.
func (r *Recorder) RecordScore(symbol string, score float64) {
	r.lastScore.WithLabelValues(symbol).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordGauge sets a named state gauge.
func (r *Recorder) RecordGauge(name string, value float64) {
	r.gauges.WithLabelValues(name).Set(value)
}
