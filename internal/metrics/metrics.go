package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcome labels for the analyses_total counter.
const (
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
	StatusRejected  = "rejected"
)

// Metrics records analysis throughput and per-step behavior. A nil *Metrics
// is a valid no-op recorder so tests can skip registration entirely.
type Metrics struct {
	analysesTotal    *prometheus.CounterVec
	stepFailures     *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	analysisDuration prometheus.Histogram
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supplyflow_analyses_total",
			Help: "Total analyses by outcome.",
		}, []string{"status"}),
		stepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supplyflow_analysis_step_failures_total",
			Help: "Analysis step failures by step name.",
		}, []string{"step"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "supplyflow_analysis_step_duration_seconds",
			Help:    "Per-step analysis duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supplyflow_analysis_duration_seconds",
			Help:    "End-to-end analysis duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordAnalysis(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(status).Inc()
	if status != StatusRejected {
		m.analysisDuration.Observe(durationSeconds)
	}
}

func (m *Metrics) RecordStep(step string, durationSeconds float64, success bool) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(durationSeconds)
	if !success {
		m.stepFailures.WithLabelValues(step).Inc()
	}
}
