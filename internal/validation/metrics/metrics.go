package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document validation.
type Metrics struct {
	Score    *prometheus.HistogramVec
	Outcomes *prometheus.CounterVec
	Duration prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		Score: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_validation_score",
			Help:    "Distribution of document validation scores by step",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"step"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_validation_outcomes_total",
			Help: "Document validation outcomes by step and result",
		}, []string{"step", "result"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_validation_duration_seconds",
			Help:    "Duration of a document validation including provider analysis",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
	}
}

// ObserveOutcome records the score and result of one validation. result is
// "passed", "failed", or the reason a score was forced to zero.
func (m *Metrics) ObserveOutcome(step string, score float64, result string) {
	m.Score.WithLabelValues(step).Observe(score)
	m.Outcomes.WithLabelValues(step, result).Inc()
}

// ObserveDuration records the duration of a validation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveDuration(start time.Time) {
	m.Duration.Observe(time.Since(start).Seconds())
}
