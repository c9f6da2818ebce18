package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Classification Prometheus metrics.
var (
	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "classifier_requests_total",
			Help:      "Total number of remote classification requests",
		},
		[]string{"provider", "model", "status"},
	)

	ClassifierRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voxmap",
			Name:      "classifier_request_duration_seconds",
			Help:      "Remote classification request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	ClassifierTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "classifier_tokens_total",
			Help:      "Total classification tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	ClassifierErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "classifier_errors_total",
			Help:      "Total remote classification errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	ClassifierBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "voxmap",
			Name:      "classifier_budget_tokens_remaining",
			Help:      "Remaining classification token budget",
		},
		[]string{"provider", "period"},
	)

	// ClassificationsTotal counts per-phrase outcomes by source.
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "classifications_total",
			Help:      "Phrases classified, by source",
		},
		[]string{"source"}, // "remote" / "cache" / "fallback"
	)

	ClassificationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "classification_cache_total",
			Help:      "Classification cache lookups by match type",
		},
		[]string{"result"}, // "exact" / "similar" / "miss"
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "voxmap",
			Name:      "classifier_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

var classOnce sync.Once

// RegisterClassificationMetrics registers classification metrics. Safe to call more than once.
func RegisterClassificationMetrics() {
	classOnce.Do(func() {
		prometheus.MustRegister(ClassifierRequestsTotal)
		prometheus.MustRegister(ClassifierRequestDuration)
		prometheus.MustRegister(ClassifierTokensTotal)
		prometheus.MustRegister(ClassifierErrorsTotal)
		prometheus.MustRegister(ClassifierBudgetTokensRemaining)
		prometheus.MustRegister(ClassificationsTotal)
		prometheus.MustRegister(ClassificationCacheTotal)
		prometheus.MustRegister(BreakerState)
	})
}
