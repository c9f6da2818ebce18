package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion pipeline Prometheus metrics.
var (
	PhrasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "phrases_total",
			Help:      "Phrases emitted by the segmentation buffer, by trigger",
		},
		[]string{"trigger"}, // "hard_cap" / "punctuation" / "interim" / "drain"
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voxmap",
			Name:      "batch_size",
			Help:      "Phrases per flushed batch",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
		},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voxmap",
			Name:      "batch_duration_seconds",
			Help:      "End-to-end processing time of one batch",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "gate_decisions_total",
			Help:      "Gate verdicts for classified phrases",
		},
		[]string{"verdict"}, // "accept" / "low_confidence" / "filler" / "duplicate"
	)

	NodesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "nodes_created_total",
			Help:      "Mind map nodes created",
		},
	)

	EnrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "enrichments_total",
			Help:      "Insight enrichment tasks by outcome",
		},
		[]string{"status"}, // "success" / "error" / "skipped"
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxmap",
			Name:      "events_published_total",
			Help:      "Graph events published, by sink and outcome",
		},
		[]string{"sink", "type", "status"}, // sink "hub" / "kafka"; status "ok" / "error" / "dropped"
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "voxmap",
			Name:      "active_sessions",
			Help:      "Capture sessions currently active",
		},
	)
)

var pipelineOnce sync.Once

// RegisterPipelineMetrics registers ingestion pipeline metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(PhrasesTotal)
		prometheus.MustRegister(BatchSize)
		prometheus.MustRegister(BatchDuration)
		prometheus.MustRegister(GateDecisionsTotal)
		prometheus.MustRegister(NodesCreatedTotal)
		prometheus.MustRegister(EnrichmentsTotal)
		prometheus.MustRegister(EventsPublishedTotal)
		prometheus.MustRegister(ActiveSessions)
	})
}
