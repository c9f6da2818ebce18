// Package gate decides whether a classification becomes a new node.
package gate

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
	"github.com/kailas-cloud/voxmap/internal/logger"
	"github.com/kailas-cloud/voxmap/internal/metrics"
)

// Verdict is the outcome of evaluating one classification.
type Verdict string

// Verdicts, in evaluation order.
const (
	VerdictLowConfidence Verdict = "low_confidence"
	VerdictFiller        Verdict = "filler"
	VerdictDuplicate     Verdict = "duplicate"
	VerdictAccept        Verdict = "accept"
)

// Decision is the gate result. ExistingNodeID is set for duplicates.
type Decision struct {
	Verdict        Verdict
	ExistingNodeID string
}

// LabelLookup finds the node that owns a normalized label in a map.
type LabelLookup interface {
	LookupLabel(ctx context.Context, mapID, label string) (string, bool, error)
}

// Gate filters and deduplicates classifications.
type Gate struct {
	labels        LabelLookup
	minConfidence float64
}

// New creates a gate. A non-positive minConfidence uses the pipeline default.
func New(labels LabelLookup, minConfidence float64) *Gate {
	if minConfidence <= 0 {
		minConfidence = domain.DefaultPipelineConfig().MinConfidence
	}
	return &Gate{labels: labels, minConfidence: minConfidence}
}

// Evaluate runs the cheap checks first: confidence, then filler, then the
// label lookup. A failed lookup accepts the classification; the graph
// mutator reserves the label atomically and rejects duplicates on its own.
func (g *Gate) Evaluate(ctx context.Context, mapID string, c domain.Classification) Decision {
	d := g.evaluate(ctx, mapID, c)
	metrics.GateDecisionsTotal.WithLabelValues(string(d.Verdict)).Inc()
	return d
}

func (g *Gate) evaluate(ctx context.Context, mapID string, c domain.Classification) Decision {
	if c.Confidence < g.minConfidence {
		return Decision{Verdict: VerdictLowConfidence}
	}
	if textnorm.IsFiller(c.Topic) {
		return Decision{Verdict: VerdictFiller}
	}

	owner, ok, err := g.labels.LookupLabel(ctx, mapID, c.Topic)
	if err != nil {
		logger.FromContext(ctx).Warn("Label lookup failed",
			logger.MapID(mapID),
			zap.String("topic", c.Topic),
			zap.Error(err),
		)
		return Decision{Verdict: VerdictAccept}
	}
	if ok {
		return Decision{Verdict: VerdictDuplicate, ExistingNodeID: owner}
	}
	return Decision{Verdict: VerdictAccept}
}
