package session

import (
	"context"

	"github.com/kailas-cloud/voxmap/internal/domain"
	dombatch "github.com/kailas-cloud/voxmap/internal/domain/batch"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	"github.com/kailas-cloud/voxmap/internal/usecase/classify"
	"github.com/kailas-cloud/voxmap/internal/usecase/gate"
	"github.com/kailas-cloud/voxmap/internal/usecase/graph"
)

// Classifier turns a batch of phrases into index-aligned classifications.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request) []domain.Classification
}

// Gate filters classifications before they reach the graph.
type Gate interface {
	Evaluate(ctx context.Context, mapID string, c domain.Classification) gate.Decision
}

// Graph creates maps and applies accepted topics.
type Graph interface {
	CreateMap(ctx context.Context, mainTopic string) (mindmap.Map, mindmap.Node, error)
	AddNode(ctx context.Context, req graph.AddRequest) dombatch.Result
}

// Enricher requests research for a node that lacks an insight.
type Enricher interface {
	Enqueue(ctx context.Context, req insight.Request)
}
