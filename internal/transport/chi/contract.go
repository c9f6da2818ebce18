package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/voxmap/internal/domain/batch"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	domsession "github.com/kailas-cloud/voxmap/internal/domain/session"
	"github.com/kailas-cloud/voxmap/internal/events"
	healthuc "github.com/kailas-cloud/voxmap/internal/usecase/health"
	graphuc "github.com/kailas-cloud/voxmap/internal/usecase/graph"
)

// SessionController drives the live capture session.
type SessionController interface {
	PromptForTopic(ctx context.Context, aiEnabled bool) (domsession.Snapshot, error)
	Start(ctx context.Context, mainTopic string, aiEnabled bool) (domsession.Snapshot, error)
	OnFinalFragment(ctx context.Context, text string) error
	OnInterimFragment(ctx context.Context, text string) error
	Stop(ctx context.Context) (domsession.Snapshot, error)
	Current() domsession.Snapshot
}

// GraphService reads maps and expands nodes.
type GraphService interface {
	GetMap(ctx context.Context, mapID string) (mindmap.Map, error)
	GetNode(ctx context.Context, nodeID string) (mindmap.Node, error)
	ListNodes(ctx context.Context, mapID string) ([]mindmap.Node, error)
	ListChildren(ctx context.Context, nodeID string) ([]mindmap.Node, error)
	ListEdges(ctx context.Context, mapID string) ([]mindmap.Edge, error)
	AddChildren(ctx context.Context, parentID string, children []graphuc.Child, mainTopic, sessionID string) []dombatch.Result
}

// InsightReader returns stored node insights.
type InsightReader interface {
	Get(ctx context.Context, nodeID string) (insight.Insight, bool, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Subscriber streams graph events of one map, or of every map for "".
type Subscriber interface {
	Subscribe(mapID string) (<-chan events.Event, func())
}
