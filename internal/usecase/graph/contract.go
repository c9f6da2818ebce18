package graph

import (
	"context"

	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	repograph "github.com/kailas-cloud/voxmap/internal/repository/graph"
)

// Repository is the graph storage the mutator writes to.
//
//nolint:interfacebloat // one repository backs maps, nodes, edges and labels
type Repository interface {
	CreateMap(ctx context.Context, m mindmap.Map) error
	GetMap(ctx context.Context, mapID string) (mindmap.Map, error)
	PatchMap(ctx context.Context, mapID string, patch repograph.MapPatch) error
	CreateNode(ctx context.Context, n *mindmap.Node) error
	GetNode(ctx context.Context, nodeID string) (mindmap.Node, error)
	ListNodesByMap(ctx context.Context, mapID string) ([]mindmap.Node, error)
	ListChildren(ctx context.Context, parentID string) ([]mindmap.Node, error)
	CreateEdge(ctx context.Context, e mindmap.Edge) error
	ListEdgesByMap(ctx context.Context, mapID string) ([]mindmap.Edge, error)
	ReserveLabel(ctx context.Context, mapID, label, nodeID string) (string, bool, error)
	ReleaseLabel(ctx context.Context, mapID, label string) error
	NextSiblingIndex(ctx context.Context, parentID string) (int, error)
}

// Enricher schedules research for a new node without blocking the caller.
type Enricher interface {
	Enqueue(ctx context.Context, req insight.Request)
}
