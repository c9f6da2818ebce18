// Package graph applies accepted topics to the mind map.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	dombatch "github.com/kailas-cloud/voxmap/internal/domain/batch"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
	"github.com/kailas-cloud/voxmap/internal/events"
	"github.com/kailas-cloud/voxmap/internal/logger"
	"github.com/kailas-cloud/voxmap/internal/metrics"
	repograph "github.com/kailas-cloud/voxmap/internal/repository/graph"
)

// MaxChildren caps one multi-child request.
const MaxChildren = 32

var tracer = otel.Tracer("github.com/kailas-cloud/voxmap/internal/usecase/graph")

// AddRequest describes one node to add under Parent.
type AddRequest struct {
	ParentID  string
	Label     string
	Content   string
	MainTopic string // enrichment context
	SessionID string // event attribution, optional
}

// Child is one entry of a multi-child request.
type Child struct {
	Label   string
	Content string
}

// Service is the graph mutator.
type Service struct {
	repo     Repository
	enricher Enricher
	events   events.Publisher
	newID    func() string
	now      func() int64
}

// New creates a graph service. enricher and pub may be nil.
func New(repo Repository, enricher Enricher, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:     repo,
		enricher: enricher,
		events:   pub,
		newID:    uuid.NewString,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// CreateMap creates a map and its root node labelled with the main topic.
func (s *Service) CreateMap(ctx context.Context, mainTopic string) (mindmap.Map, mindmap.Node, error) {
	now := s.now()
	m, err := mindmap.NewMap(s.newID(), mainTopic, now)
	if err != nil {
		return mindmap.Map{}, mindmap.Node{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	root, err := mindmap.NewRoot(s.newID(), m.ID, m.Title, now)
	if err != nil {
		return mindmap.Map{}, mindmap.Node{}, err
	}

	if err := s.repo.CreateMap(ctx, m); err != nil {
		return mindmap.Map{}, mindmap.Node{}, fmt.Errorf("create map: %w", err)
	}
	if err := s.repo.CreateNode(ctx, &root); err != nil {
		return mindmap.Map{}, mindmap.Node{}, fmt.Errorf("create root: %w", err)
	}
	// The root owns its label so a restated main topic is a duplicate.
	if _, _, err := s.repo.ReserveLabel(ctx, m.ID, root.Label(), root.ID()); err != nil {
		logger.FromContext(ctx).Warn("Failed to reserve root label", logger.MapID(m.ID), zap.Error(err))
	}
	if err := s.repo.PatchMap(ctx, m.ID, repograph.MapPatch{RootID: root.ID()}); err != nil {
		return mindmap.Map{}, mindmap.Node{}, fmt.Errorf("set root: %w", err)
	}
	m.RootID = root.ID()
	return m, root, nil
}

// AddNode creates one child under req.ParentID.
//
// The normalized label is reserved with a conditional insert before anything
// is written, so concurrent batches racing on the same topic create exactly
// one node; the losers get a duplicate result carrying the owner's ID.
// Filler labels are filtered. Storage failures come back as error results.
func (s *Service) AddNode(ctx context.Context, req AddRequest) dombatch.Result {
	parent, err := s.repo.GetNode(ctx, req.ParentID)
	if err != nil {
		return dombatch.NewError(req.Label, fmt.Errorf("get parent: %w", err))
	}
	return s.addChild(ctx, &parent, req)
}

// AddChildren creates several children under one parent in order. Each child
// takes the next sibling slot, so children created together fan out relative
// to each other and to existing siblings.
func (s *Service) AddChildren(ctx context.Context, parentID string, children []Child, mainTopic, sessionID string) []dombatch.Result {
	results := make([]dombatch.Result, len(children))

	if len(children) > MaxChildren {
		for i, c := range children {
			results[i] = dombatch.NewError(c.Label,
				fmt.Errorf("too many children (max %d): %w", MaxChildren, domain.ErrInvalidRequest))
		}
		return results
	}

	parent, err := s.repo.GetNode(ctx, parentID)
	if err != nil {
		for i, c := range children {
			results[i] = dombatch.NewError(c.Label, fmt.Errorf("get parent: %w", err))
		}
		return results
	}

	for i, c := range children {
		results[i] = s.addChild(ctx, &parent, AddRequest{
			ParentID:  parentID,
			Label:     c.Label,
			Content:   c.Content,
			MainTopic: mainTopic,
			SessionID: sessionID,
		})
	}
	return results
}

func (s *Service) addChild(ctx context.Context, parent *mindmap.Node, req AddRequest) dombatch.Result {
	ctx, span := tracer.Start(ctx, "graph.add_node", trace.WithAttributes(
		attribute.String("map_id", parent.MapID()),
		attribute.String("parent_id", parent.ID()),
	))
	defer span.End()

	log := logger.FromContext(ctx).With(logger.MapID(parent.MapID()), zap.String("label", req.Label))

	label, err := mindmap.ValidateLabel(req.Label)
	if err != nil {
		return dombatch.NewError(req.Label, err)
	}
	if textnorm.IsFiller(label) {
		return dombatch.NewFiltered(label)
	}

	id := s.newID()
	owner, reserved, err := s.repo.ReserveLabel(ctx, parent.MapID(), label, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserve label")
		return dombatch.NewError(label, err)
	}
	if !reserved {
		span.SetAttributes(attribute.Bool("duplicate", true))
		return dombatch.NewDuplicate(label, owner)
	}

	node, err := s.createNode(ctx, parent, id, label, req.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create node")
		if rerr := s.repo.ReleaseLabel(ctx, parent.MapID(), label); rerr != nil {
			log.Warn("Failed to release label after failed create", zap.Error(rerr))
		}
		return dombatch.NewError(label, err)
	}

	edge := mindmap.NewEdge(s.newID(), parent, &node, node.CreatedAt())
	if err := s.repo.CreateEdge(ctx, edge); err != nil {
		// The node and its parent link already exist; the edge record is derivative.
		log.Warn("Failed to create edge", logger.NodeID(id), zap.Error(err))
		edge.ID = ""
	}
	if err := s.repo.PatchMap(ctx, parent.MapID(), repograph.MapPatch{UpdatedAt: node.CreatedAt()}); err != nil {
		log.Warn("Failed to bump map updated_at", zap.Error(err))
	}

	metrics.NodesCreatedTotal.Inc()
	span.SetAttributes(attribute.String("node_id", id))

	if err := s.events.Publish(ctx, events.NodeCreated(req.SessionID, &node, edge.ID)); err != nil {
		log.Warn("Failed to publish node event", zap.Error(err))
	}
	if s.enricher != nil {
		s.enricher.Enqueue(ctx, insight.Request{
			NodeID:    id,
			MapID:     node.MapID(),
			Topic:     label,
			MainTopic: req.MainTopic,
		})
	}

	log.Debug("Node created", logger.NodeID(id), zap.Int("order", node.Order()))
	return dombatch.NewCreated(label, id)
}

func (s *Service) createNode(ctx context.Context, parent *mindmap.Node, id, label, content string) (mindmap.Node, error) {
	order, err := s.repo.NextSiblingIndex(ctx, parent.ID())
	if err != nil {
		return mindmap.Node{}, err
	}
	node, err := mindmap.NewChild(id, parent, label, content, order, s.now())
	if err != nil {
		return mindmap.Node{}, err
	}
	if err := s.repo.CreateNode(ctx, &node); err != nil {
		return mindmap.Node{}, err
	}
	return node, nil
}

// GetMap returns a map by ID.
func (s *Service) GetMap(ctx context.Context, mapID string) (mindmap.Map, error) {
	m, err := s.repo.GetMap(ctx, mapID)
	if err != nil {
		return mindmap.Map{}, fmt.Errorf("get map: %w", err)
	}
	return m, nil
}

// GetNode returns a node by ID.
func (s *Service) GetNode(ctx context.Context, nodeID string) (mindmap.Node, error) {
	n, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// ListNodes returns every node of an existing map.
func (s *Service) ListNodes(ctx context.Context, mapID string) ([]mindmap.Node, error) {
	if _, err := s.repo.GetMap(ctx, mapID); err != nil {
		return nil, fmt.Errorf("get map: %w", err)
	}
	nodes, err := s.repo.ListNodesByMap(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// ListChildren returns the children of a node in sibling order.
func (s *Service) ListChildren(ctx context.Context, nodeID string) ([]mindmap.Node, error) {
	if _, err := s.repo.GetNode(ctx, nodeID); err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return s.repo.ListChildren(ctx, nodeID)
}

// ListEdges returns every edge of an existing map.
func (s *Service) ListEdges(ctx context.Context, mapID string) ([]mindmap.Edge, error) {
	if _, err := s.repo.GetMap(ctx, mapID); err != nil {
		return nil, fmt.Errorf("get map: %w", err)
	}
	edges, err := s.repo.ListEdgesByMap(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edges, nil
}
