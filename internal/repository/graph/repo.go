// Package graph stores mind maps, nodes and edges as hashes with set indexes.
//
// Key layout (prefix omitted):
//
//	map:{id}                 HASH  map record
//	map:{id}:nodes           SET   node IDs
//	map:{id}:edges           SET   edge IDs
//	map:{id}:label:{norm}    STR   node ID owning the normalized label
//	node:{id}                HASH  node record
//	node:{id}:children       SET   child node IDs
//	node:{id}:child_seq      STR   sibling slot counter
//	edge:{id}                HASH  edge record
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kailas-cloud/voxmap/internal/db"
	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
)

// store is the consumer interface for the graph repository (ISP).
//
//nolint:interfacebloat // graph repo needs hash + kv + set operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// MapPatch lists the map fields a caller may change. Zero values are left untouched.
type MapPatch struct {
	Title     string
	RootID    string
	UpdatedAt int64
}

// Repo implements the graph storage used by the ingestion pipeline.
// Every method is a single atomic store call or a sequence of them;
// ReserveLabel is the only conditional write.
type Repo struct {
	store store
}

// New creates a graph repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// CreateMap stores a new map record.
func (r *Repo) CreateMap(ctx context.Context, m mindmap.Map) error {
	if err := r.store.HSet(ctx, mapKey(m.ID), mapToHash(m)); err != nil {
		return fmt.Errorf("hset map %s: %w", m.ID, err)
	}
	return nil
}

// GetMap returns a map by ID.
func (r *Repo) GetMap(ctx context.Context, mapID string) (mindmap.Map, error) {
	h, err := r.store.HGetAll(ctx, mapKey(mapID))
	if err != nil {
		return mindmap.Map{}, fmt.Errorf("hgetall map %s: %w", mapID, err)
	}
	if len(h) == 0 {
		return mindmap.Map{}, domain.ErrMapNotFound
	}
	return mapFromHash(h)
}

// PatchMap updates the non-zero fields of patch on an existing map.
func (r *Repo) PatchMap(ctx context.Context, mapID string, patch MapPatch) error {
	exists, err := r.store.Exists(ctx, mapKey(mapID))
	if err != nil {
		return fmt.Errorf("check map %s: %w", mapID, err)
	}
	if !exists {
		return domain.ErrMapNotFound
	}

	fields := make(map[string]string, 3)
	if patch.Title != "" {
		fields["title"] = patch.Title
	}
	if patch.RootID != "" {
		fields["root_id"] = patch.RootID
	}
	if patch.UpdatedAt != 0 {
		fields["updated_at"] = strconv.FormatInt(patch.UpdatedAt, 10)
	}
	if len(fields) == 0 {
		return nil
	}
	if err := r.store.HSet(ctx, mapKey(mapID), fields); err != nil {
		return fmt.Errorf("patch map %s: %w", mapID, err)
	}
	return nil
}

// CreateNode stores a node and indexes it under its map and parent.
func (r *Repo) CreateNode(ctx context.Context, n *mindmap.Node) error {
	if err := r.store.HSet(ctx, nodeKey(n.ID()), nodeToHash(n)); err != nil {
		return fmt.Errorf("hset node %s: %w", n.ID(), err)
	}
	if err := r.store.SAdd(ctx, mapNodesKey(n.MapID()), n.ID()); err != nil {
		return fmt.Errorf("index node %s: %w", n.ID(), err)
	}
	if !n.IsRoot() {
		if err := r.store.SAdd(ctx, childrenKey(n.ParentID()), n.ID()); err != nil {
			return fmt.Errorf("index child %s: %w", n.ID(), err)
		}
	}
	return nil
}

// GetNode returns a node by ID.
func (r *Repo) GetNode(ctx context.Context, nodeID string) (mindmap.Node, error) {
	h, err := r.store.HGetAll(ctx, nodeKey(nodeID))
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("hgetall node %s: %w", nodeID, err)
	}
	if len(h) == 0 {
		return mindmap.Node{}, domain.ErrNodeNotFound
	}
	return nodeFromHash(h)
}

// ListNodesByMap returns every node of a map ordered by level, then sibling order.
func (r *Repo) ListNodesByMap(ctx context.Context, mapID string) ([]mindmap.Node, error) {
	ids, err := r.store.SMembers(ctx, mapNodesKey(mapID))
	if err != nil {
		return nil, fmt.Errorf("smembers map nodes %s: %w", mapID, err)
	}
	nodes, err := r.loadNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Level() != nodes[j].Level() {
			return nodes[i].Level() < nodes[j].Level()
		}
		if nodes[i].Order() != nodes[j].Order() {
			return nodes[i].Order() < nodes[j].Order()
		}
		return nodes[i].CreatedAt() < nodes[j].CreatedAt()
	})
	return nodes, nil
}

// ListChildren returns the children of a node in sibling order.
func (r *Repo) ListChildren(ctx context.Context, parentID string) ([]mindmap.Node, error) {
	ids, err := r.store.SMembers(ctx, childrenKey(parentID))
	if err != nil {
		return nil, fmt.Errorf("smembers children %s: %w", parentID, err)
	}
	nodes, err := r.loadNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Order() < nodes[j].Order() })
	return nodes, nil
}

func (r *Repo) loadNodes(ctx context.Context, ids []string) ([]mindmap.Node, error) {
	if len(ids) == 0 {
		return []mindmap.Node{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = nodeKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi nodes: %w", err)
	}
	nodes := make([]mindmap.Node, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		n, err := nodeFromHash(h)
		if err != nil {
			return nil, fmt.Errorf("parse node %s: %w", ids[i], err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// CreateEdge stores an edge and indexes it under its map.
func (r *Repo) CreateEdge(ctx context.Context, e mindmap.Edge) error {
	if err := r.store.HSet(ctx, edgeKey(e.ID), edgeToHash(e)); err != nil {
		return fmt.Errorf("hset edge %s: %w", e.ID, err)
	}
	if err := r.store.SAdd(ctx, mapEdgesKey(e.MapID), e.ID); err != nil {
		return fmt.Errorf("index edge %s: %w", e.ID, err)
	}
	return nil
}

// ListEdgesByMap returns every edge of a map in creation order.
func (r *Repo) ListEdgesByMap(ctx context.Context, mapID string) ([]mindmap.Edge, error) {
	ids, err := r.store.SMembers(ctx, mapEdgesKey(mapID))
	if err != nil {
		return nil, fmt.Errorf("smembers map edges %s: %w", mapID, err)
	}
	if len(ids) == 0 {
		return []mindmap.Edge{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = edgeKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi edges: %w", err)
	}
	edges := make([]mindmap.Edge, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		e, err := edgeFromHash(h)
		if err != nil {
			return nil, fmt.Errorf("parse edge %s: %w", ids[i], err)
		}
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].CreatedAt < edges[j].CreatedAt })
	return edges, nil
}

// ReserveLabel claims the normalized label for nodeID within a map (SET NX).
// When the label is already taken it returns the owning node ID and false.
func (r *Repo) ReserveLabel(ctx context.Context, mapID, label, nodeID string) (string, bool, error) {
	key, err := labelKey(mapID, label)
	if err != nil {
		return "", false, err
	}
	ok, err := r.store.SetNX(ctx, key, []byte(nodeID), 0)
	if err != nil {
		return "", false, fmt.Errorf("reserve label: %w", err)
	}
	if ok {
		return nodeID, true, nil
	}
	owner, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			// Released between SETNX and GET; report as taken without an owner.
			return "", false, nil
		}
		return "", false, fmt.Errorf("read label owner: %w", err)
	}
	return string(owner), false, nil
}

// ReleaseLabel frees a label reserved for a node whose creation failed.
func (r *Repo) ReleaseLabel(ctx context.Context, mapID, label string) error {
	key, err := labelKey(mapID, label)
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release label: %w", err)
	}
	return nil
}

// LookupLabel returns the node that owns the normalized label, if any.
func (r *Repo) LookupLabel(ctx context.Context, mapID, label string) (string, bool, error) {
	key, err := labelKey(mapID, label)
	if err != nil {
		return "", false, err
	}
	owner, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup label: %w", err)
	}
	return string(owner), true, nil
}

// NextSiblingIndex hands out the next fan-out slot under parentID, starting at 0.
func (r *Repo) NextSiblingIndex(ctx context.Context, parentID string) (int, error) {
	n, err := r.store.IncrBy(ctx, childSeqKey(parentID), 1)
	if err != nil {
		return 0, fmt.Errorf("next sibling index %s: %w", parentID, err)
	}
	return int(n - 1), nil
}

func mapKey(id string) string      { return domain.KeyPrefix + "map:" + id }
func mapNodesKey(id string) string { return mapKey(id) + ":nodes" }
func mapEdgesKey(id string) string { return mapKey(id) + ":edges" }
func nodeKey(id string) string     { return domain.KeyPrefix + "node:" + id }
func childrenKey(id string) string { return nodeKey(id) + ":children" }
func childSeqKey(id string) string { return nodeKey(id) + ":child_seq" }
func edgeKey(id string) string     { return domain.KeyPrefix + "edge:" + id }

func labelKey(mapID, label string) (string, error) {
	norm := textnorm.Normalize(label)
	if norm == "" {
		return "", fmt.Errorf("label %q normalizes to empty: %w", label, domain.ErrInvalidLabel)
	}
	return mapKey(mapID) + ":label:" + norm, nil
}
