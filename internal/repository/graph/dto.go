package graph

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/voxmap/internal/domain/layout"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
)

func mapToHash(m mindmap.Map) map[string]string {
	return map[string]string{
		"id":         m.ID,
		"title":      m.Title,
		"root_id":    m.RootID,
		"created_at": strconv.FormatInt(m.CreatedAt, 10),
		"updated_at": strconv.FormatInt(m.UpdatedAt, 10),
	}
}

func mapFromHash(h map[string]string) (mindmap.Map, error) {
	createdAt, err := strconv.ParseInt(h["created_at"], 10, 64)
	if err != nil {
		return mindmap.Map{}, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := strconv.ParseInt(h["updated_at"], 10, 64)
	if err != nil {
		return mindmap.Map{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	return mindmap.Map{
		ID:        h["id"],
		Title:     h["title"],
		RootID:    h["root_id"],
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func nodeToHash(n *mindmap.Node) map[string]string {
	pos := n.Position()
	return map[string]string{
		"id":         n.ID(),
		"map_id":     n.MapID(),
		"parent_id":  n.ParentID(),
		"label":      n.Label(),
		"content":    n.Content(),
		"level":      strconv.Itoa(n.Level()),
		"order":      strconv.Itoa(n.Order()),
		"x":          strconv.FormatFloat(pos.X, 'g', -1, 64),
		"y":          strconv.FormatFloat(pos.Y, 'g', -1, 64),
		"color":      n.Color(),
		"created_at": strconv.FormatInt(n.CreatedAt(), 10),
		"updated_at": strconv.FormatInt(n.UpdatedAt(), 10),
	}
}

func nodeFromHash(h map[string]string) (mindmap.Node, error) {
	level, err := strconv.Atoi(h["level"])
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("invalid level: %w", err)
	}
	order, err := strconv.Atoi(h["order"])
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("invalid order: %w", err)
	}
	x, err := strconv.ParseFloat(h["x"], 64)
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(h["y"], 64)
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("invalid y: %w", err)
	}
	createdAt, err := strconv.ParseInt(h["created_at"], 10, 64)
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := strconv.ParseInt(h["updated_at"], 10, 64)
	if err != nil {
		return mindmap.Node{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	return mindmap.Reconstruct(
		h["id"], h["map_id"], h["parent_id"], h["label"], h["content"],
		level, order, layout.Position{X: x, Y: y}, h["color"],
		createdAt, updatedAt,
	), nil
}

func edgeToHash(e mindmap.Edge) map[string]string {
	return map[string]string{
		"id":         e.ID,
		"map_id":     e.MapID,
		"source":     e.Source,
		"target":     e.Target,
		"created_at": strconv.FormatInt(e.CreatedAt, 10),
	}
}

func edgeFromHash(h map[string]string) (mindmap.Edge, error) {
	createdAt, err := strconv.ParseInt(h["created_at"], 10, 64)
	if err != nil {
		return mindmap.Edge{}, fmt.Errorf("invalid created_at: %w", err)
	}
	return mindmap.Edge{
		ID:        h["id"],
		MapID:     h["map_id"],
		Source:    h["source"],
		Target:    h["target"],
		CreatedAt: createdAt,
	}, nil
}
