package mindmap

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/layout"
)

// Label and content limits.
const (
	MaxLabelLen   = 120
	MaxContentLen = 4096
)

// Node is a vertex of a mind map (immutable value object).
// The root has an empty parentID and level 0.
type Node struct {
	id        string
	mapID     string
	parentID  string
	label     string
	content   string
	level     int
	order     int
	position  layout.Position
	color     string
	createdAt int64
	updatedAt int64
}

// NewRoot creates the level-0 node of a map at the canvas origin.
func NewRoot(id, mapID, label string, now int64) (Node, error) {
	label, err := ValidateLabel(label)
	if err != nil {
		return Node{}, err
	}
	if id == "" || mapID == "" {
		return Node{}, fmt.Errorf("node and map IDs are required")
	}
	return Node{
		id:        id,
		mapID:     mapID,
		label:     label,
		color:     layout.ColorForLevel(0),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// NewChild creates a child of parent placed at the order-th fan-out slot.
func NewChild(id string, parent *Node, label, content string, order int, now int64) (Node, error) {
	label, err := ValidateLabel(label)
	if err != nil {
		return Node{}, err
	}
	if id == "" {
		return Node{}, fmt.Errorf("node ID is required")
	}
	if r := []rune(content); len(r) > MaxContentLen {
		content = string(r[:MaxContentLen])
	}
	level := parent.level + 1
	return Node{
		id:        id,
		mapID:     parent.mapID,
		parentID:  parent.id,
		label:     label,
		content:   strings.TrimSpace(content),
		level:     level,
		order:     order,
		position:  layout.ChildPosition(parent.position, level, order),
		color:     layout.ColorForLevel(level),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct creates a Node without validation (storage hydration).
func Reconstruct(
	id, mapID, parentID, label, content string,
	level, order int, pos layout.Position, color string,
	createdAt, updatedAt int64,
) Node {
	return Node{
		id: id, mapID: mapID, parentID: parentID, label: label, content: content,
		level: level, order: order, position: pos, color: color,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// MapID returns the owning map.
func (n *Node) MapID() string { return n.mapID }

// ParentID returns the parent node, empty for the root.
func (n *Node) ParentID() string { return n.parentID }

// Label returns the display label.
func (n *Node) Label() string { return n.label }

// Content returns the optional free text.
func (n *Node) Content() string { return n.content }

// Level returns the depth (root = 0).
func (n *Node) Level() int { return n.level }

// Order returns the sibling order index.
func (n *Node) Order() int { return n.order }

// Position returns the canvas position.
func (n *Node) Position() layout.Position { return n.position }

// Color returns the display color.
func (n *Node) Color() string { return n.color }

// CreatedAt returns the creation time in unix millis.
func (n *Node) CreatedAt() int64 { return n.createdAt }

// UpdatedAt returns the last update time in unix millis.
func (n *Node) UpdatedAt() int64 { return n.updatedAt }

// IsRoot reports whether the node is the map root.
func (n *Node) IsRoot() bool { return n.parentID == "" }

// ValidateLabel trims label and checks it is non-empty and within MaxLabelLen.
func ValidateLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("label is required: %w", domain.ErrInvalidLabel)
	}
	if len([]rune(label)) > MaxLabelLen {
		return "", fmt.Errorf("label too long (max %d): %w", MaxLabelLen, domain.ErrInvalidLabel)
	}
	return label, nil
}
