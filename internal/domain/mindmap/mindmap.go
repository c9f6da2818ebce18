// Package mindmap holds the persistent graph aggregates: maps, nodes and edges.
package mindmap

import (
	"fmt"
	"strings"
)

// MaxTitleLen is the maximum main-topic length in runes. The title becomes
// the root label, so both share one limit.
const MaxTitleLen = MaxLabelLen

// Map is one mind map. Title is the session's main topic; RootID is the single
// level-0 node.
type Map struct {
	ID        string
	Title     string
	RootID    string
	CreatedAt int64 // unix millis
	UpdatedAt int64 // unix millis
}

// NewMap validates and creates a Map without a root yet.
func NewMap(id, title string, now int64) (Map, error) {
	if id == "" {
		return Map{}, fmt.Errorf("map ID is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Map{}, fmt.Errorf("main topic is required")
	}
	if len([]rune(title)) > MaxTitleLen {
		return Map{}, fmt.Errorf("main topic too long (max %d)", MaxTitleLen)
	}
	return Map{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}
