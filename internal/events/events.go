// Package events carries graph and session changes to live subscribers
// (websocket clients) and to other services (Kafka).
package events

import (
	"context"
	"time"

	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
)

// Type names an event.
type Type string

// Event types.
const (
	TypeNodeCreated    Type = "node.created"
	TypeInsightReady   Type = "insight.ready"
	TypeSessionStarted Type = "session.started"
	TypeSessionStopped Type = "session.stopped"
)

// Event is one published change. Data holds the type-specific payload.
type Event struct {
	Type      Type   `json:"type"`
	MapID     string `json:"map_id"`
	SessionID string `json:"session_id,omitempty"`
	Time      int64  `json:"time"` // unix millis
	Data      any    `json:"data"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NodePayload is the data of a node.created event.
type NodePayload struct {
	ID        string  `json:"id"`
	ParentID  string  `json:"parent_id,omitempty"`
	EdgeID    string  `json:"edge_id,omitempty"`
	Label     string  `json:"label"`
	Content   string  `json:"content,omitempty"`
	Level     int     `json:"level"`
	Order     int     `json:"order"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	CreatedAt int64   `json:"created_at"`
}

// SessionPayload is the data of the session lifecycle events.
type SessionPayload struct {
	RootID    string   `json:"root_id"`
	MainTopic string   `json:"main_topic"`
	Speakers  []string `json:"speakers,omitempty"`
	AIEnabled bool     `json:"ai_enabled"`
}

// NewNodePayload converts a node into its event payload.
func NewNodePayload(n *mindmap.Node, edgeID string) NodePayload {
	pos := n.Position()
	return NodePayload{
		ID:        n.ID(),
		ParentID:  n.ParentID(),
		EdgeID:    edgeID,
		Label:     n.Label(),
		Content:   n.Content(),
		Level:     n.Level(),
		Order:     n.Order(),
		X:         pos.X,
		Y:         pos.Y,
		Color:     n.Color(),
		CreatedAt: n.CreatedAt(),
	}
}

// NodeCreated builds a node.created event.
func NodeCreated(sessionID string, n *mindmap.Node, edgeID string) Event {
	return Event{
		Type:      TypeNodeCreated,
		MapID:     n.MapID(),
		SessionID: sessionID,
		Time:      time.Now().UnixMilli(),
		Data:      NewNodePayload(n, edgeID),
	}
}

// InsightReady builds an insight.ready event.
func InsightReady(in insight.Insight) Event {
	return Event{
		Type:  TypeInsightReady,
		MapID: in.MapID,
		Time:  time.Now().UnixMilli(),
		Data:  in,
	}
}

// SessionChanged builds a session.started or session.stopped event.
func SessionChanged(t Type, sessionID, mapID string, p SessionPayload) Event {
	return Event{
		Type:      t,
		MapID:     mapID,
		SessionID: sessionID,
		Time:      time.Now().UnixMilli(),
		Data:      p,
	}
}
