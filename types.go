package voxmap

import (
	dombatch "github.com/kailas-cloud/voxmap/internal/domain/batch"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	domsession "github.com/kailas-cloud/voxmap/internal/domain/session"
	"github.com/kailas-cloud/voxmap/internal/events"
)

// Event is one graph or session change delivered to subscribers.
type Event = events.Event

// EventType names an event.
type EventType = events.Type

// Event payloads. Event.Data holds a NodePayload, an Insight or a SessionPayload.
type (
	NodePayload    = events.NodePayload
	SessionPayload = events.SessionPayload
)

// Event types.
const (
	EventNodeCreated    = events.TypeNodeCreated
	EventInsightReady   = events.TypeInsightReady
	EventSessionStarted = events.TypeSessionStarted
	EventSessionStopped = events.TypeSessionStopped
)

// Insight is the research attached to a node.
type Insight = insight.Insight

// Session is a snapshot of the capture session.
type Session struct {
	ID        string
	State     string // "idle", "awaiting_topic" or "active"
	MapID     string
	RootID    string
	MainTopic string
	Speakers  []string
	AIEnabled bool
}

// Map is one mind map.
type Map struct {
	ID        string
	Title     string
	RootID    string
	CreatedAt int64 // unix millis
	UpdatedAt int64 // unix millis
}

// Node is one topic in a map. The root has level 0 and no parent.
type Node struct {
	ID        string
	MapID     string
	ParentID  string
	Label     string
	Content   string
	Level     int
	Order     int
	X, Y      float64
	Color     string
	CreatedAt int64 // unix millis
}

// Edge links a parent node to a child.
type Edge struct {
	ID        string
	Source    string
	Target    string
	CreatedAt int64 // unix millis
}

// ChildResult is the outcome of one entry of Expand.
type ChildResult struct {
	Label  string
	NodeID string // set for created and duplicate entries
	Status string // "created", "duplicate", "filtered" or "error"
	Err    error
}

func sessionFromDomain(s domsession.Snapshot) Session {
	var state string
	switch s.State {
	case domsession.StateAwaitingTopic:
		state = "awaiting_topic"
	case domsession.StateActive:
		state = "active"
	default:
		state = "idle"
	}
	return Session{
		ID:        s.ID,
		State:     state,
		MapID:     s.Target.MapID,
		RootID:    s.Target.RootID,
		MainTopic: s.Target.MainTopic,
		Speakers:  s.Speakers,
		AIEnabled: s.AIEnabled,
	}
}

func mapFromDomain(m mindmap.Map) Map {
	return Map{ID: m.ID, Title: m.Title, RootID: m.RootID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func nodeFromDomain(n *mindmap.Node) Node {
	pos := n.Position()
	return Node{
		ID:        n.ID(),
		MapID:     n.MapID(),
		ParentID:  n.ParentID(),
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

func nodesFromDomain(nodes []mindmap.Node) []Node {
	out := make([]Node, len(nodes))
	for i := range nodes {
		out[i] = nodeFromDomain(&nodes[i])
	}
	return out
}

func edgesFromDomain(edges []mindmap.Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = Edge{ID: e.ID, Source: e.Source, Target: e.Target, CreatedAt: e.CreatedAt}
	}
	return out
}

func resultsFromDomain(results []dombatch.Result) []ChildResult {
	out := make([]ChildResult, len(results))
	for i, r := range results {
		out[i] = ChildResult{
			Label:  r.Label(),
			NodeID: r.NodeID(),
			Status: string(r.Status()),
			Err:    r.Err(),
		}
	}
	return out
}
