package mindmap

// Edge records the parent->child relation of a created node.
type Edge struct {
	ID        string
	MapID     string
	Source    string
	Target    string
	CreatedAt int64 // unix millis
}

// NewEdge links parent to child.
func NewEdge(id string, parent, child *Node, now int64) Edge {
	return Edge{
		ID:        id,
		MapID:     child.MapID(),
		Source:    parent.ID(),
		Target:    child.ID(),
		CreatedAt: now,
	}
}
