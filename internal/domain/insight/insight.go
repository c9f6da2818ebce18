// Package insight holds the research enrichment attached to a node.
package insight

// Source is one citation backing an insight.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Research is the raw payload returned by the enrichment capability.
type Research struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	RelatedConcepts []string `json:"related_concepts"`
	Sources         []Source `json:"sources"`
}

// Insight is a stored research record keyed by node.
// Its absence means the research is still pending, not that it failed.
type Insight struct {
	NodeID    string `json:"node_id"`
	MapID     string `json:"map_id"`
	Topic     string `json:"topic"`
	MainTopic string `json:"main_topic,omitempty"`
	Research
	CreatedAt int64 `json:"created_at"` // unix millis
}

// Status is the display state of a node's insight.
type Status string

// Insight statuses.
const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
)

// Request asks for research on a node's topic.
type Request struct {
	NodeID    string
	MapID     string
	Topic     string
	MainTopic string
}
