package domain

import "context"

// Phrase is one segment of raw speech handed to classification as a unit.
// Index is the arrival order within a session.
type Phrase struct {
	Index int
	Text  string
}

// Classification is the topic extracted from one phrase.
// An empty Speaker means no speaker was detected.
type Classification struct {
	Topic        string  `json:"topic"`
	Speaker      string  `json:"speaker,omitempty"`
	Confidence   float64 `json:"confidence"`
	OriginalText string  `json:"original_text"`
}

// ClassifyResponse carries the entries a remote classifier could parse, keyed by
// the index of the phrase they belong to, plus token usage.
// Missing indices mean that entry was unusable.
type ClassifyResponse struct {
	Results      map[int]Classification
	PromptTokens int
	TotalTokens  int
}

// RemoteClassifier is the contract of the remote classification capability.
// It may fail as a whole or return only a subset of entries.
type RemoteClassifier interface {
	Classify(ctx context.Context, phrases []string, mainTopic string) (ClassifyResponse, error)
}

// HealthChecker verifies remote provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
