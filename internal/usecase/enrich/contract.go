package enrich

import (
	"context"
	"time"

	"github.com/kailas-cloud/voxmap/internal/domain/insight"
)

// Researcher fetches research for a topic.
type Researcher interface {
	Research(ctx context.Context, topic, mainTopic string) (insight.Research, error)
}

// Repository persists insights and the in-progress claims.
type Repository interface {
	Save(ctx context.Context, in insight.Insight) error
	Get(ctx context.Context, nodeID string) (insight.Insight, bool, error)
	Claim(ctx context.Context, nodeID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, nodeID string) error
}
