package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/voxmap/internal/db"
	"github.com/kailas-cloud/voxmap/internal/domain"
	dominsight "github.com/kailas-cloud/voxmap/internal/domain/insight"
)

// store is the consumer interface for insights (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Repo stores one insight per node as a JSON blob.
type Repo struct {
	store store
}

// New creates an insight repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save stores or replaces the insight of a node.
func (r *Repo) Save(ctx context.Context, in dominsight.Insight) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}
	if err := r.store.Set(ctx, insightKey(in.NodeID), data); err != nil {
		return fmt.Errorf("set insight %s: %w", in.NodeID, err)
	}
	return nil
}

// Get returns the insight of a node. ok is false while research is pending.
func (r *Repo) Get(ctx context.Context, nodeID string) (dominsight.Insight, bool, error) {
	data, err := r.store.Get(ctx, insightKey(nodeID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return dominsight.Insight{}, false, nil
		}
		return dominsight.Insight{}, false, fmt.Errorf("get insight %s: %w", nodeID, err)
	}
	var in dominsight.Insight
	if err := json.Unmarshal(data, &in); err != nil {
		return dominsight.Insight{}, false, fmt.Errorf("unmarshal insight %s: %w", nodeID, err)
	}
	return in, true, nil
}

// Claim marks research for nodeID as in progress. Returns false if another
// task already holds the claim. The claim expires after ttl.
func (r *Repo) Claim(ctx context.Context, nodeID string, ttl time.Duration) (bool, error) {
	ok, err := r.store.SetNX(ctx, claimKey(nodeID), []byte("1"), ttl)
	if err != nil {
		return false, fmt.Errorf("claim insight %s: %w", nodeID, err)
	}
	return ok, nil
}

// Release drops the in-progress claim.
func (r *Repo) Release(ctx context.Context, nodeID string) error {
	if err := r.store.Del(ctx, claimKey(nodeID)); err != nil {
		return fmt.Errorf("release insight claim %s: %w", nodeID, err)
	}
	return nil
}

func insightKey(nodeID string) string { return domain.KeyPrefix + "insight:" + nodeID }
func claimKey(nodeID string) string   { return insightKey(nodeID) + ":pending" }
