package domain

import (
	"context"
	"sync"
)

type batchUsageKey struct{}

// BatchUsage collects classification statistics for one processed batch.
// The batch handler puts a pointer into the context; the classifier adds to it.
type BatchUsage struct {
	mu          sync.Mutex
	TotalTokens int
	RemoteCalls int
	CacheHits   int
	Fallbacks   int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *BatchUsage) {
	u := &BatchUsage{}
	return context.WithValue(ctx, batchUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *BatchUsage {
	u, _ := ctx.Value(batchUsageKey{}).(*BatchUsage)
	return u
}

// AddRemote records one remote call and the tokens it consumed.
func (u *BatchUsage) AddRemote(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.RemoteCalls++
	u.TotalTokens += tokens
	u.mu.Unlock()
}

// AddCacheHit records a phrase served from the cache.
func (u *BatchUsage) AddCacheHit() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.CacheHits++
	u.mu.Unlock()
}

// AddFallback records a phrase classified by the local heuristic.
func (u *BatchUsage) AddFallback() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.Fallbacks++
	u.mu.Unlock()
}
