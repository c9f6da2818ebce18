package classify

import (
	"context"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/repository/classcache"
)

// Cache is the classification cache in front of the remote classifier.
type Cache interface {
	Lookup(ctx context.Context, text, mainTopic string) (classcache.Match, bool)
	Put(ctx context.Context, text, mainTopic string, cl domain.Classification) error
}

// BudgetChecker enforces the classification token budget.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Breaker guards remote calls with a circuit breaker.
type Breaker interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}
