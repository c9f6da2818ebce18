package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ClassifierChecker checks classification provider availability.
type ClassifierChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes whether the classifier circuit is open.
type BreakerReporter interface {
	Open() bool
}
