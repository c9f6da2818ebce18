package events

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers. Every publisher is tried;
// failures are logged and joined.
type Multi struct {
	pubs   []Publisher
	logger *zap.Logger
}

// NewMulti creates a fan-out publisher. nil publishers are skipped.
func NewMulti(logger *zap.Logger, pubs ...Publisher) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{logger: logger}
	for _, p := range pubs {
		if p != nil {
			m.pubs = append(m.pubs, p)
		}
	}
	return m
}

// Publish implements Publisher.
func (m *Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Publish(ctx, e); err != nil {
			m.logger.Warn("Failed to publish event",
				zap.String("type", string(e.Type)),
				zap.String("map_id", e.MapID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
