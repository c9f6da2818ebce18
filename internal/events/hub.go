package events

import (
	"context"
	"sync"

	"github.com/kailas-cloud/voxmap/internal/metrics"
)

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 64

// Hub broadcasts events to in-process subscribers such as websocket
// connections. A slow subscriber loses events instead of blocking the pipeline.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
}

type subscription struct {
	ch    chan Event
	mapID string
}

// NewHub creates an event hub.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{subs: make(map[*subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. An empty mapID receives every event.
// The returned cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(mapID string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, h.buffer), mapID: mapID}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish implements Publisher. It never blocks and never fails.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.mapID != "" && sub.mapID != e.MapID {
			continue
		}
		select {
		case sub.ch <- e:
			metrics.EventsPublishedTotal.WithLabelValues("hub", string(e.Type), "ok").Inc()
		default:
			metrics.EventsPublishedTotal.WithLabelValues("hub", string(e.Type), "dropped").Inc()
		}
	}
	return nil
}
