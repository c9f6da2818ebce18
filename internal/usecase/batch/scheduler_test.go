package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]domain.Phrase
	block   chan struct{}
}

func (r *recorder) handle(_ context.Context, phrases []domain.Phrase) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, phrases)
}

func (r *recorder) get() [][]domain.Phrase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]domain.Phrase, len(r.batches))
	copy(out, r.batches)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScheduler_DebounceCoalesces(t *testing.T) {
	rec := &recorder{}
	s := New(rec.handle, 30*time.Millisecond, 100, nil)

	s.Enqueue("neural networks.")
	s.Enqueue("gradient descent.")
	s.Enqueue("backprop.")

	waitFor(t, func() bool { return len(rec.get()) == 1 })

	b := rec.get()[0]
	if len(b) != 3 {
		t.Fatalf("expected one batch of 3, got %d", len(b))
	}
	for i, p := range b {
		if p.Index != i {
			t.Errorf("phrase %d has index %d", i, p.Index)
		}
	}
	if s.Pending() != 0 {
		t.Errorf("pending should be empty, got %d", s.Pending())
	}
}

func TestScheduler_MaxSizeFlushes(t *testing.T) {
	rec := &recorder{}
	s := New(rec.handle, time.Hour, 2, nil)

	s.Enqueue("a")
	s.Enqueue("b")
	s.Enqueue("c")

	waitFor(t, func() bool { return len(rec.get()) == 1 })
	if s.Pending() != 1 {
		t.Errorf("expected 1 pending phrase, got %d", s.Pending())
	}
	if got := rec.get()[0]; got[0].Text != "a" || got[1].Text != "b" {
		t.Errorf("unexpected batch %+v", got)
	}
}

func TestScheduler_FlushNowIsSynchronous(t *testing.T) {
	rec := &recorder{}
	s := New(rec.handle, time.Hour, 100, nil)

	s.Enqueue("one")
	s.Enqueue("two")
	s.FlushNow(context.Background())

	batches := rec.get()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected the batch to be handled before FlushNow returned, got %+v", batches)
	}
	if s.Pending() != 0 {
		t.Error("pending batch must be cleared")
	}

	// Nothing pending: no handler call.
	s.FlushNow(context.Background())
	if len(rec.get()) != 1 {
		t.Error("empty flush must not call the handler")
	}
}

func TestScheduler_EnqueueDuringInFlightBatch(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	s := New(rec.handle, time.Hour, 1, nil)

	s.Enqueue("first")  // dispatched, blocks in the handler
	s.Enqueue("second") // dispatched independently

	close(rec.block)
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	batches := rec.get()
	if len(batches) != 2 {
		t.Fatalf("expected 2 independent batches, got %d", len(batches))
	}
	for _, b := range batches {
		if len(b) != 1 {
			t.Errorf("batch leaked phrases from another batch: %+v", b)
		}
	}
}

func TestScheduler_CloseDrains(t *testing.T) {
	rec := &recorder{}
	s := New(rec.handle, time.Hour, 100, nil)

	s.Enqueue("pending one")
	s.Enqueue("pending two")

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("expected nothing pending after close, got %d", s.Pending())
	}
	if len(rec.get()) != 1 {
		t.Fatalf("expected pending batch to be handled on close")
	}
	if _, ok := s.Enqueue("late"); ok {
		t.Error("enqueue after close must be rejected")
	}
}

func TestScheduler_WaitHonoursContext(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	defer close(rec.block)
	s := New(rec.handle, time.Hour, 1, nil)
	s.Enqueue("stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
