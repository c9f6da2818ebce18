// Package batch coalesces ready phrases into batches for classification.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/logger"
	"github.com/kailas-cloud/voxmap/internal/metrics"
)

// Handler processes one flushed batch. Phrases keep their arrival order.
type Handler func(ctx context.Context, phrases []domain.Phrase)

// Scheduler collects phrases into a pending batch and hands the batch to the
// handler after a quiet debounce interval, when the batch reaches its maximum
// size, or on an explicit FlushNow.
//
// Batches run independently: a new batch starts accumulating while earlier
// ones are still being handled, and each handler call sees only its own
// phrases.
type Scheduler struct {
	handler  Handler
	debounce time.Duration
	maxSize  int
	logger   *zap.Logger

	mu      sync.Mutex
	pending []domain.Phrase
	timer   *time.Timer
	next    int
	closed  bool

	wg sync.WaitGroup
}

// New creates a scheduler. Non-positive values fall back to the pipeline defaults.
func New(handler Handler, debounce time.Duration, maxSize int, logger *zap.Logger) *Scheduler {
	def := domain.DefaultPipelineConfig()
	if debounce <= 0 {
		debounce = def.Debounce
	}
	if maxSize <= 0 {
		maxSize = def.MaxBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		handler:  handler,
		debounce: debounce,
		maxSize:  maxSize,
		logger:   logger,
		pending:  make([]domain.Phrase, 0, maxSize),
	}
}

// Enqueue appends text as the next phrase and restarts the debounce timer.
// Returns false once the scheduler is closed.
func (s *Scheduler) Enqueue(text string) (domain.Phrase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.Phrase{}, false
	}

	p := domain.Phrase{Index: s.next, Text: text}
	s.next++
	s.pending = append(s.pending, p)

	if len(s.pending) >= s.maxSize {
		s.dispatchLocked()
		return p, true
	}

	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.timerFlush)
	} else {
		s.timer.Reset(s.debounce)
	}
	return p, true
}

func (s *Scheduler) timerFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked()
}

// dispatchLocked hands the pending batch to a detached handler run.
func (s *Scheduler) dispatchLocked() {
	phrases := s.takeLocked()
	if len(phrases) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(logger.ContextWithLogger(context.Background(), s.logger), phrases)
	}()
}

// takeLocked clears the pending batch and returns its phrases.
func (s *Scheduler) takeLocked() []domain.Phrase {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.pending) == 0 {
		return nil
	}
	phrases := s.pending
	s.pending = make([]domain.Phrase, 0, s.maxSize)
	return phrases
}

func (s *Scheduler) run(ctx context.Context, phrases []domain.Phrase) {
	metrics.BatchSize.Observe(float64(len(phrases)))
	s.logger.Debug("Batch flushed",
		zap.Int("size", len(phrases)),
		zap.Int("first_index", phrases[0].Index),
	)
	s.handler(ctx, phrases)
}

// FlushNow takes the pending batch and handles it on the calling goroutine.
// It returns after the handler returns. An empty batch is a no-op.
func (s *Scheduler) FlushNow(ctx context.Context) {
	s.mu.Lock()
	phrases := s.takeLocked()
	if len(phrases) > 0 {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if len(phrases) == 0 {
		return
	}
	defer s.wg.Done()
	s.run(ctx, phrases)
}

// Wait blocks until every dispatched batch has been handled or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of phrases waiting for the next flush.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close rejects further phrases, handles what is pending synchronously and
// waits for in-flight batches.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.FlushNow(ctx)
	return s.Wait(ctx)
}
