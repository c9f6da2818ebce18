// Package enrich attaches research insights to nodes in the background.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/events"
	"github.com/kailas-cloud/voxmap/internal/logger"
	"github.com/kailas-cloud/voxmap/internal/metrics"
)

// Defaults for Config.
const (
	DefaultTimeout  = 45 * time.Second
	DefaultClaimTTL = 2 * time.Minute
)

// Config holds enrichment settings.
type Config struct {
	// Timeout bounds one research task.
	Timeout time.Duration
	// ClaimTTL bounds how long a crashed task blocks a retry.
	ClaimTTL time.Duration
}

// ErrorSink receives the failure of a detached enrichment task.
type ErrorSink func(ctx context.Context, req insight.Request, err error)

// Service runs one detached task per requested node. Tasks never report back
// to the caller: results land in the repository, failures in the error sink.
type Service struct {
	researcher Researcher
	repo       Repository
	events     events.Publisher
	cfg        Config
	sink       ErrorSink
	now        func() time.Time

	wg sync.WaitGroup
}

// New creates an enrichment service. A nil researcher disables enrichment;
// Get still serves stored insights.
func New(researcher Researcher, repo Repository, pub events.Publisher, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		researcher: researcher,
		repo:       repo,
		events:     pub,
		cfg:        cfg,
		sink:       logSink,
		now:        time.Now,
	}
}

// WithErrorSink replaces the default logging sink.
func (s *Service) WithErrorSink(sink ErrorSink) *Service {
	if sink != nil {
		s.sink = sink
	}
	return s
}

func logSink(ctx context.Context, req insight.Request, err error) {
	logger.FromContext(ctx).Warn("Enrichment failed",
		logger.NodeID(req.NodeID),
		zap.String("topic", req.Topic),
		zap.Error(err),
	)
}

// Enabled reports whether a researcher is configured.
func (s *Service) Enabled() bool { return s.researcher != nil }

// Enqueue starts research for req.NodeID unless an insight already exists or
// another task holds the claim. It returns immediately.
func (s *Service) Enqueue(ctx context.Context, req insight.Request) {
	if s.researcher == nil {
		return
	}
	// Detach from the caller's cancellation, keep its logger.
	ctx = logger.ContextWithLogger(context.Background(), logger.FromContext(ctx))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		s.run(ctx, req)
	}()
}

func (s *Service) run(ctx context.Context, req insight.Request) {
	log := logger.FromContext(ctx).With(logger.NodeID(req.NodeID))

	if _, ok, err := s.repo.Get(ctx, req.NodeID); err != nil {
		s.fail(ctx, req, err)
		return
	} else if ok {
		metrics.EnrichmentsTotal.WithLabelValues("skipped").Inc()
		return
	}

	claimed, err := s.repo.Claim(ctx, req.NodeID, s.cfg.ClaimTTL)
	if err != nil {
		s.fail(ctx, req, err)
		return
	}
	if !claimed {
		metrics.EnrichmentsTotal.WithLabelValues("skipped").Inc()
		return
	}
	defer func() {
		if err := s.repo.Release(context.WithoutCancel(ctx), req.NodeID); err != nil {
			log.Warn("Failed to release insight claim", zap.Error(err))
		}
	}()

	// A task that finished between Get and Claim has already stored it.
	if _, ok, err := s.repo.Get(ctx, req.NodeID); err == nil && ok {
		metrics.EnrichmentsTotal.WithLabelValues("skipped").Inc()
		return
	}

	research, err := s.researcher.Research(ctx, req.Topic, req.MainTopic)
	if err != nil {
		s.fail(ctx, req, err)
		return
	}

	in := insight.Insight{
		NodeID:    req.NodeID,
		MapID:     req.MapID,
		Topic:     req.Topic,
		MainTopic: req.MainTopic,
		Research:  research,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.repo.Save(ctx, in); err != nil {
		s.fail(ctx, req, err)
		return
	}

	metrics.EnrichmentsTotal.WithLabelValues("success").Inc()
	if err := s.events.Publish(ctx, events.InsightReady(in)); err != nil {
		log.Warn("Failed to publish insight event", zap.Error(err))
	}
	log.Debug("Insight stored", zap.String("topic", req.Topic))
}

func (s *Service) fail(ctx context.Context, req insight.Request, err error) {
	metrics.EnrichmentsTotal.WithLabelValues("error").Inc()
	s.sink(ctx, req, fmt.Errorf("node %s: %w: %w", req.NodeID, domain.ErrEnrichmentFailed, err))
}

// Get returns the stored insight of a node. ready is false while research is
// pending or was never requested.
func (s *Service) Get(ctx context.Context, nodeID string) (in insight.Insight, ready bool, err error) {
	in, ready, err = s.repo.Get(ctx, nodeID)
	if err != nil {
		return insight.Insight{}, false, fmt.Errorf("get insight: %w", err)
	}
	return in, ready, nil
}

// Wait blocks until every started task has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
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
