// Package classify turns batches of phrases into topic classifications.
//
// The result of Classify is always index-aligned with its input. Phrases are
// served from the cache when possible, the misses go to the remote classifier
// (budget, retry, circuit breaker and per-attempt timeout apply), and whatever
// is still unresolved gets the local fallback classification.
package classify

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
	"github.com/kailas-cloud/voxmap/internal/logger"
	"github.com/kailas-cloud/voxmap/internal/metrics"
	"github.com/kailas-cloud/voxmap/internal/resilience"
)

// Fallback classification values.
const (
	FallbackTopicLen   = 25
	FallbackConfidence = 0.5
)

// Defaults for Config.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBatchSize = 16
)

var tracer = otel.Tracer("github.com/kailas-cloud/voxmap/internal/usecase/classify")

// Config holds classifier adapter settings.
type Config struct {
	Provider string
	// Timeout bounds one remote attempt.
	Timeout time.Duration
	// MaxBatchSize caps the phrases sent in one remote call.
	MaxBatchSize int
	Retry        resilience.RetryConfig
}

// Request is one batch to classify.
type Request struct {
	Phrases   []string
	MainTopic string
	// LocalOnly skips cache and remote: every phrase takes the fallback.
	LocalOnly bool
}

// Service is the topic classifier adapter.
type Service struct {
	remote  domain.RemoteClassifier
	cache   Cache
	budget  BudgetChecker
	breaker Breaker
	cfg     Config
}

// New creates the adapter. Every collaborator except cfg may be nil; with no
// remote classifier every miss takes the fallback.
func New(remote domain.RemoteClassifier, cache Cache, budget BudgetChecker, breaker Breaker, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	return &Service{remote: remote, cache: cache, budget: budget, breaker: breaker, cfg: cfg}
}

// Fallback is the local heuristic: the first characters of the normalized
// text as topic, no speaker, neutral confidence.
func Fallback(text string) domain.Classification {
	return domain.Classification{
		Topic:        textnorm.Truncate(text, FallbackTopicLen),
		Confidence:   FallbackConfidence,
		OriginalText: text,
	}
}

// Classify returns one classification per phrase, in input order. It never fails.
func (s *Service) Classify(ctx context.Context, req Request) []domain.Classification {
	ctx, span := tracer.Start(ctx, "classify.batch", trace.WithAttributes(
		attribute.Int("phrases", len(req.Phrases)),
		attribute.Bool("local_only", req.LocalOnly),
	))
	defer span.End()

	log := logger.FromContext(ctx)
	usage := domain.UsageFromContext(ctx)

	out := make([]domain.Classification, len(req.Phrases))
	done := make([]bool, len(req.Phrases))

	if !req.LocalOnly {
		misses := s.fromCache(ctx, req, out, done)
		if len(misses) > 0 && s.remote != nil {
			if err := s.fromRemote(ctx, req, misses, out, done); err != nil {
				span.RecordError(err)
				log.Warn("Remote classification failed, using fallback",
					zap.Int("phrases", len(misses)),
					zap.Error(err),
				)
			}
		}
	}

	fallbacks := 0
	for i, text := range req.Phrases {
		if done[i] {
			continue
		}
		out[i] = Fallback(text)
		fallbacks++
		usage.AddFallback()
		metrics.ClassificationsTotal.WithLabelValues("fallback").Inc()
	}
	if fallbacks > 0 {
		span.SetStatus(codes.Error, "fallback")
		span.SetAttributes(attribute.Int("fallbacks", fallbacks))
	}
	return out
}

// fromCache fills hits and returns the indices still unresolved.
func (s *Service) fromCache(ctx context.Context, req Request, out []domain.Classification, done []bool) []int {
	misses := make([]int, 0, len(req.Phrases))
	usage := domain.UsageFromContext(ctx)
	for i, text := range req.Phrases {
		if s.cache == nil {
			misses = append(misses, i)
			continue
		}
		m, ok := s.cache.Lookup(ctx, text, req.MainTopic)
		if !ok {
			misses = append(misses, i)
			continue
		}
		cl := m.Classification
		cl.OriginalText = text
		out[i] = cl
		done[i] = true
		usage.AddCacheHit()
		metrics.ClassificationsTotal.WithLabelValues("cache").Inc()
	}
	return misses
}

// fromRemote classifies the misses in chunks of MaxBatchSize. Entries the
// remote classifier could not produce stay unresolved. The first error that
// stops the remaining chunks is returned.
func (s *Service) fromRemote(ctx context.Context, req Request, misses []int, out []domain.Classification, done []bool) error {
	log := logger.FromContext(ctx)
	usage := domain.UsageFromContext(ctx)

	for offset := 0; offset < len(misses); offset += s.cfg.MaxBatchSize {
		if s.budget != nil {
			if err := s.budget.Check(ctx); err != nil {
				return err
			}
		}

		idx := misses[offset:min(offset+s.cfg.MaxBatchSize, len(misses))]
		texts := make([]string, len(idx))
		for j, i := range idx {
			texts[j] = req.Phrases[i]
		}

		resp, err := s.call(ctx, texts, req.MainTopic)
		if err != nil {
			if errors.Is(err, resilience.ErrOpen) || errors.Is(err, context.Canceled) {
				return err
			}
			// One failed chunk does not keep the next from trying.
			log.Warn("Remote classification chunk failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(texts)),
				zap.Error(err),
			)
			continue
		}

		s.recordBudget(resp.TotalTokens)
		usage.AddRemote(resp.TotalTokens)

		for j, i := range idx {
			cl, ok := resp.Results[j]
			if !ok {
				continue
			}
			cl.OriginalText = req.Phrases[i]
			out[i] = cl
			done[i] = true
			metrics.ClassificationsTotal.WithLabelValues("remote").Inc()
			if s.cache != nil {
				if err := s.cache.Put(ctx, req.Phrases[i], req.MainTopic, cl); err != nil {
					log.Warn("Failed to cache classification", zap.Error(err))
				}
			}
		}
	}
	return nil
}

// call runs one remote request under retry, breaker and per-attempt timeout.
func (s *Service) call(ctx context.Context, texts []string, mainTopic string) (domain.ClassifyResponse, error) {
	ctx, span := tracer.Start(ctx, "classify.remote", trace.WithAttributes(
		attribute.String("provider", s.cfg.Provider),
		attribute.Int("phrases", len(texts)),
	))
	defer span.End()

	var resp domain.ClassifyResponse
	attempt := func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		r, err := s.remote.Classify(actx, texts, mainTopic)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}
	guarded := attempt
	if s.breaker != nil {
		guarded = func(ctx context.Context) error { return s.breaker.Execute(ctx, attempt) }
	}

	if err := resilience.Retry(ctx, s.cfg.Retry, logger.FromContext(ctx), guarded); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ClassifyResponse{}, err
	}
	span.SetAttributes(attribute.Int("results", len(resp.Results)))
	return resp, nil
}

func (s *Service) recordBudget(tokens int) {
	if s.budget == nil || tokens <= 0 {
		return
	}
	s.budget.Record(int64(tokens))
	remaining := metrics.ClassifierBudgetTokensRemaining
	remaining.WithLabelValues(s.cfg.Provider, "daily").Set(float64(s.budget.RemainingDaily()))
	remaining.WithLabelValues(s.cfg.Provider, "monthly").Set(float64(s.budget.RemainingMonthly()))
}
