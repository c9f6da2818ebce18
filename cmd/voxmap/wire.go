package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/config"
	"github.com/kailas-cloud/voxmap/internal/db"
	"github.com/kailas-cloud/voxmap/internal/db/memory"
	dbRedis "github.com/kailas-cloud/voxmap/internal/db/redis"
	"github.com/kailas-cloud/voxmap/internal/events"
	"github.com/kailas-cloud/voxmap/internal/metrics"
	budgetrepo "github.com/kailas-cloud/voxmap/internal/repository/budget"
	"github.com/kailas-cloud/voxmap/internal/repository/classcache"
	graphrepo "github.com/kailas-cloud/voxmap/internal/repository/graph"
	insightrepo "github.com/kailas-cloud/voxmap/internal/repository/insight"
	"github.com/kailas-cloud/voxmap/internal/resilience"
	openaiTransport "github.com/kailas-cloud/voxmap/internal/transport/openai"
	classifyuc "github.com/kailas-cloud/voxmap/internal/usecase/classify"
	enrichuc "github.com/kailas-cloud/voxmap/internal/usecase/enrich"
	gateuc "github.com/kailas-cloud/voxmap/internal/usecase/gate"
	graphuc "github.com/kailas-cloud/voxmap/internal/usecase/graph"
	healthuc "github.com/kailas-cloud/voxmap/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/voxmap/internal/usecase/session"
)

// hubBuffer is the per-subscriber event queue length.
const hubBuffer = 64

// app holds the wired services shared by serve and replay.
type app struct {
	store   db.Store
	hub     *events.Hub
	kafka   *events.KafkaPublisher
	graph   *graphuc.Service
	enrich  *enrichuc.Service
	session *sessionuc.Coordinator
	health  *healthuc.Service
}

// Close releases the store and the Kafka writer.
func (a *app) Close(logger *zap.Logger) {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			logger.Warn("Failed to close kafka publisher", zap.Error(err))
		}
	}
	a.store.Close()
}

func newStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "valkey", "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
	case "memory":
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// buildApp is the composition root.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := newStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterPipelineMetrics()
	metrics.RegisterClassificationMetrics()

	a := &app{store: store, hub: events.NewHub(hubBuffer)}

	pubs := []events.Publisher{a.hub}
	if cfg.Events.Kafka.Enabled {
		a.kafka, err = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Kafka.Brokers,
			Topic:        cfg.Events.Kafka.Topic,
			ClientID:     cfg.Events.Kafka.ClientID,
			WriteTimeout: time.Duration(cfg.Events.Kafka.WriteTimeoutMs) * time.Millisecond,
		}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		pubs = append(pubs, a.kafka)
		logger.Info("Kafka event sink enabled",
			zap.Strings("brokers", cfg.Events.Kafka.Brokers),
			zap.String("topic", cfg.Events.Kafka.Topic),
		)
	}
	pub := events.NewMulti(logger, pubs...)

	graphRepo := graphrepo.New(store)
	a.enrich = buildEnricher(cfg, store, pub, logger)
	a.graph = graphuc.New(graphRepo, a.enrich, pub)

	classifier, breaker, remote := buildClassifier(ctx, cfg, store, logger)
	gate := gateuc.New(graphRepo, cfg.Pipeline.MinConfidence)
	a.session = sessionuc.New(classifier, gate, a.graph, a.enrich, pub, cfg.PipelineSettings(), logger)

	// Pass nil interfaces, not typed nil pointers, when no remote is configured.
	var (
		checker  healthuc.ClassifierChecker
		reporter healthuc.BreakerReporter
	)
	if remote != nil {
		checker = remote
		reporter = breaker
	}
	a.health = healthuc.New(store, checker, reporter)

	return a, nil
}

// buildClassifier assembles the adapter: OpenAI -> cache -> budget -> retry -> breaker.
// Without an API key every phrase takes the local fallback.
func buildClassifier(
	ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger,
) (*classifyuc.Service, *resilience.Breaker, *openaiTransport.Classifier) {
	cl := cfg.Classifier
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cl.Retry.MaxAttempts
	retry.BaseDelay = time.Duration(cl.Retry.BaseDelayMs) * time.Millisecond
	retry.MaxDelay = time.Duration(cl.Retry.MaxDelayMs) * time.Millisecond
	retry.JitterFactor = 0.2

	ucCfg := classifyuc.Config{
		Provider:     cl.Provider,
		Timeout:      time.Duration(cl.TimeoutMs) * time.Millisecond,
		MaxBatchSize: cl.MaxBatchSize,
		Retry:        retry,
	}

	if !cl.Enabled() {
		logger.Warn("Classifier API key not set, phrases will use the local fallback")
		return classifyuc.New(nil, nil, nil, nil, ucCfg), nil, nil
	}

	remote := openaiTransport.NewClassifier(&openaiTransport.Config{
		APIKey:   cl.APIKey,
		BaseURL:  cl.BaseURL,
		Model:    cl.Model,
		User:     "voxmap",
		Provider: cl.Provider,
		Logger:   logger,
	})

	breakerCfg := resilience.DefaultBreakerConfig(cl.Provider)
	breakerCfg.ConsecutiveFailures = cl.Breaker.ConsecutiveFailures
	breakerCfg.OpenTimeout = time.Duration(cl.Breaker.OpenTimeoutSec) * time.Second
	breaker := resilience.NewBreaker(breakerCfg, logger, func(s gobreaker.State) {
		metrics.BreakerState.WithLabelValues(cl.Provider).Set(resilience.StateValue(s))
	})

	var cache classifyuc.Cache
	if cfg.Cache.Enabled != nil && *cfg.Cache.Enabled {
		cache = classcache.New(store, cfg.CacheSettings(), metrics.ClassificationCacheTotal, logger)
	}

	// A typed nil *BudgetTracker inside BudgetChecker would not compare equal to nil.
	var budget classifyuc.BudgetChecker
	if cl.Budget.DailyTokenLimit > 0 || cl.Budget.MonthlyTokenLimit > 0 {
		action := classifyuc.BudgetActionWarn
		if cl.Budget.Action == string(classifyuc.BudgetActionReject) {
			action = classifyuc.BudgetActionReject
		}
		tracker := classifyuc.NewBudgetTracker(
			cl.Provider, cl.Budget.DailyTokenLimit, cl.Budget.MonthlyTokenLimit, action, logger,
		)
		tracker.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
		budget = tracker
	}

	logger.Info("Remote classifier configured",
		zap.String("provider", cl.Provider),
		zap.String("model", cl.Model),
		zap.Bool("cache", cache != nil),
		zap.Bool("budget", budget != nil),
	)
	return classifyuc.New(remote, cache, budget, breaker, ucCfg), breaker, remote
}

// buildEnricher returns an enricher that is a no-op unless research is enabled.
func buildEnricher(cfg config.Config, store db.Store, pub events.Publisher, logger *zap.Logger) *enrichuc.Service {
	en := cfg.Enrichment
	enCfg := enrichuc.Config{
		Timeout:  time.Duration(en.TimeoutSec) * time.Second,
		ClaimTTL: time.Duration(en.ClaimTTLSec) * time.Second,
	}

	var researcher enrichuc.Researcher
	if en.Enabled {
		researcher = openaiTransport.NewResearcher(&openaiTransport.Config{
			APIKey:   en.APIKey,
			BaseURL:  en.BaseURL,
			Model:    en.Model,
			User:     "voxmap",
			Provider: cfg.Classifier.Provider,
			Logger:   logger,
		})
		logger.Info("Topic research enabled", zap.String("model", en.Model))
	}

	return enrichuc.New(researcher, insightrepo.New(store), pub, enCfg)
}

// defaultConfig is used by replay when no config file is found.
func defaultConfig() config.Config {
	cfg := config.Config{}
	cfg.HTTP.Port = 8080
	cfg.Database.Driver = "memory"
	cfg.ApplyDefaults()
	return cfg
}
