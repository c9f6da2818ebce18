// Package voxmap turns a live transcript into a mind map.
//
// A Client owns one capture session at a time. Transcript fragments pushed
// with Push are segmented into phrases, classified into topics and added to
// the session's map as nodes under the main topic.
package voxmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/db"
	"github.com/kailas-cloud/voxmap/internal/db/memory"
	dbRedis "github.com/kailas-cloud/voxmap/internal/db/redis"
	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/events"
	"github.com/kailas-cloud/voxmap/internal/repository/classcache"
	graphrepo "github.com/kailas-cloud/voxmap/internal/repository/graph"
	insightrepo "github.com/kailas-cloud/voxmap/internal/repository/insight"
	"github.com/kailas-cloud/voxmap/internal/resilience"
	openaiTransport "github.com/kailas-cloud/voxmap/internal/transport/openai"
	classifyuc "github.com/kailas-cloud/voxmap/internal/usecase/classify"
	enrichuc "github.com/kailas-cloud/voxmap/internal/usecase/enrich"
	gateuc "github.com/kailas-cloud/voxmap/internal/usecase/gate"
	graphuc "github.com/kailas-cloud/voxmap/internal/usecase/graph"
	sessionuc "github.com/kailas-cloud/voxmap/internal/usecase/session"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultModel            = "gpt-4o-mini"
	subscriberBuffer        = 64
)

// Client is the voxmap entry point.
type Client struct {
	store     db.Store
	hub       *events.Hub
	graph     *graphuc.Service
	enrich    *enrichuc.Service
	session   *sessionuc.Coordinator
	aiEnabled bool
}

// New creates a Client and connects to the store.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("voxmap: store required (use WithValkey, WithRedis or WithMemory)")
	}
	if cfg.research && cfg.apiKey == "" {
		return nil, errors.New("voxmap: WithResearch requires WithOpenAI")
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.model == "" {
		cfg.model = defaultModel
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("voxmap: database not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("voxmap: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("voxmap: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	hub := events.NewHub(subscriberBuffer)
	graphRepo := graphrepo.New(store)

	var researcher enrichuc.Researcher
	if cfg.research {
		researcher = openaiTransport.NewResearcher(cfg.openAIConfig())
	}
	enrich := enrichuc.New(researcher, insightrepo.New(store), hub, enrichuc.Config{})
	graph := graphuc.New(graphRepo, enrich, hub)

	classifier := classifyuc.New(nil, nil, nil, nil, classifyuc.Config{})
	if cfg.apiKey != "" {
		breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig("openai"), cfg.logger, nil)
		cache := classcache.New(store, domain.DefaultCacheConfig(), nil, cfg.logger)
		classifier = classifyuc.New(
			openaiTransport.NewClassifier(cfg.openAIConfig()), cache, nil, breaker,
			classifyuc.Config{Retry: resilience.DefaultRetryConfig()},
		)
	}

	pipeline := cfg.pipeline.toDomain()
	gate := gateuc.New(graphRepo, pipeline.MinConfidence)
	session := sessionuc.New(classifier, gate, graph, enrich, hub, pipeline, cfg.logger)

	return &Client{
		store:     store,
		hub:       hub,
		graph:     graph,
		enrich:    enrich,
		session:   session,
		aiEnabled: cfg.apiKey != "",
	}
}

func (c *clientConfig) openAIConfig() *openaiTransport.Config {
	return &openaiTransport.Config{
		APIKey:   c.apiKey,
		BaseURL:  c.baseURL,
		Model:    c.model,
		User:     "voxmap",
		Provider: "openai",
		Logger:   c.logger,
	}
}

// toDomain fills zero fields with the pipeline defaults.
func (p Pipeline) toDomain() domain.PipelineConfig {
	d := domain.DefaultPipelineConfig()
	if p.HardCapWords > 0 {
		d.HardCapWords = p.HardCapWords
	}
	if p.SoftMinWords > 0 {
		d.SoftMinWords = p.SoftMinWords
	}
	if p.InterimFlushWords > 0 {
		d.InterimFlushWords = p.InterimFlushWords
	}
	if p.Debounce > 0 {
		d.Debounce = p.Debounce
	}
	if p.MaxBatchSize > 0 {
		d.MaxBatchSize = p.MaxBatchSize
	}
	if p.MinConfidence > 0 {
		d.MinConfidence = p.MinConfidence
	}
	if p.ReadyTimeout > 0 {
		d.ReadyTimeout = p.ReadyTimeout
	}
	return d
}

// Close stops the live session, if any, and releases all resources.
func (c *Client) Close() error {
	return c.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. Phrases or research that could not finish
// before ctx is done are reported in the returned error; the store is released
// either way.
func (c *Client) Shutdown(ctx context.Context) error {
	var errs []error
	if _, err := c.session.Stop(ctx); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		errs = append(errs, err)
	}
	if err := c.enrich.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for research: %w", err))
	}
	c.store.Close()
	return errors.Join(errs...)
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// PromptForTopic opens a session that buffers fragments until Start names the main topic.
func (c *Client) PromptForTopic(ctx context.Context) (Session, error) {
	s, err := c.session.PromptForTopic(ctx, c.aiEnabled)
	if err != nil {
		return Session{}, fmt.Errorf("prompt for topic: %w", err)
	}
	return sessionFromDomain(s), nil
}

// Start creates a map for mainTopic and activates the session.
func (c *Client) Start(ctx context.Context, mainTopic string) (Session, error) {
	s, err := c.session.Start(ctx, mainTopic, c.aiEnabled)
	if err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	return sessionFromDomain(s), nil
}

// Push feeds one transcript fragment. Interim fragments may be repeated with
// growing text; final fragments are appended once.
func (c *Client) Push(ctx context.Context, text string, final bool) error {
	var err error
	if final {
		err = c.session.OnFinalFragment(ctx, text)
	} else {
		err = c.session.OnInterimFragment(ctx, text)
	}
	if err != nil {
		return fmt.Errorf("push fragment: %w", err)
	}
	return nil
}

// Stop drains the session and returns its final snapshot.
func (c *Client) Stop(ctx context.Context) (Session, error) {
	s, err := c.session.Stop(ctx)
	if err != nil {
		return sessionFromDomain(s), fmt.Errorf("stop session: %w", err)
	}
	return sessionFromDomain(s), nil
}

// Session returns the current session, idle when there is none.
func (c *Client) Session() Session {
	return sessionFromDomain(c.session.Current())
}

// Wait blocks until background research has finished or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	if err := c.enrich.Wait(ctx); err != nil {
		return fmt.Errorf("wait research: %w", err)
	}
	return nil
}

// Map returns a map by ID.
func (c *Client) Map(ctx context.Context, mapID string) (Map, error) {
	m, err := c.graph.GetMap(ctx, mapID)
	if err != nil {
		return Map{}, fmt.Errorf("get map: %w", err)
	}
	return mapFromDomain(m), nil
}

// Nodes lists every node of a map.
func (c *Client) Nodes(ctx context.Context, mapID string) ([]Node, error) {
	nodes, err := c.graph.ListNodes(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodesFromDomain(nodes), nil
}

// Edges lists every edge of a map.
func (c *Client) Edges(ctx context.Context, mapID string) ([]Edge, error) {
	edges, err := c.graph.ListEdges(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edgesFromDomain(edges), nil
}

// Children lists the direct children of a node in sibling order.
func (c *Client) Children(ctx context.Context, nodeID string) ([]Node, error) {
	nodes, err := c.graph.ListChildren(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return nodesFromDomain(nodes), nil
}

// Expand adds labels as children of parentID. Each label succeeds or fails on its own.
func (c *Client) Expand(ctx context.Context, parentID string, labels ...string) ([]ChildResult, error) {
	parent, err := c.graph.GetNode(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	m, err := c.graph.GetMap(ctx, parent.MapID())
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	children := make([]graphuc.Child, len(labels))
	for i, l := range labels {
		children[i] = graphuc.Child{Label: l}
	}
	return resultsFromDomain(c.graph.AddChildren(ctx, parentID, children, m.Title, "")), nil
}

// Insight returns the research for a node. ok is false while it is pending.
func (c *Client) Insight(ctx context.Context, nodeID string) (in Insight, ok bool, err error) {
	in, ok, err = c.enrich.Get(ctx, nodeID)
	if err != nil {
		return Insight{}, false, fmt.Errorf("get insight: %w", err)
	}
	return in, ok, nil
}

// Subscribe streams the events of one map, or of every map for "".
// Call the returned function to unsubscribe. Slow readers miss events.
func (c *Client) Subscribe(mapID string) (<-chan Event, func()) {
	return c.hub.Subscribe(mapID)
}
