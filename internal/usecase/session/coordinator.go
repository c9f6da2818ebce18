// Package session runs live capture sessions: it owns the session state and
// feeds speech fragments through segmentation, batching, classification, the
// gate and the graph mutator.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	dombatch "github.com/kailas-cloud/voxmap/internal/domain/batch"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	domsession "github.com/kailas-cloud/voxmap/internal/domain/session"
	"github.com/kailas-cloud/voxmap/internal/events"
	"github.com/kailas-cloud/voxmap/internal/logger"
	"github.com/kailas-cloud/voxmap/internal/metrics"
	"github.com/kailas-cloud/voxmap/internal/usecase/batch"
	"github.com/kailas-cloud/voxmap/internal/usecase/classify"
	"github.com/kailas-cloud/voxmap/internal/usecase/gate"
	"github.com/kailas-cloud/voxmap/internal/usecase/graph"
	"github.com/kailas-cloud/voxmap/internal/usecase/segment"
)

var tracer = otel.Tracer("github.com/kailas-cloud/voxmap/internal/usecase/session")

// Coordinator owns at most one live session at a time.
type Coordinator struct {
	classifier Classifier
	gate       Gate
	graph      Graph
	enricher   Enricher
	events     events.Publisher
	cfg        domain.PipelineConfig
	logger     *zap.Logger
	newID      func() string

	mu       sync.Mutex
	current  *live
	starting bool
}

// live is the per-session pipeline. A new one is built for every session so
// nothing leaks from a previous capture.
type live struct {
	sess    *domsession.Session
	buffer  *segment.Buffer
	sched   *batch.Scheduler
	logger  *zap.Logger
	stopped chan struct{}
}

// New creates a coordinator. Zero pipeline settings take the defaults;
// enricher and pub may be nil.
func New(classifier Classifier, g Gate, gr Graph, enricher Enricher, pub events.Publisher, cfg domain.PipelineConfig, logger *zap.Logger) *Coordinator {
	cfg = withDefaults(cfg)
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		classifier: classifier,
		gate:       g,
		graph:      gr,
		enricher:   enricher,
		events:     pub,
		cfg:        cfg,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

func withDefaults(cfg domain.PipelineConfig) domain.PipelineConfig {
	def := domain.DefaultPipelineConfig()
	if cfg.HardCapWords <= 0 {
		cfg.HardCapWords = def.HardCapWords
	}
	if cfg.SoftMinWords <= 0 {
		cfg.SoftMinWords = def.SoftMinWords
	}
	if cfg.InterimFlushWords <= 0 {
		cfg.InterimFlushWords = def.InterimFlushWords
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = def.ReadyTimeout
	}
	return cfg
}

func (c *Coordinator) newLive(aiEnabled bool) *live {
	sess := domsession.New(c.newID(), aiEnabled)
	l := &live{
		sess:    sess,
		buffer:  segment.NewBuffer(c.cfg),
		logger:  c.logger.With(logger.SessionID(sess.ID())),
		stopped: make(chan struct{}),
	}
	l.sched = batch.New(func(ctx context.Context, phrases []domain.Phrase) {
		c.handle(ctx, l, phrases)
	}, c.cfg.Debounce, c.cfg.MaxBatchSize, l.logger)
	return l
}

// PromptForTopic opens a session that collects fragments while the main
// topic is being chosen. Phrases wait for Start before they are applied.
func (c *Coordinator) PromptForTopic(_ context.Context, aiEnabled bool) (domsession.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil || c.starting {
		return domsession.Snapshot{}, fmt.Errorf("prompt: %w", domain.ErrSessionActive)
	}
	c.current = c.newLive(aiEnabled)
	c.current.logger.Info("Awaiting main topic")
	return c.current.sess.Snapshot(), nil
}

// Start creates the map and root for mainTopic and activates the session,
// opening one first when no prompt is pending. The map is written without
// holding the coordinator lock, so a prompted session keeps taking fragments
// meanwhile; a second Start in that window fails with ErrSessionActive.
func (c *Coordinator) Start(ctx context.Context, mainTopic string, aiEnabled bool) (domsession.Snapshot, error) {
	c.mu.Lock()
	l := c.current
	if c.starting || (l != nil && l.sess.State() != domsession.StateAwaitingTopic) {
		c.mu.Unlock()
		return domsession.Snapshot{}, fmt.Errorf("start: %w", domain.ErrSessionActive)
	}
	c.starting = true
	c.mu.Unlock()

	m, root, err := c.graph.CreateMap(ctx, mainTopic)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		// A pending prompt stays open so the topic can be submitted again.
		return domsession.Snapshot{}, fmt.Errorf("start session: %w", err)
	}
	if l == nil {
		l = c.newLive(aiEnabled)
	} else if c.current != l {
		c.mu.Unlock()
		c.logger.Warn("Prompted session stopped while its map was created", logger.MapID(m.ID))
		return domsession.Snapshot{}, fmt.Errorf("start: %w", domain.ErrNoActiveSession)
	}
	l.sess.SetAIEnabled(aiEnabled)
	if err := l.sess.Activate(domsession.Target{MapID: m.ID, RootID: root.ID(), MainTopic: root.Label()}); err != nil {
		c.mu.Unlock()
		return domsession.Snapshot{}, fmt.Errorf("start session: %w", err)
	}
	c.current = l
	snap := l.sess.Snapshot()
	c.mu.Unlock()
	metrics.ActiveSessions.Inc()

	log := l.logger.With(logger.MapID(m.ID))
	if err := c.events.Publish(ctx, events.SessionChanged(events.TypeSessionStarted, snap.ID, m.ID, sessionPayload(snap))); err != nil {
		log.Warn("Failed to publish session event", zap.Error(err))
	}
	log.Info("Session started", zap.String("main_topic", root.Label()), zap.Bool("ai_enabled", aiEnabled))
	return snap, nil
}

// OnFinalFragment feeds a finalized recognizer fragment.
func (c *Coordinator) OnFinalFragment(ctx context.Context, text string) error {
	l, err := c.live()
	if err != nil {
		return err
	}
	if phrase, trigger := l.buffer.AppendFinal(text); trigger != segment.TriggerNone {
		c.emit(l, phrase, trigger)
	}
	return nil
}

// OnInterimFragment feeds a partial recognizer hypothesis.
func (c *Coordinator) OnInterimFragment(ctx context.Context, text string) error {
	l, err := c.live()
	if err != nil {
		return err
	}
	if phrase, trigger := l.buffer.ObserveInterim(text); trigger != segment.TriggerNone {
		c.emit(l, phrase, trigger)
	}
	return nil
}

func (c *Coordinator) live() (*live, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, domain.ErrNoActiveSession
	}
	return c.current, nil
}

func (c *Coordinator) emit(l *live, phrase string, trigger segment.Trigger) {
	p, ok := l.sched.Enqueue(phrase)
	if !ok {
		l.logger.Warn("Phrase arrived after stop, dropped", zap.String("phrase", phrase))
		return
	}
	metrics.PhrasesTotal.WithLabelValues(string(trigger)).Inc()
	l.logger.Debug("Phrase ready",
		zap.Int("index", p.Index),
		zap.String("trigger", string(trigger)),
	)
}

// Stop drains the session and returns to idle. For an active session the
// buffered words and the pending batch are handled before Stop returns; a
// session still waiting for its topic discards them.
func (c *Coordinator) Stop(ctx context.Context) (domsession.Snapshot, error) {
	c.mu.Lock()
	l := c.current
	c.current = nil
	c.mu.Unlock()

	if l == nil {
		return domsession.Snapshot{}, fmt.Errorf("stop: %w", domain.ErrNoActiveSession)
	}

	active := l.sess.State() == domsession.StateActive
	if phrase, ok := l.buffer.Drain(); ok {
		if active {
			c.emit(l, phrase, segment.TriggerDrain)
		} else {
			l.logger.Warn("Session stopped before a topic was set, discarding words", zap.String("pending", phrase))
		}
	}
	close(l.stopped)

	drainErr := l.sched.Close(logger.ContextWithLogger(ctx, l.logger))
	l.sess.Close()
	snap := l.sess.Snapshot()
	log := l.logger.With(logger.MapID(snap.Target.MapID))

	if active {
		metrics.ActiveSessions.Dec()
		if err := c.events.Publish(ctx, events.SessionChanged(events.TypeSessionStopped, snap.ID, snap.Target.MapID, sessionPayload(snap))); err != nil {
			log.Warn("Failed to publish session event", zap.Error(err))
		}
	}
	if drainErr != nil {
		log.Error("Session drain incomplete", zap.Error(drainErr))
		return snap, fmt.Errorf("drain session: %w", drainErr)
	}
	log.Info("Session stopped", zap.Int("speakers", len(snap.Speakers)))
	return snap, nil
}

// Current returns the live session, or an idle snapshot when there is none.
func (c *Coordinator) Current() domsession.Snapshot {
	c.mu.Lock()
	l := c.current
	c.mu.Unlock()
	if l == nil {
		return domsession.Snapshot{State: domsession.StateIdle}
	}
	return l.sess.Snapshot()
}

// waitReady blocks until the session has a target. It gives up when the
// session stops without one or after the readiness timeout.
func (c *Coordinator) waitReady(ctx context.Context, l *live) bool {
	select {
	case <-l.sess.Ready():
		return true
	default:
	}

	timer := time.NewTimer(c.cfg.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-l.sess.Ready():
		return true
	case <-l.stopped:
	case <-timer.C:
	case <-ctx.Done():
	}
	// Activation may have raced the stop.
	select {
	case <-l.sess.Ready():
		return true
	default:
		return false
	}
}

// handle is the batch handler of one session.
func (c *Coordinator) handle(ctx context.Context, l *live, phrases []domain.Phrase) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "session.batch", trace.WithAttributes(
		attribute.String("session_id", l.sess.ID()),
		attribute.Int("phrases", len(phrases)),
	))
	defer span.End()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	log := logger.FromContext(ctx)
	if !c.waitReady(ctx, l) {
		log.Warn("Session has no target, dropping batch", zap.Int("phrases", len(phrases)))
		span.SetStatus(codes.Error, "no target")
		return
	}

	target, _ := l.sess.Target()
	ctx = logger.WithFields(ctx, logger.MapID(target.MapID))
	log = logger.FromContext(ctx)
	ctx, usage := domain.NewContextWithUsage(ctx)

	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p.Text
	}
	results := c.classifier.Classify(ctx, classify.Request{
		Phrases:   texts,
		MainTopic: target.MainTopic,
		LocalOnly: !l.sess.AIEnabled(),
	})

	created := 0
	for i, r := range results {
		if l.sess.AddSpeaker(r.Speaker) {
			log.Info("New speaker", zap.String("speaker", r.Speaker))
		}

		d := c.gate.Evaluate(ctx, target.MapID, r)
		switch d.Verdict {
		case gate.VerdictAccept:
			res := c.graph.AddNode(ctx, graph.AddRequest{
				ParentID:  target.RootID,
				Label:     r.Topic,
				Content:   r.OriginalText,
				MainTopic: target.MainTopic,
				SessionID: l.sess.ID(),
			})
			switch res.Status() {
			case dombatch.StatusCreated:
				created++
			case dombatch.StatusDuplicate:
				c.ensureInsight(ctx, target, res.NodeID(), res.Label())
			case dombatch.StatusError:
				span.RecordError(res.Err())
				log.Warn("Failed to add node, skipping phrase",
					zap.Int("index", phrases[i].Index),
					zap.String("topic", r.Topic),
					zap.Error(res.Err()),
				)
			}
		case gate.VerdictDuplicate:
			c.ensureInsight(ctx, target, d.ExistingNodeID, r.Topic)
		}
	}

	span.SetAttributes(attribute.Int("nodes_created", created))
	log.Debug("Batch processed",
		zap.Int("phrases", len(phrases)),
		zap.Int("nodes_created", created),
		zap.Int("remote_calls", usage.RemoteCalls),
		zap.Int("cache_hits", usage.CacheHits),
		zap.Int("fallbacks", usage.Fallbacks),
		zap.Int("tokens", usage.TotalTokens),
	)
}

// ensureInsight re-requests research for an already represented topic. The
// enricher skips nodes that already have one.
func (c *Coordinator) ensureInsight(ctx context.Context, t domsession.Target, nodeID, topic string) {
	if c.enricher == nil || nodeID == "" {
		return
	}
	c.enricher.Enqueue(ctx, insight.Request{
		NodeID:    nodeID,
		MapID:     t.MapID,
		Topic:     topic,
		MainTopic: t.MainTopic,
	})
}

func sessionPayload(s domsession.Snapshot) events.SessionPayload {
	return events.SessionPayload{
		RootID:    s.Target.RootID,
		MainTopic: s.Target.MainTopic,
		Speakers:  s.Speakers,
		AIEnabled: s.AIEnabled,
	}
}
