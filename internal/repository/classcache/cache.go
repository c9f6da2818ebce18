// Package classcache caches classification results in front of the remote classifier.
// Entries are found by exact normalized hash first, then by token-set similarity
// over a bounded window of recent entries for the same main topic.
package classcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
)

var cacheKeyPrefix = domain.KeyPrefix + "class_cache:"

// MatchType tells how a cached entry was found.
type MatchType string

// Match types.
const (
	MatchExact   MatchType = "exact"
	MatchSimilar MatchType = "similar"
)

// Match is a cache hit.
type Match struct {
	Classification domain.Classification
	Type           MatchType
	Similarity     float64
	Hits           int64
}

// store is the consumer interface for the classification cache (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Cache stores classification results with a sliding TTL.
type Cache struct {
	store      store
	cfg        domain.CacheConfig
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a classification cache.
// cacheTotal is a counter vec with label "result" ("exact"/"similar"/"miss"), passed explicitly.
func New(s store, cfg domain.CacheConfig, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	def := domain.DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, cfg: cfg, cacheTotal: cacheTotal, logger: logger}
}

// Lookup returns a cached classification for (text, mainTopic).
// Store errors degrade to a miss.
func (c *Cache) Lookup(ctx context.Context, text, mainTopic string) (Match, bool) {
	norm := textnorm.Normalize(text)
	if norm == "" {
		c.inc("miss")
		return Match{}, false
	}
	normMain := textnorm.Normalize(mainTopic)

	key := entryKey(norm, normMain)
	h, err := c.store.HGetAll(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read cached classification", zap.String("key", key), zap.Error(err))
	} else if len(h) > 0 {
		if m, ok := c.hit(ctx, key, h, MatchExact, 1); ok {
			c.inc(string(MatchExact))
			return m, true
		}
	}

	if m, ok := c.lookupSimilar(ctx, norm, normMain); ok {
		c.inc(string(MatchSimilar))
		return m, true
	}

	c.inc("miss")
	return Match{}, false
}

func (c *Cache) lookupSimilar(ctx context.Context, norm, normMain string) (Match, bool) {
	recent, err := c.store.LRange(ctx, recentKey(normMain), 0, int64(c.cfg.RecentWindow-1))
	if err != nil {
		c.logger.Warn("Failed to read recent cache window", zap.Error(err))
		return Match{}, false
	}
	if len(recent) == 0 {
		return Match{}, false
	}

	hashes, err := c.store.HGetAllMulti(ctx, recent)
	if err != nil {
		c.logger.Warn("Failed to read recent cache entries", zap.Error(err))
		return Match{}, false
	}

	bestIdx := -1
	bestScore := 0.0
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		score := textnorm.Similarity(norm, h["norm_text"])
		if score > c.cfg.SimilarityThreshold && score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return Match{}, false
	}
	return c.hit(ctx, recent[bestIdx], hashes[bestIdx], MatchSimilar, bestScore)
}

// hit bumps the counter and slides the TTL of the matched entry.
func (c *Cache) hit(ctx context.Context, key string, h map[string]string, mt MatchType, score float64) (Match, bool) {
	cl, err := classificationFromHash(h)
	if err != nil {
		c.logger.Warn("Failed to parse cached classification", zap.String("key", key), zap.Error(err))
		return Match{}, false
	}

	hits, err := c.store.IncrBy(ctx, hitsKey(key), 1)
	if err != nil {
		c.logger.Warn("Failed to count cache hit", zap.String("key", key), zap.Error(err))
	}
	for _, k := range []string{key, hitsKey(key)} {
		if err := c.store.Expire(ctx, k, c.cfg.TTL, false); err != nil {
			c.logger.Warn("Failed to extend cache TTL", zap.String("key", k), zap.Error(err))
		}
	}

	return Match{Classification: cl, Type: mt, Similarity: score, Hits: hits}, true
}

// Put stores a classification for (text, mainTopic) and records it in the recent window.
func (c *Cache) Put(ctx context.Context, text, mainTopic string, cl domain.Classification) error {
	norm := textnorm.Normalize(text)
	if norm == "" {
		return nil
	}
	normMain := textnorm.Normalize(mainTopic)
	key := entryKey(norm, normMain)

	fields := classificationToHash(cl)
	fields["norm_text"] = norm
	fields["main_topic"] = normMain
	fields["created_at"] = strconv.FormatInt(time.Now().UnixMilli(), 10)

	if err := c.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	if err := c.store.Expire(ctx, key, c.cfg.TTL, false); err != nil {
		return fmt.Errorf("cache ttl %s: %w", key, err)
	}

	rk := recentKey(normMain)
	if err := c.store.LPush(ctx, rk, key); err != nil {
		return fmt.Errorf("cache recent push: %w", err)
	}
	if err := c.store.LTrim(ctx, rk, 0, int64(c.cfg.RecentWindow-1)); err != nil {
		return fmt.Errorf("cache recent trim: %w", err)
	}
	if err := c.store.Expire(ctx, rk, c.cfg.TTL, false); err != nil {
		return fmt.Errorf("cache recent ttl: %w", err)
	}
	return nil
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func entryKey(normText, normMain string) string {
	h := sha256.Sum256([]byte(normText + "\x00" + normMain))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func recentKey(normMain string) string {
	h := sha256.Sum256([]byte(normMain))
	return cacheKeyPrefix + "recent:" + hex.EncodeToString(h[:8])
}

func hitsKey(entry string) string { return entry + ":hits" }

func classificationToHash(cl domain.Classification) map[string]string {
	return map[string]string{
		"topic":         cl.Topic,
		"speaker":       cl.Speaker,
		"confidence":    strconv.FormatFloat(cl.Confidence, 'g', -1, 64),
		"original_text": cl.OriginalText,
	}
}

func classificationFromHash(h map[string]string) (domain.Classification, error) {
	conf, err := strconv.ParseFloat(h["confidence"], 64)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("invalid confidence: %w", err)
	}
	if h["topic"] == "" {
		return domain.Classification{}, fmt.Errorf("empty topic")
	}
	return domain.Classification{
		Topic:        h["topic"],
		Speaker:      h["speaker"],
		Confidence:   conf,
		OriginalText: h["original_text"],
	}, nil
}
