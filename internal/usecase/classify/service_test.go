package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/db/memory"
	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
	"github.com/kailas-cloud/voxmap/internal/metrics"
	"github.com/kailas-cloud/voxmap/internal/repository/classcache"
	"github.com/kailas-cloud/voxmap/internal/resilience"
)

func TestMain(m *testing.M) {
	metrics.RegisterClassificationMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockRemote struct {
	mu      sync.Mutex
	batches [][]string
	fn      func(call int, phrases []string) (domain.ClassifyResponse, error)
}

func (m *mockRemote) Classify(ctx context.Context, phrases []string, _ string) (domain.ClassifyResponse, error) {
	m.mu.Lock()
	call := len(m.batches)
	m.batches = append(m.batches, phrases)
	m.mu.Unlock()
	if m.fn == nil {
		return echo(phrases), nil
	}
	return m.fn(call, phrases)
}

func (m *mockRemote) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// echo classifies every phrase as its upper-cased text.
func echo(phrases []string) domain.ClassifyResponse {
	res := make(map[int]domain.Classification, len(phrases))
	for i, p := range phrases {
		res[i] = domain.Classification{Topic: strings.ToUpper(p), Confidence: 0.9, Speaker: "Speaker 1"}
	}
	return domain.ClassifyResponse{Results: res, TotalTokens: 10 * len(phrases)}
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func newTestCache() *classcache.Cache {
	return classcache.New(memory.NewStore(), domain.DefaultCacheConfig(), nil, zap.NewNop())
}

func newTestService(remote domain.RemoteClassifier, cache Cache) *Service {
	return New(remote, cache, nil, nil, Config{Timeout: time.Second, Retry: fastRetry()})
}

// --- Tests ---

func TestClassify_RemoteAligned(t *testing.T) {
	remote := &mockRemote{}
	svc := newTestService(remote, nil)

	phrases := []string{"neural networks", "gradient descent", "backprop"}
	got := svc.Classify(context.Background(), Request{Phrases: phrases})

	if len(got) != len(phrases) {
		t.Fatalf("expected %d results, got %d", len(phrases), len(got))
	}
	for i, p := range phrases {
		if got[i].Topic != strings.ToUpper(p) {
			t.Errorf("result %d: expected %q, got %q", i, strings.ToUpper(p), got[i].Topic)
		}
		if got[i].OriginalText != p {
			t.Errorf("result %d: original text %q", i, got[i].OriginalText)
		}
	}
	if remote.calls() != 1 {
		t.Errorf("expected one remote call, got %d", remote.calls())
	}
}

func TestClassify_FallbackOnFailure(t *testing.T) {
	remote := &mockRemote{fn: func(int, []string) (domain.ClassifyResponse, error) {
		return domain.ClassifyResponse{}, domain.ErrClassifierUnavailable
	}}
	svc := newTestService(remote, nil)

	phrases := []string{
		"Convolutional neural networks for image recognition",
		"Um, so the loss function!",
		"",
	}
	ctx, usage := domain.NewContextWithUsage(context.Background())
	got := svc.Classify(ctx, Request{Phrases: phrases, MainTopic: "deep learning"})

	if len(got) != len(phrases) {
		t.Fatalf("expected %d results, got %d", len(phrases), len(got))
	}
	for i, p := range phrases {
		if !strings.HasPrefix(textnorm.Normalize(p), got[i].Topic) {
			t.Errorf("result %d: %q is not a prefix of %q", i, got[i].Topic, p)
		}
		if got[i].Confidence != FallbackConfidence || got[i].Speaker != "" {
			t.Errorf("result %d: unexpected fallback %+v", i, got[i])
		}
		if len([]rune(got[i].Topic)) > FallbackTopicLen {
			t.Errorf("result %d: topic too long %q", i, got[i].Topic)
		}
	}
	if remote.calls() != resilience.DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", resilience.DefaultMaxAttempts, remote.calls())
	}
	if usage.Fallbacks != 3 {
		t.Errorf("expected 3 fallbacks, got %d", usage.Fallbacks)
	}
}

func TestClassify_MalformedNotRetried(t *testing.T) {
	remote := &mockRemote{fn: func(int, []string) (domain.ClassifyResponse, error) {
		return domain.ClassifyResponse{}, fmt.Errorf("decode: %w", domain.ErrMalformedResponse)
	}}
	svc := newTestService(remote, nil)

	got := svc.Classify(context.Background(), Request{Phrases: []string{"attention mechanism"}})
	if got[0].Topic != "attention mechanism" {
		t.Errorf("expected fallback topic, got %q", got[0].Topic)
	}
	if remote.calls() != 1 {
		t.Errorf("malformed responses must not be retried, got %d calls", remote.calls())
	}
}

func TestClassify_PartialResultsFallBackPerPhrase(t *testing.T) {
	remote := &mockRemote{fn: func(_ int, phrases []string) (domain.ClassifyResponse, error) {
		resp := echo(phrases)
		delete(resp.Results, 1)
		return resp, nil
	}}
	svc := newTestService(remote, nil)

	got := svc.Classify(context.Background(), Request{Phrases: []string{"transformers", "self attention", "layer norm"}})
	if got[0].Topic != "TRANSFORMERS" || got[2].Topic != "LAYER NORM" {
		t.Errorf("remote entries lost: %+v", got)
	}
	if got[1].Topic != "self attention" || got[1].Confidence != FallbackConfidence {
		t.Errorf("expected fallback for missing entry, got %+v", got[1])
	}
}

func TestClassify_Chunked(t *testing.T) {
	remote := &mockRemote{}
	svc := New(remote, nil, nil, nil, Config{MaxBatchSize: 2, Retry: fastRetry()})

	phrases := []string{"a1", "b2", "c3", "d4", "e5"}
	got := svc.Classify(context.Background(), Request{Phrases: phrases})

	if remote.calls() != 3 {
		t.Fatalf("expected 3 chunks, got %d", remote.calls())
	}
	for i, p := range phrases {
		if got[i].Topic != strings.ToUpper(p) {
			t.Errorf("result %d misaligned: %q", i, got[i].Topic)
		}
	}
}

func TestClassify_OneChunkFails(t *testing.T) {
	remote := &mockRemote{fn: func(_ int, phrases []string) (domain.ClassifyResponse, error) {
		if phrases[0] == "c3" {
			return domain.ClassifyResponse{}, fmt.Errorf("bad json: %w", domain.ErrMalformedResponse)
		}
		return echo(phrases), nil
	}}
	svc := New(remote, nil, nil, nil, Config{MaxBatchSize: 2, Retry: fastRetry()})

	got := svc.Classify(context.Background(), Request{Phrases: []string{"a1", "b2", "c3", "d4", "e5"}})
	if got[4].Topic != "E5" {
		t.Errorf("chunk after a failed chunk must still be classified, got %q", got[4].Topic)
	}
	if got[2].Topic != "c3" || got[3].Topic != "d4" {
		t.Errorf("failed chunk must fall back, got %q %q", got[2].Topic, got[3].Topic)
	}
}

func TestClassify_CacheShortCircuits(t *testing.T) {
	cache := newTestCache()
	ctx := context.Background()
	cached := domain.Classification{Topic: "Gradient Descent", Confidence: 0.95}
	if err := cache.Put(ctx, "gradient descent converges", "ml", cached); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remote := &mockRemote{}
	svc := newTestService(remote, cache)

	ctx, usage := domain.NewContextWithUsage(ctx)
	got := svc.Classify(ctx, Request{
		Phrases:   []string{"Gradient descent converges.", "new idea here"},
		MainTopic: "ML",
	})

	if got[0].Topic != "Gradient Descent" || got[0].Confidence != 0.95 {
		t.Errorf("expected cached result, got %+v", got[0])
	}
	if got[0].OriginalText != "Gradient descent converges." {
		t.Errorf("original text must be the phrase, got %q", got[0].OriginalText)
	}
	if remote.calls() != 1 || len(remote.batches[0]) != 1 || remote.batches[0][0] != "new idea here" {
		t.Errorf("only the miss should reach the remote: %v", remote.batches)
	}
	if usage.CacheHits != 1 || usage.RemoteCalls != 1 {
		t.Errorf("unexpected usage %+v", usage)
	}

	m, ok := cache.Lookup(context.Background(), "gradient descent converges", "ml")
	if !ok || m.Hits < 2 {
		t.Errorf("hit must be counted, got %+v", m)
	}
}

func TestClassify_RemoteResultsAreCached(t *testing.T) {
	cache := newTestCache()
	remote := &mockRemote{}
	svc := newTestService(remote, cache)

	req := Request{Phrases: []string{"reinforcement learning"}, MainTopic: "AI"}
	svc.Classify(context.Background(), req)
	got := svc.Classify(context.Background(), req)

	if remote.calls() != 1 {
		t.Errorf("second classification should be a cache hit, got %d remote calls", remote.calls())
	}
	if got[0].Topic != "REINFORCEMENT LEARNING" {
		t.Errorf("unexpected topic %q", got[0].Topic)
	}
}

func TestClassify_LocalOnly(t *testing.T) {
	remote := &mockRemote{}
	svc := newTestService(remote, newTestCache())

	got := svc.Classify(context.Background(), Request{Phrases: []string{"quantum computing"}, LocalOnly: true})
	if remote.calls() != 0 {
		t.Error("local-only classification must not call the remote")
	}
	if got[0].Topic != "quantum computing" || got[0].Confidence != FallbackConfidence {
		t.Errorf("expected fallback, got %+v", got[0])
	}
}

func TestClassify_NoRemote(t *testing.T) {
	svc := New(nil, nil, nil, nil, Config{})
	got := svc.Classify(context.Background(), Request{Phrases: []string{"topic one", "topic two"}})
	if len(got) != 2 || got[1].Topic != "topic two" {
		t.Errorf("unexpected results %+v", got)
	}
}

func TestClassify_BudgetRejects(t *testing.T) {
	remote := &mockRemote{}
	budget := NewBudgetTracker("test", 10, 0, BudgetActionReject, zap.NewNop())
	budget.Record(10)
	svc := New(remote, nil, budget, nil, Config{Retry: fastRetry()})

	got := svc.Classify(context.Background(), Request{Phrases: []string{"vector databases"}})
	if remote.calls() != 0 {
		t.Error("exhausted budget must not call the remote")
	}
	if got[0].Confidence != FallbackConfidence {
		t.Errorf("expected fallback, got %+v", got[0])
	}
}

func TestClassify_BudgetRecordsTokens(t *testing.T) {
	budget := NewBudgetTracker("test", 1000, 0, BudgetActionReject, zap.NewNop())
	svc := New(&mockRemote{}, nil, budget, nil, Config{Retry: fastRetry()})

	svc.Classify(context.Background(), Request{Phrases: []string{"one", "two"}})
	if budget.DailyUsed() != 20 {
		t.Errorf("expected 20 tokens recorded, got %d", budget.DailyUsed())
	}
}

func TestClassify_OpenBreakerSkipsRetries(t *testing.T) {
	remote := &mockRemote{fn: func(int, []string) (domain.ClassifyResponse, error) {
		return domain.ClassifyResponse{}, errors.New("connection reset")
	}}
	cfg := resilience.DefaultBreakerConfig("test")
	cfg.ConsecutiveFailures = 1
	breaker := resilience.NewBreaker(cfg, zap.NewNop(), nil)
	svc := New(remote, nil, nil, breaker, Config{Retry: fastRetry()})

	svc.Classify(context.Background(), Request{Phrases: []string{"first"}})
	if remote.calls() != 1 {
		t.Fatalf("breaker should open after one failure, got %d calls", remote.calls())
	}

	got := svc.Classify(context.Background(), Request{Phrases: []string{"second"}})
	if remote.calls() != 1 {
		t.Errorf("open breaker must not reach the remote, got %d calls", remote.calls())
	}
	if got[0].Topic != "second" {
		t.Errorf("expected fallback, got %q", got[0].Topic)
	}
}

func TestClassify_AttemptTimeout(t *testing.T) {
	remote := &mockRemote{fn: func(int, []string) (domain.ClassifyResponse, error) {
		time.Sleep(50 * time.Millisecond)
		return domain.ClassifyResponse{}, context.DeadlineExceeded
	}}
	retry := fastRetry()
	retry.MaxAttempts = 2
	svc := New(remote, nil, nil, nil, Config{Timeout: 5 * time.Millisecond, Retry: retry})

	got := svc.Classify(context.Background(), Request{Phrases: []string{"slow provider"}})
	if remote.calls() != 2 {
		t.Errorf("timeouts should be retried, got %d calls", remote.calls())
	}
	if got[0].Topic != "slow provider" {
		t.Errorf("expected fallback, got %q", got[0].Topic)
	}
}
