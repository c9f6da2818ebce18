package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/metrics"
)

// Compile-time check: Classifier implements domain.RemoteClassifier.
var _ domain.RemoteClassifier = (*Classifier)(nil)

// Classifier is a remote topic classifier using the chat completions API.
// A single phrase uses the single-object prompt; several phrases use the indexed batch prompt.
type Classifier struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewClassifier creates a remote classifier.
func NewClassifier(cfg *Config) *Classifier {
	return &Classifier{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   loggerOrNop(cfg.Logger),
	}
}

type rawResult struct {
	Index      *int     `json:"index"`
	Topic      string   `json:"topic"`
	Speaker    *string  `json:"speaker"`
	Confidence *float64 `json:"confidence"`
}

type rawBatch struct {
	Results []rawResult `json:"results"`
}

// Classify implements domain.RemoteClassifier. Unusable entries are left out of
// the result map; a response with no usable entry is an ErrMalformedResponse.
func (c *Classifier) Classify(ctx context.Context, phrases []string, mainTopic string) (domain.ClassifyResponse, error) {
	if len(phrases) == 0 {
		return domain.ClassifyResponse{Results: map[int]domain.Classification{}}, nil
	}

	system, prompt := classifyBatchSystem, batchPrompt(phrases, mainTopic)
	if len(phrases) == 1 {
		system, prompt = classifySingleSystem, singlePrompt(phrases[0], mainTopic)
	}

	start := time.Now()
	content, usage, err := chatJSON(ctx, c.client, c.model, c.user, system, prompt, 64+48*len(phrases))
	duration := time.Since(start)

	if err != nil {
		c.recordError(err)
		return domain.ClassifyResponse{}, err
	}

	results, err := parseClassification(content, phrases)
	if err != nil {
		c.recordError(err)
		c.logger.Debug("Unparseable classification response",
			zap.String("provider", c.provider),
			zap.String("content", content),
			zap.Error(err),
		)
		return domain.ClassifyResponse{}, err
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.ClassifierRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	if usage.TotalTokens > 0 {
		metrics.ClassifierTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(usage.PromptTokens))
		metrics.ClassifierTokensTotal.WithLabelValues(c.provider, c.model, "total").Add(float64(usage.TotalTokens))
	}

	return domain.ClassifyResponse{
		Results:      results,
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Classifier) recordError(err error) {
	errType := "api_error"
	if isMalformed(err) {
		errType = "malformed"
	}
	metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
	metrics.ClassifierErrorsTotal.WithLabelValues(c.provider, c.model, errType).Inc()
}

// parseClassification accepts either a single object (one phrase) or {"results": [...]}.
func parseClassification(content string, phrases []string) (map[int]domain.Classification, error) {
	var entries []rawResult

	var batch rawBatch
	if err := json.Unmarshal([]byte(content), &batch); err != nil {
		return nil, fmt.Errorf("decode classification: %v: %w", err, domain.ErrMalformedResponse)
	}
	if batch.Results != nil {
		entries = batch.Results
	} else {
		var single rawResult
		if err := json.Unmarshal([]byte(content), &single); err != nil {
			return nil, fmt.Errorf("decode classification: %v: %w", err, domain.ErrMalformedResponse)
		}
		if len(phrases) == 1 && single.Index == nil {
			zero := 0
			single.Index = &zero
		}
		entries = []rawResult{single}
	}

	out := make(map[int]domain.Classification, len(entries))
	for _, e := range entries {
		if e.Index == nil || *e.Index < 0 || *e.Index >= len(phrases) {
			continue
		}
		if _, dup := out[*e.Index]; dup {
			continue
		}
		topic := strings.TrimSpace(e.Topic)
		if topic == "" || e.Confidence == nil {
			continue
		}
		conf := *e.Confidence
		if conf < 0 || conf > 1 {
			continue
		}
		out[*e.Index] = domain.Classification{
			Topic:        topic,
			Speaker:      normalizeSpeaker(e.Speaker),
			Confidence:   conf,
			OriginalText: phrases[*e.Index],
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no usable entries in %d results: %w", len(entries), domain.ErrMalformedResponse)
	}
	return out, nil
}

func normalizeSpeaker(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "", "null", "none", "unknown", "n/a":
		return ""
	}
	return v
}
