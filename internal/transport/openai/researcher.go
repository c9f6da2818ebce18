package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
)

// Researcher produces insight research for a topic using the chat completions API.
type Researcher struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewResearcher creates a research provider.
func NewResearcher(cfg *Config) *Researcher {
	return &Researcher{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   loggerOrNop(cfg.Logger),
	}
}

// Research returns summary, key points, related concepts and sources for topic.
func (r *Researcher) Research(ctx context.Context, topic, mainTopic string) (insight.Research, error) {
	content, _, err := chatJSON(ctx, r.client, r.model, r.user, researchSystem, researchPrompt(topic, mainTopic), 600)
	if err != nil {
		return insight.Research{}, fmt.Errorf("research %q: %w: %w", topic, domain.ErrEnrichmentFailed, err)
	}

	var res insight.Research
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return insight.Research{}, fmt.Errorf("decode research: %v: %w", err, domain.ErrMalformedResponse)
	}
	res.Summary = strings.TrimSpace(res.Summary)
	if res.Summary == "" {
		return insight.Research{}, fmt.Errorf("empty research summary: %w", domain.ErrMalformedResponse)
	}
	if res.KeyPoints == nil {
		res.KeyPoints = []string{}
	}
	if res.RelatedConcepts == nil {
		res.RelatedConcepts = []string{}
	}
	if res.Sources == nil {
		res.Sources = []insight.Source{}
	}

	r.logger.Debug("Research completed",
		zap.String("provider", r.provider),
		zap.String("topic", topic),
		zap.Int("key_points", len(res.KeyPoints)),
	)
	return res, nil
}
