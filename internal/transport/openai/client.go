// Package openai implements the remote classification and research capabilities
// on top of an OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

// Config holds the provider settings shared by Classifier and Researcher.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	User     string
	Provider string
	Logger   *zap.Logger
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// chatJSON sends one system+user exchange asking for a JSON object and returns the raw content.
func chatJSON(
	ctx context.Context, client *openai.Client, model, user string,
	system, prompt string, maxTokens int,
) (string, openai.Usage, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0,
		MaxTokens:      maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		User:           user,
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", openai.Usage{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage, fmt.Errorf("no choices in response: %w", domain.ErrMalformedResponse)
	}
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if content == "" {
		return "", resp.Usage, fmt.Errorf("empty message content: %w", domain.ErrMalformedResponse)
	}
	return content, resp.Usage, nil
}

// stripCodeFence removes a ```json fence some models add despite the JSON response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseAPIError converts a client error into a domain.ProviderError when the
// provider answered, keeping transport errors (timeouts, resets) transient.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("provider request: %w", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return providerError(reqErr.HTTPStatusCode, msg)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return providerError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("provider request failed: %v: %w", err, domain.ErrClassifierUnavailable)
}

func providerError(status int, msg string) error {
	pe := &domain.ProviderError{StatusCode: status, Message: msg}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, pe)
	}
	return pe
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func isMalformed(err error) bool {
	return errors.Is(err, domain.ErrMalformedResponse)
}
