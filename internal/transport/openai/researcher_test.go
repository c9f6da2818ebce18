package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

func TestResearcher_Research(t *testing.T) {
	content := `{"summary":"Backpropagation computes gradients.","key_points":["chain rule","reverse mode"],
		"related_concepts":["Autodiff"],"sources":[{"title":"Learning representations","url":"https://example.org"}]}`
	var req chatRequest
	srv := newChatServer(t, content, &req)
	r := NewResearcher(testConfig(srv.URL))

	res, err := r.Research(context.Background(), "Backpropagation", "Deep Learning")
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}
	if res.Summary != "Backpropagation computes gradients." || len(res.KeyPoints) != 2 {
		t.Errorf("unexpected research: %+v", res)
	}
	if len(res.Sources) != 1 || res.Sources[0].URL != "https://example.org" {
		t.Errorf("unexpected sources: %+v", res.Sources)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "The session is about: Deep Learning\n\nTopic to research: Backpropagation" {
		t.Errorf("unexpected prompt: %+v", req.Messages)
	}
}

func TestResearcher_EmptyListsNormalized(t *testing.T) {
	srv := newChatServer(t, `{"summary":"Short."}`, nil)
	r := NewResearcher(testConfig(srv.URL))

	res, err := r.Research(context.Background(), "X", "")
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}
	if res.KeyPoints == nil || res.RelatedConcepts == nil || res.Sources == nil {
		t.Errorf("expected non-nil lists: %+v", res)
	}
}

func TestResearcher_EmptySummary(t *testing.T) {
	srv := newChatServer(t, `{"summary":"  "}`, nil)
	r := NewResearcher(testConfig(srv.URL))

	_, err := r.Research(context.Background(), "X", "")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestResearcher_ProviderError(t *testing.T) {
	srv := newErrorServer(t, http.StatusBadGateway, `{"detail":"upstream down"}`)
	r := NewResearcher(testConfig(srv.URL))

	_, err := r.Research(context.Background(), "X", "")
	if !errors.Is(err, domain.ErrEnrichmentFailed) {
		t.Fatalf("expected ErrEnrichmentFailed, got %v", err)
	}
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Message != "upstream down" {
		t.Errorf("expected provider detail, got %v", err)
	}
}
