package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

func TestClassifier_Single(t *testing.T) {
	var req chatRequest
	srv := newChatServer(t, `{"topic":"Gradient Descent","speaker":null,"confidence":0.92}`, &req)
	c := NewClassifier(testConfig(srv.URL))

	resp, err := c.Classify(context.Background(), []string{"so gradient descent walks downhill"}, "Machine Learning")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	got, ok := resp.Results[0]
	if !ok {
		t.Fatal("expected result for index 0")
	}
	if got.Topic != "Gradient Descent" || got.Speaker != "" || got.Confidence != 0.92 {
		t.Errorf("unexpected classification: %+v", got)
	}
	if got.OriginalText != "so gradient descent walks downhill" {
		t.Errorf("original text not carried: %q", got.OriginalText)
	}
	if resp.TotalTokens != 60 || resp.PromptTokens != 40 {
		t.Errorf("unexpected usage: %+v", resp)
	}

	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
	}
	if len(req.Messages) != 2 || !strings.Contains(req.Messages[0].Content, `"topic"`) {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, "Machine Learning") {
		t.Error("main topic missing from prompt")
	}
}

func TestClassifier_BatchPartial(t *testing.T) {
	content := `{"results":[
		{"index":0,"topic":"Neural Networks","speaker":"Professor","confidence":0.9},
		{"index":1,"topic":"","confidence":0.8},
		{"index":2,"topic":"Loss","confidence":1.7},
		{"index":7,"topic":"Out Of Range","confidence":0.5},
		{"index":0,"topic":"Duplicate","confidence":0.5}
	]}`
	srv := newChatServer(t, content, nil)
	c := NewClassifier(testConfig(srv.URL))

	phrases := []string{"neural networks", "uh", "loss functions"}
	resp, err := c.Classify(context.Background(), phrases, "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected only index 0 to be usable, got %v", resp.Results)
	}
	if r := resp.Results[0]; r.Topic != "Neural Networks" || r.Speaker != "Professor" {
		t.Errorf("unexpected entry: %+v", r)
	}
}

func TestClassifier_MalformedJSON(t *testing.T) {
	srv := newChatServer(t, `here is your answer: topic=ML`, nil)
	c := NewClassifier(testConfig(srv.URL))

	_, err := c.Classify(context.Background(), []string{"a", "b"}, "")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifier_NoUsableEntries(t *testing.T) {
	srv := newChatServer(t, `{"results":[]}`, nil)
	c := NewClassifier(testConfig(srv.URL))

	_, err := c.Classify(context.Background(), []string{"a", "b"}, "")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifier_ProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
		rateLimit bool
	}{
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"rate limited", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusInternalServerError, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newErrorServer(t, tc.status, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			c := NewClassifier(testConfig(srv.URL))

			_, err := c.Classify(context.Background(), []string{"a"}, "")
			if !errors.Is(err, domain.ErrClassifierUnavailable) {
				t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
			}
			var pe *domain.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if pe.StatusCode != tc.status || pe.Permanent() != tc.permanent {
				t.Errorf("unexpected provider error: %+v", pe)
			}
			if errors.Is(err, domain.ErrRateLimited) != tc.rateLimit {
				t.Errorf("rate limit flag mismatch for %d", tc.status)
			}
		})
	}
}

func TestClassifier_Empty(t *testing.T) {
	c := NewClassifier(testConfig("http://127.0.0.1:0"))
	resp, err := c.Classify(context.Background(), nil, "")
	if err != nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty response, got %+v err=%v", resp, err)
	}
}

func TestNormalizeSpeaker(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		in   *string
		want string
	}{
		{nil, ""},
		{s("null"), ""},
		{s(" None "), ""},
		{s("Speaker 2"), "Speaker 2"},
	}
	for _, tc := range tests {
		if got := normalizeSpeaker(tc.in); got != tc.want {
			t.Errorf("normalizeSpeaker = %q, want %q", got, tc.want)
		}
	}
}
