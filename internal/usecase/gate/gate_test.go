package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/textnorm"
)

type mockLabels struct {
	owners map[string]string // normalized label -> node ID
	err    error
	calls  int
}

func (m *mockLabels) LookupLabel(_ context.Context, _, label string) (string, bool, error) {
	m.calls++
	if m.err != nil {
		return "", false, m.err
	}
	id, ok := m.owners[textnorm.Normalize(label)]
	return id, ok, nil
}

func TestEvaluate(t *testing.T) {
	labels := &mockLabels{owners: map[string]string{"machine learning": "node-1"}}
	g := New(labels, 0.4)

	tests := []struct {
		name       string
		c          domain.Classification
		want       Verdict
		wantNodeID string
	}{
		{"low confidence filler", domain.Classification{Topic: "um yeah so", Confidence: 0.2}, VerdictLowConfidence, ""},
		{"topical", domain.Classification{Topic: "Gradient Descent", Confidence: 0.9}, VerdictAccept, ""},
		{"threshold is inclusive", domain.Classification{Topic: "Gradient Descent", Confidence: 0.4}, VerdictAccept, ""},
		{"confident filler", domain.Classification{Topic: "you know, basically", Confidence: 0.8}, VerdictFiller, ""},
		{"empty topic", domain.Classification{Topic: "", Confidence: 0.8}, VerdictFiller, ""},
		{"duplicate", domain.Classification{Topic: "MACHINE LEARNING!", Confidence: 0.9}, VerdictDuplicate, "node-1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := g.Evaluate(context.Background(), "map-1", tc.c)
			if d.Verdict != tc.want {
				t.Errorf("expected %s, got %s", tc.want, d.Verdict)
			}
			if d.ExistingNodeID != tc.wantNodeID {
				t.Errorf("expected node %q, got %q", tc.wantNodeID, d.ExistingNodeID)
			}
		})
	}
}

func TestEvaluate_CheapChecksShortCircuit(t *testing.T) {
	labels := &mockLabels{}
	g := New(labels, 0.4)

	g.Evaluate(context.Background(), "map-1", domain.Classification{Topic: "Topic", Confidence: 0.1})
	g.Evaluate(context.Background(), "map-1", domain.Classification{Topic: "uh", Confidence: 0.9})

	if labels.calls != 0 {
		t.Errorf("duplicate lookup must not run for dropped results, got %d calls", labels.calls)
	}
}

func TestEvaluate_LookupErrorAccepts(t *testing.T) {
	g := New(&mockLabels{err: errors.New("conn refused")}, 0.4)
	d := g.Evaluate(context.Background(), "map-1", domain.Classification{Topic: "Backprop", Confidence: 0.9})
	if d.Verdict != VerdictAccept {
		t.Errorf("expected accept on lookup failure, got %s", d.Verdict)
	}
}

func TestNew_DefaultThreshold(t *testing.T) {
	g := New(&mockLabels{}, 0)
	d := g.Evaluate(context.Background(), "map-1", domain.Classification{Topic: "Backprop", Confidence: 0.39})
	if d.Verdict != VerdictLowConfidence {
		t.Errorf("expected default threshold 0.4, got %s", d.Verdict)
	}
}
