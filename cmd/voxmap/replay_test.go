package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/domain"
	"github.com/kailas-cloud/voxmap/internal/domain/layout"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
)

type recordingSink struct {
	final   []string
	interim []string
	failAt  int
}

func (s *recordingSink) OnFinalFragment(_ context.Context, text string) error {
	if s.failAt > 0 && len(s.final)+len(s.interim)+1 == s.failAt {
		return domain.ErrNoActiveSession
	}
	s.final = append(s.final, text)
	return nil
}

func (s *recordingSink) OnInterimFragment(_ context.Context, text string) error {
	if s.failAt > 0 && len(s.final)+len(s.interim)+1 == s.failAt {
		return domain.ErrNoActiveSession
	}
	s.interim = append(s.interim, text)
	return nil
}

func TestFeedTranscript(t *testing.T) {
	in := strings.NewReader("hello world\n\n~ attention is\n  transformers rock.  \n")
	sink := &recordingSink{}

	n, err := feedTranscript(context.Background(), sink, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 fragments, got %d", n)
	}
	if len(sink.final) != 2 || sink.final[1] != "transformers rock." {
		t.Errorf("unexpected final fragments: %q", sink.final)
	}
	if len(sink.interim) != 1 || sink.interim[0] != "attention is" {
		t.Errorf("unexpected interim fragments: %q", sink.interim)
	}
}

func TestFeedTranscript_ErrorReportsLine(t *testing.T) {
	in := strings.NewReader("one\n\ntwo\n")
	sink := &recordingSink{failAt: 2}

	_, err := feedTranscript(context.Background(), sink, in)
	if !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected line number in error, got %q", err.Error())
	}
}

func TestPrintTree(t *testing.T) {
	m := mindmap.Map{ID: "m1", Title: "Machine learning", RootID: "r"}
	nodes := []mindmap.Node{
		mindmap.Reconstruct("b", "m1", "r", "Optimizers", "", 1, 1, layout.Position{}, "", 2, 2),
		mindmap.Reconstruct("r", "m1", "", "Machine learning", "", 0, 0, layout.Position{}, "", 1, 1),
		mindmap.Reconstruct("a", "m1", "r", "Neural networks", "", 1, 0, layout.Position{}, "", 1, 1),
		mindmap.Reconstruct("c", "m1", "a", "Backpropagation", "", 2, 0, layout.Position{}, "", 3, 3),
	}

	var buf bytes.Buffer
	if err := printTree(&buf, m, nodes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Machine learning\n" +
		"├── Neural networks\n" +
		"│   └── Backpropagation\n" +
		"└── Optimizers\n"
	if buf.String() != want {
		t.Errorf("unexpected tree:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPrintTree_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printTree(&buf, mindmap.Map{Title: "Empty"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "Empty (empty)\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestReplay_InMemory(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pipeline.DebounceMs = 10

	in := strings.NewReader("Neural networks learn.\nGradient descent converges.\n")
	var out bytes.Buffer

	err := replay(context.Background(), cfg, zap.NewNop(), in, &out, "Machine learning", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "Machine learning\n") {
		t.Errorf("expected root first, got:\n%s", got)
	}
	// Without AI every phrase takes the local fallback: normalized and truncated.
	for _, label := range []string{"── neural networks learn\n", "── gradient descent converge\n"} {
		if !strings.Contains(got, label) {
			t.Errorf("expected %q in tree:\n%s", label, got)
		}
	}
}

func TestReplay_EmptyTopic(t *testing.T) {
	err := replay(context.Background(), defaultConfig(), zap.NewNop(), strings.NewReader(""), &bytes.Buffer{}, " ", false)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
