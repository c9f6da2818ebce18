package session

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateAwaitingTopic, true},
		{StateAwaitingTopic, StateActive, true},
		{StateIdle, StateActive, true},
		{StateActive, StateIdle, true},
		{StateAwaitingTopic, StateIdle, true},
		{StateActive, StateAwaitingTopic, false},
		{StateActive, StateActive, false},
		{StateAwaitingTopic, StateAwaitingTopic, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSession_ActivateReleasesReady(t *testing.T) {
	s := New("s1", true)

	select {
	case <-s.Ready():
		t.Fatal("ready must not be closed before activation")
	default:
	}
	if _, ok := s.Target(); ok {
		t.Fatal("expected no target before activation")
	}

	if err := s.Activate(Target{MapID: "m", RootID: "r", MainTopic: "AI"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready must be closed after activation")
	}
	tgt, ok := s.Target()
	if !ok || tgt.MapID != "m" || tgt.RootID != "r" {
		t.Fatalf("unexpected target: %+v", tgt)
	}
	if s.State() != StateActive {
		t.Fatalf("expected ACTIVE, got %s", s.State())
	}
}

func TestSession_ActivateTwice(t *testing.T) {
	s := New("s1", true)
	_ = s.Activate(Target{MapID: "m", RootID: "r"})
	err := s.Activate(Target{MapID: "m2", RootID: "r2"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSession_CloseKeepsTarget(t *testing.T) {
	s := New("s1", true)
	_ = s.Activate(Target{MapID: "m", RootID: "r"})
	s.Close()
	if s.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", s.State())
	}
	if _, ok := s.Target(); !ok {
		t.Fatal("target must stay readable after close")
	}
}

func TestSession_AddSpeaker(t *testing.T) {
	s := New("s1", true)
	s.AddSpeaker("Lecturer")
	s.AddSpeaker("Student")
	s.AddSpeaker("Lecturer")
	s.AddSpeaker("")
	snap := s.Snapshot()
	if len(snap.Speakers) != 2 || snap.Speakers[0] != "Lecturer" || snap.Speakers[1] != "Student" {
		t.Fatalf("unexpected speakers: %v", snap.Speakers)
	}
}

func TestState_String(t *testing.T) {
	if StateAwaitingTopic.String() != "AWAITING_TOPIC" {
		t.Fatalf("unexpected string %q", StateAwaitingTopic.String())
	}
	if State(42).String() != "UNKNOWN(42)" {
		t.Fatalf("unexpected string %q", State(42).String())
	}
}
