// Package session holds the capture session state machine and its shared state.
package session

import (
	"fmt"
	"sync"

	"github.com/kailas-cloud/voxmap/internal/domain"
)

// State is the lifecycle state of the capture pipeline.
type State int

const (
	// StateIdle - no buffers, no target map.
	StateIdle State = iota
	// StateAwaitingTopic - fragments may arrive, the main topic is being collected.
	StateAwaitingTopic
	// StateActive - a map and root exist; phrases are applied to the graph.
	StateActive
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingTopic:
		return "AWAITING_TOPIC"
	case StateActive:
		return "ACTIVE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// CanTransition reports whether from -> to is a legal move.
//
//	IDLE -> AWAITING_TOPIC -> ACTIVE -> IDLE
//	  └───────────────────────^   (start without a prompt)
//
// Stop returns any state to IDLE.
func CanTransition(from, to State) bool {
	switch to {
	case StateIdle:
		return true
	case StateAwaitingTopic:
		return from == StateIdle
	case StateActive:
		return from == StateIdle || from == StateAwaitingTopic
	default:
		return false
	}
}

// Target is the graph a session writes into.
type Target struct {
	MapID     string
	RootID    string
	MainTopic string
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID        string
	State     State
	Target    Target
	Speakers  []string
	AIEnabled bool
}

// Session is the process-wide state of one live capture.
// Pipeline stages read it at call time through its methods; the target is
// published once through Ready.
type Session struct {
	mu        sync.RWMutex
	id        string
	state     State
	target    Target
	speakers  []string
	aiEnabled bool
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a session in the AWAITING_TOPIC state.
func New(id string, aiEnabled bool) *Session {
	return &Session{
		id:        id,
		state:     StateAwaitingTopic,
		aiEnabled: aiEnabled,
		ready:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Activate publishes the target and moves to ACTIVE. Waiters on Ready are released.
func (s *Session) Activate(t Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, StateActive) {
		return fmt.Errorf("%s -> %s: %w", s.state, StateActive, domain.ErrInvalidTransition)
	}
	s.target = t
	s.state = StateActive
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// Close moves the session to IDLE. The target stays readable so in-flight
// batches can still apply their results.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
}

// Ready is closed once the session has a target.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Target returns the current target and whether it has been set.
func (s *Session) Target() (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target, s.target.MapID != ""
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AIEnabled reports whether remote classification is allowed.
func (s *Session) AIEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aiEnabled
}

// SetAIEnabled switches remote classification for batches handled from now on.
func (s *Session) SetAIEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiEnabled = enabled
}

// AddSpeaker records a detected speaker label once, in first-seen order.
func (s *Session) AddSpeaker(label string) bool {
	if label == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.speakers {
		if sp == label {
			return false
		}
	}
	s.speakers = append(s.speakers, label)
	return true
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	speakers := make([]string, len(s.speakers))
	copy(speakers, s.speakers)
	return Snapshot{
		ID:        s.id,
		State:     s.state,
		Target:    s.target,
		Speakers:  speakers,
		AIEnabled: s.aiEnabled,
	}
}
