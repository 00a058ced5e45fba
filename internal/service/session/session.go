package session

import (
	"sync"
	"time"

	"github.com/buddyhq/buddy/internal/analysis/intent"
	"github.com/buddyhq/buddy/internal/model/chat"
)

// Store holds the single shared conversation session.
type Store struct {
	mu              sync.RWMutex
	platform        intent.Platform
	focusArea       intent.FocusArea
	lastInteraction time.Time
}

// NewStore returns an empty session.
func NewStore() *Store {
	return &Store{}
}

// Update records a classification outcome and returns the state it produced.
// Topic fields are sticky: a missing tag never clears a previously detected one.
func (s *Store) Update(result intent.Result, now time.Time) chat.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastInteraction = now
	if result.Platform != intent.NoPlatform {
		s.platform = result.Platform
	}
	if result.FocusArea != intent.NoFocusArea {
		s.focusArea = result.FocusArea
	}
	return s.stateLocked()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() chat.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() chat.SessionState {
	state := chat.SessionState{
		Platform:  s.platform,
		FocusArea: s.focusArea,
	}
	if !s.lastInteraction.IsZero() {
		last := s.lastInteraction
		state.LastInteraction = &last
	}
	return state
}

// Reset clears the session.
func (s *Store) Reset() {
	s.mu.Lock()
	s.platform = intent.NoPlatform
	s.focusArea = intent.NoFocusArea
	s.lastInteraction = time.Time{}
	s.mu.Unlock()
}
