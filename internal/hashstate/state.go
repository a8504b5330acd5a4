package hashstate

import (
	"slices"
	"strings"
	"sync"

	"github.com/muurk/incidentdesk/internal/logging"
)

// Source tells subscribers what caused a fragment change.
type Source string

const (
	SourceProgrammatic Source = "programmatic" // Set/Replace from application code
	SourceHistory      Source = "history"      // Back/Forward
	SourceExternal     Source = "external"     // a bridged browser tab
)

// Change is delivered to subscribers for every fragment change.
type Change struct {
	Previous string
	Fragment string
	Source   Source
}

// State is the application's single fragment string plus its history.
type State struct {
	// notifyMu serialises mutation+notification so subscribers observe
	// changes in exactly the order they were made.
	notifyMu sync.Mutex

	mu       sync.RWMutex
	fragment string
	back     []string
	forward  []string
	subs     map[int]func(Change)
	nextID   int
}

// New creates a State holding the given initial fragment.
// A leading '#' is stripped.
func New(initial string) *State {
	return &State{
		fragment: Normalize(initial),
		subs:     make(map[int]func(Change)),
	}
}

// Normalize strips surrounding whitespace and a single leading '#'.
func Normalize(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	return strings.TrimPrefix(fragment, "#")
}

// Get returns the current fragment without the leading '#'.
func (s *State) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fragment
}

// Set pushes a new fragment onto the history and notifies subscribers.
// Returns false if the fragment was already current.
func (s *State) Set(fragment string) bool {
	return s.SetFrom(fragment, SourceProgrammatic)
}

// SetFrom is Set with an explicit change source.
func (s *State) SetFrom(fragment string, source Source) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	fragment = Normalize(fragment)

	s.mu.Lock()
	previous := s.fragment
	if previous == fragment {
		s.mu.Unlock()
		return false
	}
	s.back = append(s.back, previous)
	s.forward = nil
	s.fragment = fragment
	s.mu.Unlock()

	s.notify(Change{Previous: previous, Fragment: fragment, Source: source})
	return true
}

// Replace swaps the current fragment without touching history.
func (s *State) Replace(fragment string) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	fragment = Normalize(fragment)

	s.mu.Lock()
	previous := s.fragment
	if previous == fragment {
		s.mu.Unlock()
		return false
	}
	s.fragment = fragment
	s.mu.Unlock()

	s.notify(Change{Previous: previous, Fragment: fragment, Source: SourceProgrammatic})
	return true
}

// Back moves one entry back in history. Returns false when there is none.
func (s *State) Back() bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if len(s.back) == 0 {
		s.mu.Unlock()
		return false
	}
	previous := s.fragment
	next := s.back[len(s.back)-1]
	s.back = s.back[:len(s.back)-1]
	s.forward = append(s.forward, previous)
	s.fragment = next
	s.mu.Unlock()

	if previous != next {
		s.notify(Change{Previous: previous, Fragment: next, Source: SourceHistory})
	}
	return true
}

// Forward re-applies the entry most recently undone by Back.
func (s *State) Forward() bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if len(s.forward) == 0 {
		s.mu.Unlock()
		return false
	}
	previous := s.fragment
	next := s.forward[len(s.forward)-1]
	s.forward = s.forward[:len(s.forward)-1]
	s.back = append(s.back, previous)
	s.fragment = next
	s.mu.Unlock()

	if previous != next {
		s.notify(Change{Previous: previous, Fragment: next, Source: SourceHistory})
	}
	return true
}

// CanGoBack reports whether Back would move.
func (s *State) CanGoBack() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.back) > 0
}

// CanGoForward reports whether Forward would move.
func (s *State) CanGoForward() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forward) > 0
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it.
func (s *State) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// notify must be called with notifyMu held and mu released.
func (s *State) notify(change Change) {
	logging.LogHashChange(change.Previous, change.Fragment, string(change.Source))

	s.mu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Change), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
