// Package locsync owns the location-sync core: the last-active-address state
// and the SetLocation handler behind the RPC surface.
package locsync

import (
	"sync"

	"github.com/emberhq/embersync/internal/addr"
)

// State is the single source of truth for the last known active address of
// the current program session. It is written from the host UI thread and the
// server thread; a single lock serializes both writers.
type State struct {
	mu      sync.Mutex
	current addr.Address
	set     bool
}

func NewState() *State {
	return &State{}
}

// Set unconditionally overwrites the current address. Last writer wins.
func (s *State) Set(a addr.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = a
	s.set = true
}

// Get returns the current address, or false when no navigation has happened
// yet in this session.
func (s *State) Get() (addr.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.set
}

// Reset clears the state when the program session ends or is replaced.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
	s.set = false
}

// ObserveUIMove records a user navigation and reports whether the address
// actually changed, so callers log only on change. The compare and the write
// happen under one lock acquisition.
func (s *State) ObserveUIMove(a addr.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && s.current == a {
		return false
	}
	s.current = a
	s.set = true
	return true
}
