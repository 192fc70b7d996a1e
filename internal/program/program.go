// Package program owns the active-program session context.
package program

import (
	"strings"
	"sync"

	"github.com/emberhq/embersync/internal/addr"
)

// Program describes one loaded program image.
type Program struct {
	Name      string
	ImageBase addr.Address
	Width     addr.Width
}

// Session guards the currently active program across the host UI thread and
// the server thread. The sync handler re-resolves the current program per
// call, so the listener serves whichever program is active at that moment.
type Session struct {
	mu     sync.RWMutex
	prog   Program
	active bool
}

func NewSession() *Session {
	return &Session{}
}

// Replace installs the active program, displacing any previous one.
func (s *Session) Replace(p Program) {
	if !p.Width.Valid() {
		p.Width = addr.Width64
	}
	p.Name = strings.TrimSpace(p.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prog = p
	s.active = true
}

// Clear tears down the active program; subsequent sync calls are rejected
// until the next Replace.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prog = Program{}
	s.active = false
}

// Current returns the active program, or false when none is loaded.
func (s *Session) Current() (Program, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prog, s.active
}
