package locsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/hostbridge"
	"github.com/emberhq/embersync/internal/observability"
	"github.com/emberhq/embersync/internal/program"
	"github.com/emberhq/embersync/internal/protocol/locwire"
)

// Result is the tagged outcome of one SetLocation call. Message is the
// display string surfaced in the ack; Status is what callers branch on.
type Result struct {
	Status  locwire.Status
	Message string
	Address addr.Address
}

// Service implements the location-sync contract. Every call re-resolves the
// active program, so one service instance serves across program switches.
type Service struct {
	session *program.Session
	state   *State
	nav     hostbridge.Navigator
	console hostbridge.ConsoleFunc
}

func NewService(session *program.Session, state *State, nav hostbridge.Navigator, console hostbridge.ConsoleFunc) *Service {
	return &Service{
		session: session,
		state:   state,
		nav:     nav,
		console: console,
	}
}

func (s *Service) State() *State {
	return s.state
}

// SetLocation resolves the offset against the active program's image base,
// requests host navigation, and records the new address on success. All
// failures are reported in the Result, never as a transport error.
func (s *Service) SetLocation(ctx context.Context, offset addr.Offset) Result {
	start := time.Now()
	res := s.setLocation(ctx, offset)
	observability.RecordSetLocation(string(res.Status), time.Since(start))
	return res
}

func (s *Service) setLocation(ctx context.Context, offset addr.Offset) Result {
	prog, ok := s.session.Current()
	if !ok {
		msg := "No active program; cannot set location"
		s.console.Log(msg)
		log.Warn().Str("offset", offset.String()).Msg("set location rejected: no active program")
		return Result{Status: locwire.StatusNoActiveProgram, Message: msg}
	}

	address, err := addr.ToAddress(prog.ImageBase, offset, prog.Width)
	if err != nil {
		msg := fmt.Sprintf("Invalid address: offset %s outside %d-bit range", offset, int(prog.Width))
		s.console.Log(msg)
		log.Warn().
			Str("offset", offset.String()).
			Str("image_base", prog.ImageBase.String()).
			Err(err).
			Msg("set location rejected: invalid address")
		return Result{Status: locwire.StatusInvalidAddress, Message: msg}
	}

	navigated, err := s.nav.NavigateTo(ctx, address)
	if err != nil || !navigated {
		msg := fmt.Sprintf("Failed to go to address: %s", offset)
		s.console.Log(msg)
		event := log.Warn().
			Str("offset", offset.String()).
			Str("address", address.String())
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("navigation failed")
		return Result{Status: locwire.StatusNavigationFailed, Message: msg}
	}

	s.state.Set(address)
	msg := fmt.Sprintf("Going to address: %s", offset)
	s.console.Log(msg)
	log.Info().
		Str("offset", offset.String()).
		Str("address", address.String()).
		Str("program", prog.Name).
		Msg("location set")
	return Result{Status: locwire.StatusOK, Message: msg, Address: address}
}

// ObserveUIMove is the host's location-changed callback path. It updates the
// shared state and logs the offset once per distinct address, matching the
// console behavior users expect from the host side.
func (s *Service) ObserveUIMove(address addr.Address) {
	if !s.state.ObserveUIMove(address) {
		return
	}
	observability.RecordUINavigation()
	s.console.Log(fmt.Sprintf("Offset: %s", address))
	log.Debug().Str("address", address.String()).Msg("ui navigation observed")
}
