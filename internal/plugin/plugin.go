// Package plugin glues the host tool's event surface to the sync service. The
// host calls in from its own threads; everything here returns fast and never
// blocks those callers on network work.
package plugin

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/hostbridge"
	"github.com/emberhq/embersync/internal/locsync"
	"github.com/emberhq/embersync/internal/program"
	"github.com/emberhq/embersync/internal/server"
)

// Config sizes the plugin's moving parts.
type Config struct {
	Server server.Config
	// DispatchQueueDepth bounds pending navigation tasks for the host's UI
	// thread. Zero picks a sane default.
	DispatchQueueDepth int
}

const defaultDispatchDepth = 64

// Plugin owns one listener, one session, and one dispatcher for the lifetime
// of the host process. Program switches update the session; the listener is
// started once and survives program changes.
type Plugin struct {
	bridge     hostbridge.Bridge
	session    *program.Session
	state      *locsync.State
	service    *locsync.Service
	server     *server.Server
	dispatcher *hostbridge.Dispatcher

	mu      sync.Mutex
	started bool
}

func New(bridge hostbridge.Bridge, cfg Config) *Plugin {
	depth := cfg.DispatchQueueDepth
	if depth <= 0 {
		depth = defaultDispatchDepth
	}
	dispatcher := hostbridge.NewDispatcher(depth)
	session := program.NewSession()
	state := locsync.NewState()
	nav := hostbridge.NewDispatchNavigator(bridge, dispatcher)
	svc := locsync.NewService(session, state, nav, bridge.Log)

	return &Plugin{
		bridge:     bridge,
		session:    session,
		state:      state,
		service:    svc,
		server:     server.New(cfg.Server, svc),
		dispatcher: dispatcher,
	}
}

// Session exposes the active-program slot for admin surfaces.
func (p *Plugin) Session() *program.Session { return p.session }

// State exposes the last synced address for admin surfaces.
func (p *Plugin) State() *locsync.State { return p.state }

// Server exposes the sync listener for admin surfaces.
func (p *Plugin) Server() *server.Server { return p.server }

// RunDispatcher pumps queued navigation tasks. The host calls this from the
// thread that owns its UI; it returns when ctx is cancelled.
func (p *Plugin) RunDispatcher(ctx context.Context) {
	p.dispatcher.Run(ctx)
}

// ProgramActivated replaces the session's program and starts the listener on
// the first activation. A bind failure is logged and swallowed: the host tool
// keeps working, only sync is unavailable.
func (p *Plugin) ProgramActivated(prog program.Program) {
	p.session.Replace(prog)
	p.state.Reset()
	log.Info().Str("program", prog.Name).Str("image_base", prog.ImageBase.String()).Msg("program activated")

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	if err := p.server.Start(); err != nil {
		log.Error().Err(err).Msg("sync listener unavailable")
		return
	}
	p.started = true
}

// ProgramDeactivated clears the session. The listener keeps running; calls
// arriving with no program get a no_active_program ack.
func (p *Plugin) ProgramDeactivated() {
	p.session.Clear()
	p.state.Reset()
	log.Info().Msg("program deactivated")
}

// LocationChanged reports a user-driven cursor move inside the host tool.
func (p *Plugin) LocationChanged(address addr.Address) {
	p.service.ObserveUIMove(address)
}

// Shutdown drains the listener and stops the dispatcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()

	var err error
	if started {
		err = p.server.Shutdown(ctx)
	}
	p.dispatcher.Close()
	return err
}
