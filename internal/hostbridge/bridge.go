// Package hostbridge owns the narrow contract between this core and the
// embedding disassembler.
//
// Ownership boundary:
// - the navigation/console surface the host provides
// - UI-thread marshaling for hosts whose navigation API is not thread-safe
package hostbridge

import (
	"context"
	"errors"
	"sync"

	"github.com/emberhq/embersync/internal/addr"
)

// Bridge is the host-provided surface consumed by the sync core. NavigateTo
// reports failure by returning false, never by panicking; Log feeds the
// host's console sink.
type Bridge interface {
	NavigateTo(a addr.Address) bool
	Log(msg string)
}

// Navigator is the navigation entry point the sync handler calls from the
// server thread. Implementations decide whether the call may run in place or
// must be marshaled onto the host UI thread.
type Navigator interface {
	NavigateTo(ctx context.Context, a addr.Address) (bool, error)
}

// ConsoleFunc adapts a plain log sink; a nil func is a no-op.
type ConsoleFunc func(msg string)

func (f ConsoleFunc) Log(msg string) {
	if f != nil {
		f(msg)
	}
}

// DirectNavigator calls the bridge in place, for hosts whose navigation API
// is safe from arbitrary threads.
type DirectNavigator struct {
	Bridge Bridge
}

func (n DirectNavigator) NavigateTo(_ context.Context, a addr.Address) (bool, error) {
	return n.Bridge.NavigateTo(a), nil
}

var ErrDispatcherClosed = errors.New("hostbridge: dispatcher closed")

// Dispatcher is a bounded task queue drained by the host UI thread. Server
// goroutines submit work with Do and block until the pump has run it.
type Dispatcher struct {
	tasks     chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(depth int) *Dispatcher {
	if depth <= 0 {
		depth = 16
	}
	return &Dispatcher{
		tasks:  make(chan func(), depth),
		closed: make(chan struct{}),
	}
}

// Do submits fn and waits until it has run. It returns ctx.Err when the
// deadline passes first; an abandoned fn may still run on a later pump.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case d.tasks <- wrapped:
	case <-d.closed:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-d.closed:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled. The host calls this from its
// UI/event thread.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case fn := <-d.tasks:
			fn()
		case <-ctx.Done():
			return
		case <-d.closed:
			return
		}
	}
}

// Close releases waiters; submitted but unpumped tasks are dropped.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
}

// DispatchNavigator marshals NavigateTo onto the dispatcher's pump thread
// and blocks the caller until the navigation completes or ctx expires.
type DispatchNavigator struct {
	bridge Bridge
	disp   *Dispatcher
}

func NewDispatchNavigator(b Bridge, d *Dispatcher) *DispatchNavigator {
	return &DispatchNavigator{bridge: b, disp: d}
}

func (n *DispatchNavigator) NavigateTo(ctx context.Context, a addr.Address) (bool, error) {
	var ok bool
	if err := n.disp.Do(ctx, func() {
		ok = n.bridge.NavigateTo(a)
	}); err != nil {
		return false, err
	}
	return ok, nil
}
