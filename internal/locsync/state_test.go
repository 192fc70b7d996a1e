package locsync

import (
	"sync"
	"testing"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/testutil/testlog"
)

func TestStateSetGetReset(t *testing.T) {
	testlog.Start(t)

	state := NewState()
	if _, ok := state.Get(); ok {
		t.Fatalf("expected unset state")
	}

	state.Set(0x0050115e)
	got, ok := state.Get()
	if !ok || got != 0x0050115e {
		t.Fatalf("unexpected state: %s ok=%v", got, ok)
	}

	state.Reset()
	if _, ok := state.Get(); ok {
		t.Fatalf("expected unset state after reset")
	}
}

func TestObserveUIMoveReportsChangeOnly(t *testing.T) {
	testlog.Start(t)

	state := NewState()
	if !state.ObserveUIMove(0x1000) {
		t.Fatalf("first move should report a change")
	}
	if state.ObserveUIMove(0x1000) {
		t.Fatalf("repeat of same address should not report a change")
	}
	if !state.ObserveUIMove(0x2000) {
		t.Fatalf("new address should report a change")
	}
}

func TestConcurrentWritersLeaveOneAttemptedAddress(t *testing.T) {
	testlog.Start(t)

	state := NewState()
	attempted := make(map[addr.Address]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		a := addr.Address(0x00400000 + i*0x10)
		mu.Lock()
		attempted[a] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func(a addr.Address, viaUI bool) {
			defer wg.Done()
			if viaUI {
				state.ObserveUIMove(a)
			} else {
				state.Set(a)
			}
		}(a, i%3 == 0)
	}
	wg.Wait()

	final, ok := state.Get()
	if !ok {
		t.Fatalf("expected a final address")
	}
	if _, found := attempted[final]; !found {
		t.Fatalf("final address %s was never attempted", final)
	}
}
