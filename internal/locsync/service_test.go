package locsync

import (
	"context"
	"errors"
	"testing"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/program"
	"github.com/emberhq/embersync/internal/protocol/locwire"
	"github.com/emberhq/embersync/internal/testutil/testlog"
)

type fakeNavigator struct {
	allow   bool
	err     error
	visited []addr.Address
}

func (n *fakeNavigator) NavigateTo(_ context.Context, a addr.Address) (bool, error) {
	n.visited = append(n.visited, a)
	if n.err != nil {
		return false, n.err
	}
	return n.allow, nil
}

func newTestService(nav *fakeNavigator) (*Service, *program.Session) {
	session := program.NewSession()
	return NewService(session, NewState(), nav, nil), session
}

func TestSetLocationSuccessUpdatesState(t *testing.T) {
	testlog.Start(t)

	nav := &fakeNavigator{allow: true}
	svc, session := newTestService(nav)
	session.Replace(program.Program{Name: "crackme", ImageBase: 0x00400000, Width: addr.Width64})

	res := svc.SetLocation(context.Background(), 0x0010115e)
	if res.Status != locwire.StatusOK {
		t.Fatalf("unexpected status: %q (%s)", res.Status, res.Message)
	}
	if res.Message != "Going to address: 0x0010115e" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if res.Address != 0x0050115e {
		t.Fatalf("unexpected address: %s", res.Address)
	}
	got, ok := svc.State().Get()
	if !ok || got != 0x0050115e {
		t.Fatalf("state not updated: %s ok=%v", got, ok)
	}
}

func TestSetLocationIsIdempotent(t *testing.T) {
	testlog.Start(t)

	nav := &fakeNavigator{allow: true}
	svc, session := newTestService(nav)
	session.Replace(program.Program{ImageBase: 0x00400000, Width: addr.Width64})

	first := svc.SetLocation(context.Background(), 0x0010115e)
	second := svc.SetLocation(context.Background(), 0x0010115e)
	if first.Status != locwire.StatusOK || second.Status != locwire.StatusOK {
		t.Fatalf("expected both calls to succeed: %q %q", first.Status, second.Status)
	}
	got, _ := svc.State().Get()
	if got != 0x0050115e {
		t.Fatalf("unexpected state after repeat call: %s", got)
	}
	if len(nav.visited) != 2 {
		t.Fatalf("expected two navigation attempts, got %d", len(nav.visited))
	}
}

func TestSetLocationNoProgramGuard(t *testing.T) {
	testlog.Start(t)

	nav := &fakeNavigator{allow: true}
	svc, _ := newTestService(nav)

	res := svc.SetLocation(context.Background(), 0x0010115e)
	if res.Status != locwire.StatusNoActiveProgram {
		t.Fatalf("unexpected status: %q", res.Status)
	}
	if _, ok := svc.State().Get(); ok {
		t.Fatalf("state must stay unset with no program")
	}
	if len(nav.visited) != 0 {
		t.Fatalf("navigation must not be attempted with no program")
	}
}

func TestSetLocationInvalidAddress(t *testing.T) {
	testlog.Start(t)

	nav := &fakeNavigator{allow: true}
	svc, session := newTestService(nav)
	session.Replace(program.Program{ImageBase: 0xFFFF0000, Width: addr.Width32})

	res := svc.SetLocation(context.Background(), 0x00020000)
	if res.Status != locwire.StatusInvalidAddress {
		t.Fatalf("unexpected status: %q", res.Status)
	}
	if _, ok := svc.State().Get(); ok {
		t.Fatalf("state must stay unset on invalid address")
	}
	if len(nav.visited) != 0 {
		t.Fatalf("navigation must not be attempted for invalid address")
	}
}

func TestNavigationFailureLeavesStateUnchanged(t *testing.T) {
	testlog.Start(t)

	nav := &fakeNavigator{allow: true}
	svc, session := newTestService(nav)
	session.Replace(program.Program{ImageBase: 0x00400000, Width: addr.Width64})

	if res := svc.SetLocation(context.Background(), 0x100); res.Status != locwire.StatusOK {
		t.Fatalf("seed call failed: %q", res.Status)
	}
	before, _ := svc.State().Get()

	nav.allow = false
	res := svc.SetLocation(context.Background(), 0x0010115e)
	if res.Status != locwire.StatusNavigationFailed {
		t.Fatalf("unexpected status: %q", res.Status)
	}
	if res.Message != "Failed to go to address: 0x0010115e" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	after, _ := svc.State().Get()
	if after != before {
		t.Fatalf("state changed on failed navigation: before=%s after=%s", before, after)
	}
}

func TestDispatchErrorReportsNavigationFailed(t *testing.T) {
	testlog.Start(t)

	nav := &fakeNavigator{err: errors.New("ui thread gone")}
	svc, session := newTestService(nav)
	session.Replace(program.Program{ImageBase: 0x00400000, Width: addr.Width64})

	res := svc.SetLocation(context.Background(), 0x10)
	if res.Status != locwire.StatusNavigationFailed {
		t.Fatalf("unexpected status: %q", res.Status)
	}
	if _, ok := svc.State().Get(); ok {
		t.Fatalf("state must stay unset on dispatch error")
	}
}

func TestObserveUIMoveLogsToConsoleOncePerAddress(t *testing.T) {
	testlog.Start(t)

	var lines []string
	nav := &fakeNavigator{allow: true}
	session := program.NewSession()
	svc := NewService(session, NewState(), nav, func(msg string) {
		lines = append(lines, msg)
	})

	svc.ObserveUIMove(0x0040101a)
	svc.ObserveUIMove(0x0040101a)
	svc.ObserveUIMove(0x00401050)

	want := []string{"Offset: 0x0040101a", "Offset: 0x00401050"}
	if len(lines) != len(want) {
		t.Fatalf("unexpected console lines: %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d mismatch: got=%q want=%q", i, lines[i], want[i])
		}
	}
}
