package wires

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/module"
)

const debounce = 100 * time.Millisecond

func setup(t *testing.T, n int) (*Disconnect, []*gpio.FakePin, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	fakes := make([]*gpio.FakePin, n)
	pins := make([]gpio.InputPin, n)
	for i := range fakes {
		fakes[i] = gpio.NewFakePin(true) // connected
		pins[i] = fakes[i]
	}
	d, err := New("wires", pins, debounce, module.WithClock(clk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return d, fakes, clk
}

// pull disconnects wire i (0-based), runs a step and lets the debounce window pass.
func pull(d *Disconnect, fakes []*gpio.FakePin, clk *clock.Mock, i int) module.State {
	fakes[i].SetLevel(false)
	d.Step(context.Background())
	clk.Add(debounce)
	return d.State()
}

func TestNewRequiresWires(t *testing.T) {
	if _, err := New("wires", nil, debounce); err == nil {
		t.Error("expected error with no wires")
	}
}

func TestSetupActivates(t *testing.T) {
	d, fakes, _ := setup(t, 3)
	if d.State() != module.Active {
		t.Errorf("expected ACTIVE after setup, got %s", d.State())
	}
	for i, f := range fakes {
		if f.Mode() != gpio.ModeInput {
			t.Errorf("wire %d not configured as input", i)
		}
	}
}

func TestIdleStaysActive(t *testing.T) {
	d, _, clk := setup(t, 3)
	for i := 0; i < 10; i++ {
		d.Step(context.Background())
		clk.Add(10 * time.Millisecond)
	}
	if d.State() != module.Active {
		t.Errorf("expected ACTIVE with no wires pulled, got %s", d.State())
	}
}

func TestPullInOrderPasses(t *testing.T) {
	d, fakes, clk := setup(t, 3)

	if s := pull(d, fakes, clk, 0); s != module.Active {
		t.Fatalf("after wire 1: expected ACTIVE, got %s", s)
	}
	if s := pull(d, fakes, clk, 1); s != module.Active {
		t.Fatalf("after wire 2: expected ACTIVE, got %s", s)
	}
	if s := pull(d, fakes, clk, 2); s != module.Passed {
		t.Fatalf("after wire 3: expected PASSED, got %s", s)
	}

	acc, last := d.Progress()
	if acc != 3 || last != 3 {
		t.Errorf("expected progress (3, 3), got (%d, %d)", acc, last)
	}
}

func TestPullOutOfOrderFails(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{"second first", []int{1}},
		{"last first", []int{2}},
		{"skip one", []int{0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, fakes, clk := setup(t, 3)
			var s module.State
			for _, i := range tt.order {
				s = pull(d, fakes, clk, i)
			}
			if s != module.Failed {
				t.Errorf("expected FAILED, got %s", s)
			}
		})
	}
}

func TestFailedIsSticky(t *testing.T) {
	d, fakes, clk := setup(t, 3)
	pull(d, fakes, clk, 1)
	if d.State() != module.Failed {
		t.Fatalf("expected FAILED, got %s", d.State())
	}

	// Reconnecting and pulling the rest cannot recover the module
	fakes[1].SetLevel(true)
	d.Step(context.Background())
	clk.Add(debounce)
	pull(d, fakes, clk, 0)
	pull(d, fakes, clk, 1)
	pull(d, fakes, clk, 2)
	if d.State() != module.Failed {
		t.Errorf("expected FAILED to stick, got %s", d.State())
	}
}

func TestReconnectAndPullAgainFails(t *testing.T) {
	d, fakes, clk := setup(t, 3)
	pull(d, fakes, clk, 0)

	fakes[0].SetLevel(true)
	d.Step(context.Background())
	clk.Add(debounce)

	if s := pull(d, fakes, clk, 0); s != module.Failed {
		t.Errorf("expected FAILED after pulling wire 1 twice, got %s", s)
	}
}

func TestBounceInsideWindowIgnored(t *testing.T) {
	d, fakes, clk := setup(t, 3)

	fakes[0].SetLevel(false)
	d.Step(context.Background())
	// contact bounce: reconnect and pull again inside the window
	fakes[0].SetLevel(true)
	d.Step(context.Background())
	fakes[0].SetLevel(false)
	d.Step(context.Background())
	clk.Add(debounce)
	d.Step(context.Background())

	acc, last := d.Progress()
	if acc != 1 || last != 1 {
		t.Errorf("expected a single disconnection, got (%d, %d)", acc, last)
	}
	if d.State() != module.Active {
		t.Errorf("expected ACTIVE, got %s", d.State())
	}
}

func TestWorkerStopsAtTerminalState(t *testing.T) {
	fakes := []*gpio.FakePin{gpio.NewFakePin(true), gpio.NewFakePin(true)}
	d, err := New("wires", []gpio.InputPin{fakes[0], fakes[1]}, 0, module.WithFrequency(200))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Begin(); err != nil {
		t.Fatal(err)
	}
	d.Start()

	fakes[1].SetLevel(false)
	select {
	case <-d.Stopped():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after failing")
	}
	if d.State() != module.Failed {
		t.Errorf("expected FAILED, got %s", d.State())
	}
	if d.Running() {
		t.Error("worker handle should be released")
	}
}

func TestSetupWrapsWireError(t *testing.T) {
	fakes := []*gpio.FakePin{gpio.NewFakePin(true), gpio.NewFakePin(true)}
	fakes[1].ConfigureError = errors.New("line busy")
	d, err := New("wires", []gpio.InputPin{fakes[0], fakes[1]}, debounce)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = d.Begin()
	if !errors.Is(err, fakes[1].ConfigureError) {
		t.Fatalf("expected wrapped configure error, got %v", err)
	}
	if !strings.Contains(err.Error(), "begin wire 2") {
		t.Errorf("error does not name the wire: %v", err)
	}
	if d.State() != module.Invalid {
		t.Errorf("expected INVALID after failed setup, got %s", d.State())
	}
}
