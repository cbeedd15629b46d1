package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/hw"
	"github.com/sweeney/propbox/internal/logic"
	"github.com/sweeney/propbox/internal/module"
	"github.com/sweeney/propbox/internal/modules/blinker"
	"github.com/sweeney/propbox/internal/modules/bomb"
	"github.com/sweeney/propbox/internal/modules/buzzer"
	"github.com/sweeney/propbox/internal/modules/keypad"
	"github.com/sweeney/propbox/internal/modules/wires"
	"github.com/sweeney/propbox/internal/mqtt"
)

const hz = 50

type harness struct {
	bomb   *bomb.Bomb
	matrix *keypad.FakeMatrix
	wires  []*gpio.FakePin
	rgb    *hw.RGB
}

func newHarness(t *testing.T, window time.Duration) *harness {
	t.Helper()
	opts := []module.Option{module.WithFrequency(hz)}

	matrix := keypad.NewFakeMatrix(3, 4)
	kp, err := keypad.New("cs_keypad", matrix.ColPins(), matrix.RowPins(), bomb.Charset, 0, opts...)
	require.NoError(t, err)

	wirePins := []*gpio.FakePin{gpio.NewFakePin(true), gpio.NewFakePin(true), gpio.NewFakePin(true)}
	defuse, err := wires.New("cs_defuse", []gpio.InputPin{wirePins[0], wirePins[1], wirePins[2]}, 0, opts...)
	require.NoError(t, err)

	bank := gpio.NewFakeBank()
	rgb := hw.NewRGB(bank.Output(20), bank.Output(21), bank.Output(22), nil)
	b, err := bomb.New("cs", bomb.Parts{
		Keypad:  kp,
		Wires:   defuse,
		Buzzer:  buzzer.New("cs_buzzer", bank.Output(10), 1000, 5*time.Millisecond, module.WithFrequency(5)),
		Blinker: blinker.New("cs_blinker", bank.Output(11), 50*time.Millisecond, 50*time.Millisecond, opts...),
		RGB:     rgb,
		Strikes: hw.NewStatusBar([]gpio.OutputPin{bank.Output(30), bank.Output(31), bank.Output(32)}, nil),
		Ready:   hw.NewLED(bank.Output(40), nil),
		Armed:   hw.NewLED(bank.Output(41), nil),
	}, bomb.Config{CodeLength: 4, MaxStrikes: 3, Window: window}, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		b.Destroy()
		for _, c := range b.Children() {
			c.Destroy()
		}
	})
	return &harness{bomb: b, matrix: matrix, wires: wirePins, rgb: rgb}
}

// press holds a key long enough for the keypad worker to scan it twice.
func (h *harness) press(col, row int) {
	h.matrix.Press(col, row)
	time.Sleep(4 * time.Second / hz)
	h.matrix.Release(col, row)
	time.Sleep(4 * time.Second / hz)
}

func (h *harness) typeCode(t *testing.T, code string) {
	t.Helper()
	for _, k := range code {
		found := false
		for r, line := range bomb.Charset {
			for c, ch := range line {
				if ch == k {
					h.press(c, r)
					found = true
				}
			}
		}
		require.True(t, found, "no key %q", k)
	}
}

// watch polls module states like the supervisor does and publishes changes.
func watch(ctx context.Context, modules []*module.Module, pub mqtt.Publisher) <-chan struct{} {
	done := make(chan struct{})
	w := logic.NewWatcher(time.Now())
	sample := func() []logic.Sample {
		out := make([]logic.Sample, len(modules))
		for i, m := range modules {
			out[i] = logic.Sample{Module: m.Name(), State: m.State().String()}
		}
		return out
	}
	w.Process(time.Now(), sample())

	go func() {
		defer close(done)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, e := range w.Process(now, sample()) {
					pub.Publish(mqtt.StateEvent{Timestamp: e.Timestamp, Module: e.Module, From: e.From, To: e.To})
				}
			}
		}
	}()
	return done
}

// TestIntegrationDefuse arms the bomb from the keypad and defuses it by
// pulling the wires in order, with every module on its own worker.
func TestIntegrationDefuse(t *testing.T) {
	h := newHarness(t, time.Minute)
	require.NoError(t, h.bomb.Begin())
	h.bomb.Start()

	pub := mqtt.NewFakePublisher()
	ctx, cancel := context.WithCancel(context.Background())
	done := watch(ctx, append([]*module.Module{h.bomb.Module}, h.bomb.Children()...), pub)

	h.typeCode(t, "2468#")
	require.Eventually(t, func() bool { return h.bomb.Phase() == bomb.Armed }, 5*time.Second, 10*time.Millisecond)

	for _, w := range h.wires {
		w.SetLevel(false)
		time.Sleep(4 * time.Second / hz)
	}

	require.Eventually(t, func() bool { return h.bomb.State() == module.Passed }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, hw.Green, h.rgb.Color())
	require.Eventually(t, func() bool {
		for _, c := range append(h.bomb.Children(), h.bomb.Module) {
			if c.Running() {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond, "every worker should be released")

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	final := map[string]string{}
	for _, e := range pub.StateEvents() {
		final[e.Module] = e.To
	}
	assert.Equal(t, "PASSED", final["cs"])
	assert.Equal(t, "PASSED", final["cs_defuse"])
}

// TestIntegrationStrikesOut fails the bomb with three wrong codes.
func TestIntegrationStrikesOut(t *testing.T) {
	h := newHarness(t, time.Minute)
	require.NoError(t, h.bomb.Begin())
	h.bomb.Start()

	h.typeCode(t, "1#1#1#")

	require.Eventually(t, func() bool { return h.bomb.State() == module.Failed }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, h.bomb.Strikes())
	assert.Equal(t, hw.Red, h.rgb.Color())
}

// TestIntegrationTimeout lets the defuse window run out.
func TestIntegrationTimeout(t *testing.T) {
	h := newHarness(t, 200*time.Millisecond)
	require.NoError(t, h.bomb.Begin())
	h.bomb.Start()

	h.typeCode(t, "0000#")

	require.Eventually(t, func() bool { return h.bomb.State() == module.Failed }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, bomb.Done, h.bomb.Phase())
	assert.Equal(t, time.Duration(0), h.bomb.Remaining())
}
