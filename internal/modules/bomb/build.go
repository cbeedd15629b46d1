package bomb

import (
	"fmt"
	"time"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/hw"
	"github.com/sweeney/propbox/internal/module"
	"github.com/sweeney/propbox/internal/modules/blinker"
	"github.com/sweeney/propbox/internal/modules/buzzer"
	"github.com/sweeney/propbox/internal/modules/keypad"
	"github.com/sweeney/propbox/internal/modules/wires"
)

// Pins maps every part of the bomb to a line offset.
type Pins struct {
	Wires      []int
	KeypadCols []int
	KeypadRows []int
	Strikes    []int

	Buzzer  int
	Blinker int
	Red     int
	Green   int
	Blue    int
	Ready   int
	Armed   int
}

// Hardware holds the bank-independent settings of the parts.
type Hardware struct {
	Debounce   time.Duration
	BuzzerTone int
	Burst      time.Duration
}

// Build wires a bomb from bank. opts apply to the bomb and its children.
func Build(name string, bank gpio.Bank, pins Pins, hwCfg Hardware, cfg Config, opts ...module.Option) (*Bomb, error) {
	logger := module.LoggerFor(name, opts...)

	cols := make([]gpio.OutputPin, len(pins.KeypadCols))
	for i, off := range pins.KeypadCols {
		cols[i] = bank.Output(off)
	}
	rows := make([]gpio.InputPin, len(pins.KeypadRows))
	for i, off := range pins.KeypadRows {
		rows[i] = bank.Input(off)
	}
	kp, err := keypad.New(name+"_keypad", cols, rows, Charset, hwCfg.Debounce, opts...)
	if err != nil {
		return nil, fmt.Errorf("build keypad: %w", err)
	}

	wirePins := make([]gpio.InputPin, len(pins.Wires))
	for i, off := range pins.Wires {
		wirePins[i] = bank.Input(off)
	}
	defuse, err := wires.New(name+"_defuse", wirePins, hwCfg.Debounce, opts...)
	if err != nil {
		return nil, fmt.Errorf("build wires: %w", err)
	}

	burst := hwCfg.Burst
	if burst <= 0 {
		burst = 100 * time.Millisecond
	}
	bz := buzzer.New(name+"_buzzer", bank.Output(pins.Buzzer), hwCfg.BuzzerTone, burst,
		append(append([]module.Option(nil), opts...), module.WithFrequency(1))...)
	bl := blinker.New(name+"_blinker", bank.Output(pins.Blinker), 500*time.Millisecond, 500*time.Millisecond, opts...)

	strikes := make([]gpio.OutputPin, len(pins.Strikes))
	for i, off := range pins.Strikes {
		strikes[i] = bank.Output(off)
	}

	parts := Parts{
		Keypad:  kp,
		Wires:   defuse,
		Buzzer:  bz,
		Blinker: bl,
		RGB:     hw.NewRGB(bank.Output(pins.Red), bank.Output(pins.Green), bank.Output(pins.Blue), logger),
		Strikes: hw.NewStatusBar(strikes, logger),
		Ready:   hw.NewLED(bank.Output(pins.Ready), logger),
		Armed:   hw.NewLED(bank.Output(pins.Armed), logger),
	}
	return New(name, parts, cfg, opts...)
}
