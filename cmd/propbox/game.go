package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/config"
	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/module"
	"github.com/sweeney/propbox/internal/modules/bomb"
	"github.com/sweeney/propbox/internal/modules/wires"
	"github.com/sweeney/propbox/internal/mqtt"
	"github.com/sweeney/propbox/internal/status"
)

// game is what the supervisor runs: a root module to begin and start, every
// module to watch, and the live attributes the game wants on the board.
type game struct {
	root     *module.Module
	modules  []*module.Module
	describe map[string]string
	attrs    func() []status.Attribute
}

func newGame(cfg config.Config, bank gpio.Bank, publisher mqtt.Publisher, session string, opts ...module.Option) (*game, error) {
	switch cfg.Game {
	case config.GameWires:
		return newWiresGame(cfg, bank, opts...)
	case config.GameBomb:
		return newBombGame(cfg, bank, publisher, session, opts...)
	default:
		return nil, fmt.Errorf("unknown game %q", cfg.Game)
	}
}

func newWiresGame(cfg config.Config, bank gpio.Bank, opts ...module.Option) (*game, error) {
	pins := make([]gpio.InputPin, len(cfg.Pins.Wires))
	for i, off := range cfg.Pins.Wires {
		pins[i] = bank.Input(off)
	}
	d, err := wires.New("wires", pins, cfg.Debounce, opts...)
	if err != nil {
		return nil, err
	}
	return &game{
		root:     d.Module,
		modules:  []*module.Module{d.Module},
		describe: map[string]string{"wires": "wire puzzle"},
		attrs: func() []status.Attribute {
			pulled, last := d.Progress()
			return []status.Attribute{
				{Name: "wires.pulled", Value: fmt.Sprintf("%d/%d", pulled, d.Wires()), Desc: "wires disconnected"},
				{Name: "wires.last", Value: strconv.Itoa(last), Desc: "last wire pulled"},
			}
		},
	}, nil
}

func newBombGame(cfg config.Config, bank gpio.Bank, publisher mqtt.Publisher, session string, opts ...module.Option) (*game, error) {
	p := cfg.Pins
	b, err := bomb.Build("cs", bank, bomb.Pins{
		Wires:      p.Wires,
		KeypadCols: p.KeypadCols,
		KeypadRows: p.KeypadRows,
		Strikes:    p.Strikes,
		Buzzer:     p.Buzzer,
		Blinker:    p.Blinker,
		Red:        p.Red,
		Green:      p.Green,
		Blue:       p.Blue,
		Ready:      p.Ready,
		Armed:      p.Armed,
	}, bomb.Hardware{
		Debounce:   cfg.Debounce,
		BuzzerTone: cfg.BuzzerTone,
	}, bomb.Config{
		CodeLength: cfg.CodeLength,
		MaxStrikes: cfg.MaxStrikes,
		Window:     cfg.Window,
	}, opts...)
	if err != nil {
		return nil, err
	}

	kp := b.Keypad()
	kp.OnKey(func(r rune) {
		event := mqtt.KeyEvent{Timestamp: time.Now(), Module: kp.Name(), Key: r, Session: session}
		if err := publisher.PublishKey(event); err != nil {
			kp.Logger().Warn("publish key failed", zap.Error(err))
		}
	})

	return &game{
		root:    b.Module,
		modules: append([]*module.Module{b.Module}, b.Children()...),
		describe: map[string]string{
			"cs":         "bomb",
			"cs_keypad":  "arming keypad",
			"cs_defuse":  "defuse wires",
			"cs_buzzer":  "countdown buzzer",
			"cs_blinker": "armed indicator",
		},
		attrs: func() []status.Attribute {
			return []status.Attribute{
				{Name: "cs.phase", Value: b.Phase().String(), Desc: "bomb phase"},
				{Name: "cs.entry", Value: strings.Repeat("*", len([]rune(b.Entry()))), Desc: "code typed so far"},
				{Name: "cs.strikes", Value: fmt.Sprintf("%d/%d", b.Strikes(), cfg.MaxStrikes), Desc: "wrong codes"},
				{Name: "cs.remaining", Value: b.Remaining().Truncate(time.Second).String(), Desc: "time left to defuse"},
			}
		},
	}, nil
}

// printWires reads every wire once and reports whether it is connected.
func printWires(w io.Writer, bank gpio.Bank, lines []int) error {
	for i, off := range lines {
		pin := bank.Input(off)
		if err := pin.ConfigureInput(); err != nil {
			return fmt.Errorf("configure wire %d: %w", i+1, err)
		}
		v, err := pin.Get()
		if err != nil {
			return fmt.Errorf("read wire %d: %w", i+1, err)
		}
		state := "pulled"
		if v {
			state = "connected"
		}
		fmt.Fprintf(w, "wire %d (line %d): %s\n", i+1, off, state)
	}
	return nil
}
