// Package bomb bundles the keypad, wire puzzle, buzzer and blinker into a
// counter-strike styled game: type a code to arm the bomb, then pull the
// wires in order before the timer runs out.
package bomb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/hw"
	"github.com/sweeney/propbox/internal/module"
	"github.com/sweeney/propbox/internal/modules/blinker"
	"github.com/sweeney/propbox/internal/modules/buzzer"
	"github.com/sweeney/propbox/internal/modules/keypad"
	"github.com/sweeney/propbox/internal/modules/wires"
)

// Control keys.
const (
	SubmitKey = '#'
	ClearKey  = '*'
)

// Charset is the layout of a 3x4 phone keypad, indexed [row][col].
var Charset = [][]rune{
	[]rune("123"),
	[]rune("456"),
	[]rune("789"),
	[]rune("*0#"),
}

// Phase is where the bomb is in its game.
type Phase int

const (
	Arming Phase = iota
	Armed
	Done
)

func (p Phase) String() string {
	switch p {
	case Arming:
		return "arming"
	case Armed:
		return "armed"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Config holds the game rules.
type Config struct {
	CodeLength int
	MaxStrikes int
	Window     time.Duration
}

// DefaultConfig returns the standard rules: a 4 digit code, 3 strikes and a
// 40 second defuse window.
func DefaultConfig() Config {
	return Config{CodeLength: 4, MaxStrikes: 3, Window: 40 * time.Second}
}

// Validate rejects rules the game cannot be played with.
func (c Config) Validate() error {
	if c.CodeLength < 1 {
		return errors.New("bomb: code length must be at least 1")
	}
	if c.MaxStrikes < 1 {
		return errors.New("bomb: max strikes must be at least 1")
	}
	if c.Window <= 0 {
		return errors.New("bomb: defuse window must be positive")
	}
	return nil
}

// Parts are the collaborators a Bomb drives. Use Build to wire them from a
// gpio.Bank.
type Parts struct {
	Keypad  *keypad.Keypad
	Wires   *wires.Disconnect
	Buzzer  *buzzer.Buzzer
	Blinker *blinker.Blinker

	RGB     *hw.RGB
	Strikes *hw.StatusBar
	Ready   *hw.LED
	Armed   *hw.LED
}

// Bomb is the game module. Its own worker reads the keypad while arming and
// watches the wire puzzle and the clock once armed.
type Bomb struct {
	*module.Module

	parts Parts
	cfg   Config

	mu       sync.Mutex
	phase    Phase
	entry    []rune
	strikes  int
	deadline time.Time
}

// New creates a bomb over parts. Every part must be set.
func New(name string, parts Parts, cfg Config, opts ...module.Option) (*Bomb, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if parts.Keypad == nil || parts.Wires == nil || parts.Buzzer == nil || parts.Blinker == nil ||
		parts.RGB == nil || parts.Strikes == nil || parts.Ready == nil || parts.Armed == nil {
		return nil, errors.New("bomb: missing part")
	}
	b := &Bomb{parts: parts, cfg: cfg}
	b.Module = module.New(name, b, opts...)
	return b, nil
}

// Setup configures the indicators, begins every child and starts reading
// the keypad.
func (b *Bomb) Setup() error {
	p := b.parts
	for _, begin := range []func() error{p.RGB.Begin, p.Strikes.Begin, p.Ready.Begin, p.Armed.Begin} {
		if err := begin(); err != nil {
			return fmt.Errorf("setup indicators: %w", err)
		}
	}
	for _, child := range b.Children() {
		if err := child.Begin(); err != nil {
			return err
		}
	}

	p.RGB.Set(hw.Blue)
	p.Ready.On()
	p.Keypad.Start()
	b.Pass()
	return nil
}

// Step advances the game by one tick.
func (b *Bomb) Step(ctx context.Context) {
	switch b.Phase() {
	case Arming:
		for b.Phase() == Arming {
			r, ok := b.parts.Keypad.ReadOne()
			if !ok {
				return
			}
			b.handleKey(r)
		}
	case Armed:
		b.watch()
	}
}

func (b *Bomb) handleKey(r rune) {
	log := b.Logger()

	b.mu.Lock()
	switch r {
	case ClearKey:
		b.entry = b.entry[:0]
		b.mu.Unlock()
		log.Debug("code cleared")
		return
	case SubmitKey:
		n := len(b.entry)
		b.entry = b.entry[:0]
		if n == b.cfg.CodeLength {
			b.mu.Unlock()
			b.arm()
			return
		}
		b.strikes++
		strikes := b.strikes
		b.mu.Unlock()

		b.parts.Strikes.Next()
		log.Info("wrong code", zap.Int("length", n), zap.Int("strikes", strikes))
		if strikes >= b.cfg.MaxStrikes {
			b.Fail()
			b.finish()
		}
		return
	default:
		b.entry = append(b.entry, r)
		b.mu.Unlock()
	}
}

func (b *Bomb) arm() {
	b.mu.Lock()
	b.phase = Armed
	b.deadline = b.Clock().Now().Add(b.cfg.Window)
	b.mu.Unlock()

	p := b.parts
	p.Keypad.Destroy()
	p.Ready.Off()
	p.Armed.On()
	p.RGB.Set(hw.Yellow)
	p.Wires.Start()
	p.Blinker.Start()
	p.Buzzer.Start()
	b.Logger().Info("bomb armed", zap.Duration("window", b.cfg.Window))
}

func (b *Bomb) watch() {
	switch b.parts.Wires.State() {
	case module.Passed:
		b.Logger().Info("bomb defused")
		b.Pass()
		b.finish()
		return
	case module.Failed:
		b.Logger().Info("wrong wire pulled")
		b.Fail()
		b.finish()
		return
	}
	if b.Remaining() <= 0 {
		b.Logger().Info("bomb exploded")
		b.Fail()
		b.finish()
	}
}

func (b *Bomb) finish() {
	b.mu.Lock()
	b.phase = Done
	b.mu.Unlock()

	for _, child := range b.Children() {
		child.Destroy()
	}
	p := b.parts
	p.Blinker.Reset()
	p.Ready.Off()
	p.Armed.Off()
	if b.State() == module.Passed {
		p.RGB.Set(hw.Green)
	} else {
		p.RGB.Set(hw.Red)
	}
	b.Logger().Info("game over", zap.Stringer("state", b.State()))
	b.Destroy()
}

// Phase returns the current game phase.
func (b *Bomb) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Strikes returns how many wrong codes were submitted.
func (b *Bomb) Strikes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strikes
}

// Entry returns the code typed so far.
func (b *Bomb) Entry() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.entry)
}

// Remaining returns the time left to defuse. It is the full window until
// the bomb is armed.
func (b *Bomb) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase == Arming {
		return b.cfg.Window
	}
	left := b.deadline.Sub(b.Clock().Now())
	if left < 0 {
		return 0
	}
	return left
}

// Keypad returns the keypad child.
func (b *Bomb) Keypad() *keypad.Keypad { return b.parts.Keypad }

// Children returns the child modules in a fixed order.
func (b *Bomb) Children() []*module.Module {
	p := b.parts
	return []*module.Module{p.Keypad.Module, p.Wires.Module, p.Buzzer.Module, p.Blinker.Module}
}
