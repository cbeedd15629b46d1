// Package blinker flashes an LED with a fixed on/off pattern.
package blinker

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/hw"
	"github.com/sweeney/propbox/internal/module"
)

// Blinker toggles an LED without blocking its worker: each Step checks
// whether the current phase has run its course.
type Blinker struct {
	*module.Module

	led     *hw.LED
	on, off time.Duration

	mu      sync.Mutex
	lit     bool
	started bool
	since   time.Time
}

// New creates a blinker that keeps the LED lit for on and dark for off.
func New(name string, pin gpio.OutputPin, on, off time.Duration, opts ...module.Option) *Blinker {
	b := &Blinker{on: on, off: off}
	b.Module = module.New(name, b, opts...)
	b.led = hw.NewLED(pin, b.Logger())
	return b
}

// Setup configures the LED pin.
func (b *Blinker) Setup() error {
	return b.led.Begin()
}

// Step switches the LED once the current phase has elapsed.
func (b *Blinker) Step(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.Clock().Now()
	if !b.started {
		b.started = true
		b.setLocked(true, now)
		return
	}
	phase := b.off
	if b.lit {
		phase = b.on
	}
	if now.Sub(b.since) >= phase {
		b.setLocked(!b.lit, now)
	}
}

func (b *Blinker) setLocked(lit bool, now time.Time) {
	if lit {
		b.led.On()
	} else {
		b.led.Off()
	}
	b.lit = lit
	b.since = now
}

// Reset turns the LED off and restarts the pattern on the next Step.
func (b *Blinker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.led.Off()
	b.lit = false
	b.started = false
}

// Lit reports whether the LED is currently on.
func (b *Blinker) Lit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lit
}
