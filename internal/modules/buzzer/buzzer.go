// Package buzzer drives a passive buzzer with a square wave.
package buzzer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/module"
)

// Buzzer plays a tone in bursts, one burst per Step.
// The worker should run at a priority-insensitive rate; a burst shorter than
// the worker period leaves room for other goroutines.
type Buzzer struct {
	*module.Module

	pin   gpio.OutputPin
	tone  int
	burst time.Duration
	muted atomic.Bool
	waves atomic.Int64
}

// New creates a buzzer that plays tone Hz for burst on every Step.
func New(name string, pin gpio.OutputPin, tone int, burst time.Duration, opts ...module.Option) *Buzzer {
	if tone < 1 {
		tone = 1
	}
	b := &Buzzer{pin: pin, tone: tone, burst: burst}
	b.Module = module.New(name, b, opts...)
	return b
}

// Setup configures the buzzer pin.
func (b *Buzzer) Setup() error {
	return b.pin.ConfigureOutput()
}

// Step plays one burst. It returns early when the worker is destroyed and
// always leaves the pin low.
func (b *Buzzer) Step(ctx context.Context) {
	defer b.write(false)
	if b.muted.Load() {
		return
	}

	half := time.Second / time.Duration(2*b.tone)
	clk := b.Clock()
	end := clk.Now().Add(b.burst)
	for clk.Now().Before(end) {
		b.write(true)
		if !module.Sleep(ctx, clk, half) {
			return
		}
		b.write(false)
		if !module.Sleep(ctx, clk, half) {
			return
		}
		b.waves.Add(1)
	}
}

func (b *Buzzer) write(high bool) {
	if err := b.pin.Set(high); err != nil {
		b.Logger().Warn("buzzer write failed", zap.Error(err))
	}
}

// Mute silences the buzzer from the next Step on.
func (b *Buzzer) Mute() { b.muted.Store(true) }

// Unmute re-enables the tone.
func (b *Buzzer) Unmute() { b.muted.Store(false) }

// Muted reports whether the buzzer is muted.
func (b *Buzzer) Muted() bool { return b.muted.Load() }

// Waves returns how many full square-wave periods were played.
func (b *Buzzer) Waves() int64 { return b.waves.Load() }
