// Package wires implements the wire-disconnect puzzle: every wire has to be
// pulled in the configured order. Pulling all of them in order passes the
// module; pulling any out of order fails it.
package wires

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/input"
	"github.com/sweeney/propbox/internal/module"
)

// Disconnect is the wire-disconnect module.
type Disconnect struct {
	*module.Module

	wires []*input.Debounced[int, struct{}]

	mu           sync.Mutex
	accumulated  int
	disconnected int
}

// New creates a puzzle over pins, which must be pulled in slice order.
// A connected wire reads high.
func New(name string, pins []gpio.InputPin, debounce time.Duration, opts ...module.Option) (*Disconnect, error) {
	if len(pins) == 0 {
		return nil, errors.New("wires: at least one wire is required")
	}
	d := &Disconnect{}
	d.Module = module.New(name, d, opts...)

	d.wires = make([]*input.Debounced[int, struct{}], len(pins))
	for i, p := range pins {
		d.wires[i] = input.New[int, struct{}](p,
			input.WithDelay(debounce),
			input.WithClock(d.Clock()),
			input.WithLogger(d.Logger()),
			input.WithMetrics(d.Metrics()),
		)
	}
	return d, nil
}

// Setup binds the wire pins, registers the disconnect callbacks and makes
// the module active.
func (d *Disconnect) Setup() error {
	for i, w := range d.wires {
		if err := w.Begin(); err != nil {
			return fmt.Errorf("begin wire %d: %w", i+1, err)
		}
		w.OnFalling(d.onDisconnect)
	}
	d.Pass()
	return nil
}

func (d *Disconnect) onDisconnect(wire int) struct{} {
	d.mu.Lock()
	d.accumulated++
	d.disconnected = wire
	d.mu.Unlock()
	d.Logger().Info("wire disconnected", zap.Int("wire", wire))
	return struct{}{}
}

// Step samples every wire and applies the game rule.
func (d *Disconnect) Step(ctx context.Context) {
	for i, w := range d.wires {
		w.Update(i + 1)
	}

	accumulated, disconnected := d.Progress()
	if accumulated != disconnected {
		d.Fail()
	} else if disconnected == len(d.wires) {
		d.Pass()
	}

	switch d.State() {
	case module.Passed:
		d.Logger().Info("passed module")
	case module.Failed:
		d.Logger().Info("failed module", zap.Int("pulled", accumulated), zap.Int("last_wire", disconnected))
	default:
		return
	}
	d.Destroy()
}

// Progress returns how many disconnections were seen and which wire (1-based)
// was pulled last.
func (d *Disconnect) Progress() (accumulated, disconnected int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accumulated, d.disconnected
}

// Wires returns the number of wires in the puzzle.
func (d *Disconnect) Wires() int { return len(d.wires) }
