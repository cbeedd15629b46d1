// Package keypad scans a matrix keypad and buffers pressed keys for a
// consumer on another goroutine.
package keypad

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/input"
	"github.com/sweeney/propbox/internal/module"
	"github.com/sweeney/propbox/internal/queue"
)

// BufferSize is the number of keys held before new presses are dropped.
const BufferSize = 16

// Key identifies a matrix cell.
type Key struct {
	Col, Row int
}

// cell is one key: its column is powered while its row is sampled.
type cell struct {
	key    Key
	power  gpio.OutputPin
	button *input.Debounced[Key, struct{}]
}

// Keypad is a module that polls the matrix and queues pressed keys.
type Keypad struct {
	*module.Module

	cells   [][]cell // [row][col]
	charset [][]rune

	mu      sync.Mutex
	buffer  *queue.Bounded[rune]
	dropped uint64
	onKey   []func(rune)
}

// New builds a keypad with one column pin per charset column and one row pin
// per charset row.
func New(name string, cols []gpio.OutputPin, rows []gpio.InputPin, charset [][]rune, debounce time.Duration, opts ...module.Option) (*Keypad, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("keypad: need at least one row and column, got %dx%d", len(cols), len(rows))
	}
	if len(charset) != len(rows) {
		return nil, fmt.Errorf("keypad: charset has %d rows, want %d", len(charset), len(rows))
	}
	for r, line := range charset {
		if len(line) != len(cols) {
			return nil, fmt.Errorf("keypad: charset row %d has %d columns, want %d", r, len(line), len(cols))
		}
	}

	k := &Keypad{
		charset: charset,
		buffer:  queue.New[rune](BufferSize),
	}
	k.Module = module.New(name, k, opts...)

	k.cells = make([][]cell, len(rows))
	for r := range rows {
		k.cells[r] = make([]cell, len(cols))
		for c := range cols {
			k.cells[r][c] = cell{
				key:   Key{Col: c, Row: r},
				power: cols[c],
				button: input.New[Key, struct{}](rows[r],
					input.WithDelay(debounce),
					input.WithClock(k.Clock()),
					input.WithLogger(k.Logger()),
					input.WithMetrics(k.Metrics()),
				),
			}
		}
	}
	return k, nil
}

// Setup configures the column outputs and row inputs.
func (k *Keypad) Setup() error {
	for _, row := range k.cells {
		for _, c := range row {
			if err := c.power.ConfigureOutput(); err != nil {
				return fmt.Errorf("configure column %d: %w", c.key.Col, err)
			}
			if err := c.button.Begin(); err != nil {
				return fmt.Errorf("begin row %d: %w", c.key.Row, err)
			}
			c.button.OnRising(k.press)
		}
	}
	return nil
}

// Step scans every cell once.
func (k *Keypad) Step(ctx context.Context) {
	for _, row := range k.cells {
		for _, c := range row {
			k.scan(c)
		}
	}
}

func (k *Keypad) scan(c cell) {
	if err := c.power.Set(true); err != nil {
		k.Logger().Warn("power column failed", zap.Int("col", c.key.Col), zap.Error(err))
		return
	}
	c.button.Update(c.key)
	if err := c.power.Set(false); err != nil {
		k.Logger().Warn("unpower column failed", zap.Int("col", c.key.Col), zap.Error(err))
	}
}

func (k *Keypad) press(key Key) struct{} {
	r := k.charset[key.Row][key.Col]

	k.mu.Lock()
	before := k.buffer.Len()
	k.buffer.Push(r)
	dropped := k.buffer.Len() == before
	if dropped {
		k.dropped++
	}
	observers := k.onKey
	k.mu.Unlock()

	if dropped {
		k.Logger().Warn("keypad buffer full, key dropped", zap.String("key", string(r)))
		k.Metrics().Dropped(k.Name())
		return struct{}{}
	}
	k.Logger().Debug("new value in keypad buffer", zap.String("key", string(r)))
	for _, fn := range observers {
		fn(r)
	}
	return struct{}{}
}

// OnKey registers fn to run for every buffered key, on the scanning goroutine.
func (k *Keypad) OnKey(fn func(rune)) {
	k.mu.Lock()
	k.onKey = append(k.onKey, fn)
	k.mu.Unlock()
}

// ReadOne removes and returns the oldest buffered key.
func (k *Keypad) ReadOne() (rune, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.buffer.Empty() {
		return 0, false
	}
	r := k.buffer.Front()
	k.buffer.Pop()
	return r, true
}

// Available reports whether at least one key is buffered.
func (k *Keypad) Available() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.buffer.Empty()
}

// Len returns the number of buffered keys.
func (k *Keypad) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.buffer.Len()
}

// Dropped returns how many keys were lost to a full buffer.
func (k *Keypad) Dropped() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dropped
}

// Clear discards every buffered key.
func (k *Keypad) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for !k.buffer.Empty() {
		k.buffer.Pop()
	}
}
