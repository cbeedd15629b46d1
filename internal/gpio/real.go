//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// Chip hands out lines of a Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
	pull Pull

	mu    sync.Mutex
	lines map[int]*Line
}

// NewChip opens the named chip (e.g. "gpiochip0"). Input lines are biased
// with pull.
func NewChip(name string, pull Pull) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{
		chip:  chip,
		pull:  pull,
		lines: make(map[int]*Line),
	}, nil
}

// Input returns the line at offset for use as an input.
func (c *Chip) Input(offset int) InputPin { return c.line(offset) }

// Output returns the line at offset for use as an output.
func (c *Chip) Output(offset int) OutputPin { return c.line(offset) }

func (c *Chip) line(offset int) *Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lines[offset]; ok {
		return l
	}
	l := &Line{chip: c, offset: offset}
	c.lines[offset] = l
	return l
}

// Close reconfigures every requested line as a biased input before releasing
// it, so the board boots into a known state, then closes the chip.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for offset, l := range c.lines {
		if l.line == nil {
			continue
		}
		if rerr := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("reconfigure line %d: %w", offset, rerr))
		}
		if cerr := l.line.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close line %d: %w", offset, cerr))
		}
		l.line = nil
	}
	if cerr := c.chip.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close chip: %w", cerr))
	}
	return err
}

func (c *Chip) biasOption() gpiocdev.LineBias {
	switch c.pull {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}

// Line is a single requested GPIO line.
type Line struct {
	chip   *Chip
	offset int

	mu   sync.Mutex
	line *gpiocdev.Line
}

// ConfigureInput requests (or reconfigures) the line as a biased input.
func (l *Line) ConfigureInput() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.line != nil {
		if err := l.line.Reconfigure(gpiocdev.AsInput, l.chip.biasOption()); err != nil {
			return fmt.Errorf("reconfigure line %d as input: %w", l.offset, err)
		}
		return nil
	}
	line, err := l.chip.chip.RequestLine(l.offset, gpiocdev.AsInput, l.chip.biasOption())
	if err != nil {
		return fmt.Errorf("request line %d: %w", l.offset, err)
	}
	l.line = line
	return nil
}

// ConfigureOutput requests (or reconfigures) the line as an output driven low.
func (l *Line) ConfigureOutput() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.line != nil {
		if err := l.line.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
			return fmt.Errorf("reconfigure line %d as output: %w", l.offset, err)
		}
		return nil
	}
	line, err := l.chip.chip.RequestLine(l.offset, gpiocdev.AsOutput(0))
	if err != nil {
		return fmt.Errorf("request line %d: %w", l.offset, err)
	}
	l.line = line
	return nil
}

// Get returns the line level.
func (l *Line) Get() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.line == nil {
		return false, ErrNotConfigured
	}
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", l.offset, err)
	}
	return v != 0, nil
}

// Set drives the line level.
func (l *Line) Set(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.line == nil {
		return ErrNotConfigured
	}
	v := 0
	if high {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("write line %d: %w", l.offset, err)
	}
	return nil
}
