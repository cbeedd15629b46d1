//go:build !linux

package gpio

import "errors"

// Chip is not available on non-Linux platforms.
type Chip struct{}

// NewChip returns an error on non-Linux platforms.
func NewChip(name string, pull Pull) (*Chip, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Input is not implemented on non-Linux platforms.
func (c *Chip) Input(offset int) InputPin { return nil }

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(offset int) OutputPin { return nil }

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error { return nil }
