// Package gpio provides digital pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// ErrNotConfigured is returned when a pin is used before it was configured.
var ErrNotConfigured = errors.New("gpio: pin not configured")

// InputPin is a digital line read by the modules.
type InputPin interface {
	// ConfigureInput requests the line as an input.
	ConfigureInput() error

	// Get returns the logical level (true = high).
	Get() (bool, error)
}

// OutputPin is a digital line driven by the modules.
type OutputPin interface {
	// ConfigureOutput requests the line as an output, initially low.
	ConfigureOutput() error

	// Set drives the line high (true) or low (false).
	Set(high bool) error
}

// Bank hands out pins by line offset.
type Bank interface {
	Input(offset int) InputPin
	Output(offset int) OutputPin

	// Close releases every line handed out by the bank.
	Close() error
}

// Pull selects the bias applied to input lines.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull converts "up", "down" or "none" into a Pull. Anything else is PullNone.
func ParsePull(s string) Pull {
	switch s {
	case "up", "UP", "pullup":
		return PullUp
	case "down", "DOWN", "pulldown":
		return PullDown
	default:
		return PullNone
	}
}

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}
