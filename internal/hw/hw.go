// Package hw drives simple indicator outputs: single LEDs, tri-colour LEDs
// and LED status bars. Write errors are logged and otherwise ignored.
package hw

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/logging"
)

// LED is a single on/off light.
type LED struct {
	pin    gpio.OutputPin
	logger *zap.Logger
}

// NewLED binds an LED to pin.
func NewLED(pin gpio.OutputPin, logger *zap.Logger) *LED {
	return &LED{pin: pin, logger: logging.OrNop(logger)}
}

// Begin configures the pin as an output.
func (l *LED) Begin() error {
	if err := l.pin.ConfigureOutput(); err != nil {
		return fmt.Errorf("configure led: %w", err)
	}
	return nil
}

// On turns the LED on.
func (l *LED) On() { l.set(true) }

// Off turns the LED off.
func (l *LED) Off() { l.set(false) }

func (l *LED) set(v bool) {
	if err := l.pin.Set(v); err != nil {
		l.logger.Warn("led write failed", zap.Error(err))
	}
}

// Color is a combination of the red, green and blue channels.
type Color uint8

const (
	Off     Color = 0b000
	Red     Color = 0b100
	Green   Color = 0b010
	Blue    Color = 0b001
	Yellow  Color = Red | Green
	Magenta Color = Red | Blue
	Cyan    Color = Green | Blue
	White   Color = Red | Green | Blue
)

func (c Color) String() string {
	switch c {
	case Off:
		return "off"
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Yellow:
		return "yellow"
	case Magenta:
		return "magenta"
	case Cyan:
		return "cyan"
	case White:
		return "white"
	default:
		return "unknown"
	}
}

// RGB is a tri-colour LED with one pin per channel.
type RGB struct {
	red, green, blue *LED

	mu    sync.Mutex
	color Color
}

// NewRGB binds a tri-colour LED.
func NewRGB(red, green, blue gpio.OutputPin, logger *zap.Logger) *RGB {
	return &RGB{
		red:   NewLED(red, logger),
		green: NewLED(green, logger),
		blue:  NewLED(blue, logger),
	}
}

// Begin configures all three pins.
func (r *RGB) Begin() error {
	for _, l := range []*LED{r.red, r.green, r.blue} {
		if err := l.Begin(); err != nil {
			return err
		}
	}
	return nil
}

// Set shows color.
func (r *RGB) Set(c Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.red.set(c&Red != 0)
	r.green.set(c&Green != 0)
	r.blue.set(c&Blue != 0)
	r.color = c
}

// Color returns the colour last shown.
func (r *RGB) Color() Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.color
}

// StatusBar is a row of LEDs lit from the first one onwards.
type StatusBar struct {
	leds []*LED

	mu  sync.Mutex
	lit int
}

// NewStatusBar binds one LED per pin, in display order.
func NewStatusBar(pins []gpio.OutputPin, logger *zap.Logger) *StatusBar {
	leds := make([]*LED, len(pins))
	for i, p := range pins {
		leds[i] = NewLED(p, logger)
	}
	return &StatusBar{leds: leds}
}

// Begin configures every LED.
func (s *StatusBar) Begin() error {
	for _, l := range s.leds {
		if err := l.Begin(); err != nil {
			return err
		}
	}
	return nil
}

// Next lights one more LED. It is a no-op when the bar is full.
func (s *StatusBar) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lit < len(s.leds) {
		s.leds[s.lit].On()
		s.lit++
	}
}

// Back turns off the last lit LED. It is a no-op when the bar is empty.
func (s *StatusBar) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lit > 0 {
		s.lit--
		s.leds[s.lit].Off()
	}
}

// Clear turns every LED off.
func (s *StatusBar) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leds {
		l.Off()
	}
	s.lit = 0
}

// Level returns how many LEDs are lit.
func (s *StatusBar) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lit
}

// Len returns the number of LEDs in the bar.
func (s *StatusBar) Len() int { return len(s.leds) }
