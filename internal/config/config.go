// Package config loads daemon settings from PROPBOX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/multierr"
)

// Games that can be run.
const (
	GameBomb  = "bomb"
	GameWires = "wires"
)

// Config holds every daemon setting. Command-line flags override it.
type Config struct {
	Game      string        `env:"PROPBOX_GAME"      envDefault:"bomb"`
	Chip      string        `env:"PROPBOX_GPIO_CHIP" envDefault:"gpiochip0"`
	Pull      string        `env:"PROPBOX_GPIO_PULL" envDefault:"down"` // inputs are active-high
	HTTPAddr  string        `env:"PROPBOX_HTTP"      envDefault:":80"`
	Broker    string        `env:"PROPBOX_BROKER"`
	Heartbeat time.Duration `env:"PROPBOX_HEARTBEAT" envDefault:"15m"`
	Poll      time.Duration `env:"PROPBOX_POLL"      envDefault:"100ms"`
	LogLevel  string        `env:"PROPBOX_LOG_LEVEL" envDefault:"info"`
	DevLog    bool          `env:"PROPBOX_LOG_DEV"`

	Frequency  int           `env:"PROPBOX_FREQUENCY"   envDefault:"10"`
	Debounce   time.Duration `env:"PROPBOX_DEBOUNCE"    envDefault:"100ms"`
	CodeLength int           `env:"PROPBOX_CODE_LENGTH" envDefault:"4"`
	MaxStrikes int           `env:"PROPBOX_MAX_STRIKES" envDefault:"3"`
	Window     time.Duration `env:"PROPBOX_WINDOW"      envDefault:"40s"`
	BuzzerTone int           `env:"PROPBOX_BUZZER_TONE" envDefault:"10000"`

	Pins Pins
}

// Pins are GPIO line offsets on Chip.
type Pins struct {
	Wires      []int `env:"PROPBOX_PIN_WIRES"       envDefault:"5,6,13"           envSeparator:","`
	KeypadCols []int `env:"PROPBOX_PIN_KEYPAD_COLS" envDefault:"17,27,22"         envSeparator:","`
	KeypadRows []int `env:"PROPBOX_PIN_KEYPAD_ROWS" envDefault:"18,23,24,25"      envSeparator:","`
	Strikes    []int `env:"PROPBOX_PIN_STRIKES"     envDefault:"16,20,21"         envSeparator:","`
	Buzzer     int   `env:"PROPBOX_PIN_BUZZER"      envDefault:"12"`
	Blinker    int   `env:"PROPBOX_PIN_BLINKER"     envDefault:"26"`
	Red        int   `env:"PROPBOX_PIN_RED"         envDefault:"2"`
	Green      int   `env:"PROPBOX_PIN_GREEN"       envDefault:"3"`
	Blue       int   `env:"PROPBOX_PIN_BLUE"        envDefault:"4"`
	Ready      int   `env:"PROPBOX_PIN_READY"       envDefault:"19"`
	Armed      int   `env:"PROPBOX_PIN_ARMED"       envDefault:"9"`
}

// Load parses the environment. It does not validate, so that command-line
// flags can still override a bad value; call Validate once they are applied.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom is Load with an explicit environment, for tests.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports every impossible setting at once.
func (c Config) Validate() error {
	var err error
	if c.Game != GameBomb && c.Game != GameWires {
		err = multierr.Append(err, fmt.Errorf("unknown game %q", c.Game))
	}
	switch c.Pull {
	case "up", "down", "none":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown pull %q", c.Pull))
	}
	if c.Poll <= 0 {
		err = multierr.Append(err, errors.New("poll interval must be positive"))
	}
	if c.Heartbeat < 0 {
		err = multierr.Append(err, errors.New("heartbeat must not be negative"))
	}
	if c.Frequency < 1 {
		err = multierr.Append(err, errors.New("frequency must be at least 1 Hz"))
	}
	if c.Debounce < 0 {
		err = multierr.Append(err, errors.New("debounce must not be negative"))
	}
	if c.CodeLength < 1 {
		err = multierr.Append(err, errors.New("code length must be at least 1"))
	}
	if c.MaxStrikes < 1 {
		err = multierr.Append(err, errors.New("max strikes must be at least 1"))
	}
	if c.Window <= 0 {
		err = multierr.Append(err, errors.New("defuse window must be positive"))
	}
	if c.BuzzerTone < 1 {
		err = multierr.Append(err, errors.New("buzzer tone must be at least 1 Hz"))
	}
	if len(c.Pins.Wires) == 0 {
		err = multierr.Append(err, errors.New("at least one wire pin is required"))
	}
	if c.Game == GameBomb {
		if len(c.Pins.KeypadCols) != 3 || len(c.Pins.KeypadRows) != 4 {
			err = multierr.Append(err, fmt.Errorf("keypad needs 3 column and 4 row pins, got %d and %d",
				len(c.Pins.KeypadCols), len(c.Pins.KeypadRows)))
		}
		if len(c.Pins.Strikes) < c.MaxStrikes {
			err = multierr.Append(err, fmt.Errorf("need %d strike pins, got %d", c.MaxStrikes, len(c.Pins.Strikes)))
		}
	}
	if dup := c.Pins.duplicate(c.Game); dup >= 0 {
		err = multierr.Append(err, fmt.Errorf("pin %d is assigned twice", dup))
	}
	return err
}

// duplicate returns a line offset used by more than one part of game, or -1.
func (p Pins) duplicate(game string) int {
	lines := append([]int(nil), p.Wires...)
	if game == GameBomb {
		lines = append(lines, p.KeypadCols...)
		lines = append(lines, p.KeypadRows...)
		lines = append(lines, p.Strikes...)
		lines = append(lines, p.Buzzer, p.Blinker, p.Red, p.Green, p.Blue, p.Ready, p.Armed)
	}
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if seen[l] {
			return l
		}
		seen[l] = true
	}
	return -1
}
