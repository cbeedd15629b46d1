package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/logging"
	"github.com/sweeney/propbox/internal/metrics"
)

// DefaultDelay is the quiet period applied after an accepted edge.
const DefaultDelay = 100 * time.Millisecond

// Debounced samples a binary input and calls back on edges. A is the argument
// passed through Update to the callback, R its result; use struct{} for
// either when unused.
//
// After a rising or falling edge, new samples are ignored until the quiet
// period elapses. The deadline is set when the change is seen, so calls
// inside the window cost no I/O.
type Debounced[A, R any] struct {
	pin     gpio.InputPin
	delay   time.Duration
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      bool
	delayUntil time.Time
	callbacks  [4]func(A) R
}

// Option configures a Debounced input.
type Option func(*options)

type options struct {
	delay   time.Duration
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// WithDelay sets the quiet period. Zero disables debouncing.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger used to report read errors.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records accepted edges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a debounced input bound to pin.
func New[A, R any](pin gpio.InputPin, opts ...Option) *Debounced[A, R] {
	o := options{delay: DefaultDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	return &Debounced[A, R]{
		pin:     pin,
		delay:   o.delay,
		clock:   o.clock,
		logger:  logging.OrNop(o.logger),
		metrics: o.metrics,
	}
}

// Begin configures the pin as an input and takes the initial sample.
func (d *Debounced[A, R]) Begin() error {
	if err := d.pin.ConfigureInput(); err != nil {
		return fmt.Errorf("configure input: %w", err)
	}
	d.ReadNewState()
	return nil
}

// ReadNewState samples the pin if the quiet period has elapsed and returns
// the stored sample, which may be stale. A failed read keeps the stored value.
func (d *Debounced[A, R]) ReadNewState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readLocked()
}

func (d *Debounced[A, R]) readLocked() bool {
	if d.clock.Now().Before(d.delayUntil) {
		return d.state
	}
	v, err := d.pin.Get()
	if err != nil {
		d.logger.Warn("input read failed", zap.Error(err))
		return d.state
	}
	d.state = v
	return d.state
}

// CurrentState returns the stored sample without touching the pin.
func (d *Debounced[A, R]) CurrentState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// StateChange classifies the stored sample against a fresh one. Rising and
// falling edges arm the quiet period.
func (d *Debounced[A, R]) StateChange() Edge {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changeLocked()
}

func (d *Debounced[A, R]) changeLocked() Edge {
	previous := d.state
	e := Classify(previous, d.readLocked())
	if e.Changed() {
		d.delayUntil = d.clock.Now().Add(d.delay)
		d.metrics.Edge(e.String())
	}
	return e
}

// Update classifies the current edge and runs its callback with arg.
// It returns the callback result and true, or the zero R and false when no
// callback is registered for the edge.
func (d *Debounced[A, R]) Update(arg A) (R, bool) {
	d.mu.Lock()
	e := d.changeLocked()
	cb := d.callbacks[e]
	d.mu.Unlock()

	if cb == nil {
		var zero R
		return zero, false
	}
	return cb(arg), true
}

// OnRising sets the callback for low -> high. Nil clears it.
func (d *Debounced[A, R]) OnRising(fn func(A) R) { d.set(Rising, fn) }

// OnFalling sets the callback for high -> low. Nil clears it.
func (d *Debounced[A, R]) OnFalling(fn func(A) R) { d.set(Falling, fn) }

// OnPressed sets the callback for high -> high. Nil clears it.
func (d *Debounced[A, R]) OnPressed(fn func(A) R) { d.set(Pressed, fn) }

// OnReleased sets the callback for low -> low. Nil clears it.
func (d *Debounced[A, R]) OnReleased(fn func(A) R) { d.set(Released, fn) }

func (d *Debounced[A, R]) set(e Edge, fn func(A) R) {
	d.mu.Lock()
	d.callbacks[e] = fn
	d.mu.Unlock()
}
