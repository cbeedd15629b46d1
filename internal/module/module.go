// Package module runs game modules: a pass/fail state machine plus at most
// one worker goroutine that calls the module's Step at a fixed frequency.
//
// The worker handle and the state each have their own lock. Lifecycle calls
// (Start, Suspend, Resume, Destroy) take the handle lock and transitions
// (Pass, Fail) take the state lock; no call takes both.
package module

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/logging"
	"github.com/sweeney/propbox/internal/metrics"
)

// DefaultFrequency is the worker loop rate in Hz.
const DefaultFrequency = 10

// Hooks is implemented by every concrete module.
type Hooks interface {
	// Setup runs once before the worker starts, for initialization that
	// cannot happen at construction (e.g. binding pins).
	Setup() error

	// Step runs one iteration of module work. The framework loops it; Step
	// itself must not loop. ctx is cancelled when the worker is destroyed.
	Step(ctx context.Context)
}

// Module owns a state machine and an optional worker.
type Module struct {
	Stateful

	name      string
	hooks     Hooks
	frequency int
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics

	beginMu sync.Mutex
	begun   bool

	handleMu sync.Mutex
	worker   *worker
	lastDone <-chan struct{}
}

// Option configures a Module.
type Option func(*Module)

// WithFrequency sets the worker loop rate in Hz. Values < 1 are ignored.
func WithFrequency(hz int) Option {
	return func(m *Module) {
		if hz >= 1 {
			m.frequency = hz
		}
	}
}

// WithClock sets the time source for the worker loop.
func WithClock(c clock.Clock) Option {
	return func(m *Module) { m.clock = c }
}

// WithLogger sets the parent logger; the module logs under its own name.
func WithLogger(l *zap.Logger) Option {
	return func(m *Module) { m.logger = l }
}

// WithMetrics records state, worker and step metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Module) { m.metrics = mt }
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// New creates a module named name whose work is defined by hooks.
func New(name string, hooks Hooks, opts ...Option) *Module {
	m := &Module{
		name:      name,
		hooks:     hooks,
		frequency: DefaultFrequency,
		lastDone:  closedChan,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	m.logger = logging.OrNop(m.logger).Named(name)

	m.OnTransition(func(from, to State) {
		m.logger.Info("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		m.metrics.SetState(m.name, int(to), to.String())
	})
	m.logger.Info("module constructed")
	return m
}

// LoggerFor returns the logger a module named name would get from opts.
// It lets collaborators built alongside a module share its log scope.
func LoggerFor(name string, opts ...Option) *zap.Logger {
	var m Module
	for _, opt := range opts {
		opt(&m)
	}
	return logging.OrNop(m.logger).Named(name)
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Clock returns the module's time source.
func (m *Module) Clock() clock.Clock { return m.clock }

// Logger returns the module's named logger.
func (m *Module) Logger() *zap.Logger { return m.logger }

// Metrics returns the metrics sink, which may be nil.
func (m *Module) Metrics() *metrics.Metrics { return m.metrics }

// Frequency returns the worker loop rate in Hz.
func (m *Module) Frequency() int { return m.frequency }

// Begin runs the Setup hook. After a successful Setup later calls are no-ops.
func (m *Module) Begin() error {
	m.beginMu.Lock()
	defer m.beginMu.Unlock()

	if m.begun {
		return nil
	}
	if err := m.hooks.Setup(); err != nil {
		return fmt.Errorf("setup %s: %w", m.name, err)
	}
	m.begun = true
	return nil
}

// Start creates the worker. It is a no-op while a worker exists.
// A worker started after Destroy waits for the previous one to exit, so at
// most one Step runs at a time.
func (m *Module) Start() {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.worker != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := newWorker(cancel)
	prev := m.lastDone
	m.worker = w
	m.lastDone = w.done
	go m.run(ctx, w, prev)

	m.metrics.WorkerRunning(m.name, true)
	m.logger.Info("module started", zap.Int("frequency_hz", m.frequency))
}

// Suspend pauses the worker before its next iteration.
func (m *Module) Suspend() {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.worker != nil && m.worker.suspend() {
		m.logger.Info("module suspended")
	}
}

// Resume continues a suspended worker.
func (m *Module) Resume() {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.worker != nil && m.worker.resume() {
		m.logger.Info("module resumed")
	}
}

// Destroy cancels and releases the worker. It does not wait for the worker to
// exit, so Step may destroy its own module. Blocking waits inside Step that
// use the worker context (see Sleep) return immediately.
func (m *Module) Destroy() {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()

	if m.worker == nil {
		return
	}
	m.worker.cancel()
	m.worker = nil

	m.metrics.WorkerRunning(m.name, false)
	m.logger.Info("module destroyed")
}

// Running reports whether a worker exists.
func (m *Module) Running() bool {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()
	return m.worker != nil
}

// Suspended reports whether the worker exists and is suspended.
func (m *Module) Suspended() bool {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()
	return m.worker != nil && m.worker.isPaused()
}

// Stopped returns a channel closed once the most recent worker has exited.
// It is already closed if no worker was ever started.
func (m *Module) Stopped() <-chan struct{} {
	m.handleMu.Lock()
	defer m.handleMu.Unlock()
	return m.lastDone
}

func (m *Module) run(ctx context.Context, w *worker, prev <-chan struct{}) {
	defer close(w.done)

	// prev is already cancelled. Waiting keeps Steps from overlapping.
	<-prev
	if ctx.Err() != nil {
		return
	}

	period := time.Second / time.Duration(m.frequency)
	next := m.clock.Now()
	for {
		paused, ok := w.wait(ctx)
		if !ok {
			return
		}
		if paused {
			next = m.clock.Now()
		}

		m.step(ctx)
		if ctx.Err() != nil {
			return
		}

		next = next.Add(period)
		delay := next.Sub(m.clock.Now())
		if delay <= 0 {
			m.logger.Warn("module was not delayed", zap.Int("frequency_hz", m.frequency), zap.Duration("late", -delay))
			m.metrics.Overrun(m.name)
			next = m.clock.Now()
			continue
		}
		if !Sleep(ctx, m.clock, delay) {
			return
		}
	}
}

func (m *Module) step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("step panicked", zap.Any("panic", r))
		}
	}()
	m.hooks.Step(ctx)
	m.metrics.Step(m.name)
}

// Sleep blocks for d on clk. It returns false if ctx is cancelled first.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
