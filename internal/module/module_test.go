package module

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/propbox/internal/metrics"
)

// countingHooks records Setup and Step calls and the peak number of
// concurrently running Steps.
type countingHooks struct {
	setups   atomic.Int32
	steps    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	setupErr error
	stepFor  time.Duration
	onStep   func(ctx context.Context)
}

func (h *countingHooks) Setup() error {
	h.setups.Add(1)
	return h.setupErr
}

func (h *countingHooks) Step(ctx context.Context) {
	n := h.inFlight.Add(1)
	for {
		cur := h.maxSeen.Load()
		if n <= cur || h.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if h.stepFor > 0 {
		time.Sleep(h.stepFor)
	}
	if h.onStep != nil {
		h.onStep(ctx)
	}
	h.steps.Add(1)
	h.inFlight.Add(-1)
}

const waitFor = 2 * time.Second
const tick = 2 * time.Millisecond

func TestModuleName(t *testing.T) {
	m := New("module_name", &countingHooks{})
	assert.Equal(t, "module_name", m.Name())
	assert.Equal(t, DefaultFrequency, m.Frequency())
	assert.Equal(t, Invalid, m.State())
}

func TestBeginRunsSetupOnce(t *testing.T) {
	h := &countingHooks{}
	m := New("m", h)

	require.NoError(t, m.Begin())
	require.NoError(t, m.Begin())
	assert.Equal(t, int32(1), h.setups.Load())
}

func TestBeginErrorAllowsRetry(t *testing.T) {
	h := &countingHooks{setupErr: errors.New("pin busy")}
	m := New("m", h)

	err := m.Begin()
	require.Error(t, err)
	assert.ErrorIs(t, err, h.setupErr)

	h.setupErr = nil
	require.NoError(t, m.Begin())
	assert.Equal(t, int32(2), h.setups.Load())
}

func TestStartRunsStep(t *testing.T) {
	h := &countingHooks{}
	m := New("m", h, WithFrequency(500))
	m.Start()
	defer m.Destroy()

	require.True(t, m.Running())
	require.Eventually(t, func() bool { return h.steps.Load() >= 3 }, waitFor, tick)
}

func TestStartTwiceKeepsOneWorker(t *testing.T) {
	h := &countingHooks{stepFor: time.Millisecond}
	m := New("m", h, WithFrequency(1000))

	m.Start()
	m.Start()
	require.Eventually(t, func() bool { return h.steps.Load() >= 30 }, waitFor, tick)
	m.Destroy()
	<-m.Stopped()

	assert.Equal(t, int32(1), h.maxSeen.Load(), "steps must never overlap")
}

func TestSuspendResume(t *testing.T) {
	h := &countingHooks{}
	m := New("m", h, WithFrequency(500))
	m.Start()
	defer m.Destroy()

	require.Eventually(t, func() bool { return h.steps.Load() >= 2 }, waitFor, tick)

	m.Suspend()
	assert.True(t, m.Suspended())
	// Allow any in-progress iteration to finish.
	time.Sleep(20 * time.Millisecond)
	frozen := h.steps.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frozen, h.steps.Load(), "no steps while suspended")

	m.Resume()
	assert.False(t, m.Suspended())
	require.Eventually(t, func() bool { return h.steps.Load() > frozen+2 }, waitFor, tick)
}

func TestLifecycleWithoutWorkerIsNoop(t *testing.T) {
	m := New("m", &countingHooks{})

	m.Suspend()
	m.Resume()
	m.Destroy()
	m.Destroy()

	assert.False(t, m.Running())
	assert.False(t, m.Suspended())
	select {
	case <-m.Stopped():
	default:
		t.Fatal("Stopped should be closed when no worker was started")
	}
}

func TestDestroyThenStartCreatesFreshWorker(t *testing.T) {
	h := &countingHooks{stepFor: time.Millisecond}
	m := New("m", h, WithFrequency(1000))

	m.Start()
	require.Eventually(t, func() bool { return h.steps.Load() >= 3 }, waitFor, tick)
	first := m.Stopped()

	m.Destroy()
	assert.False(t, m.Running())

	m.Start()
	assert.True(t, m.Running())
	second := m.Stopped()
	assert.NotEqual(t, first, second)

	select {
	case <-first:
	case <-time.After(waitFor):
		t.Fatal("destroyed worker did not exit")
	}

	before := h.steps.Load()
	require.Eventually(t, func() bool { return h.steps.Load() >= before+3 }, waitFor, tick)
	m.Destroy()
	<-second

	assert.Equal(t, int32(1), h.maxSeen.Load())
}

func TestDestroyFromInsideStep(t *testing.T) {
	h := &countingHooks{}
	m := New("m", h, WithFrequency(1000))
	h.onStep = func(ctx context.Context) {
		if h.steps.Load() >= 2 {
			m.Destroy()
		}
	}

	m.Start()
	select {
	case <-m.Stopped():
	case <-time.After(waitFor):
		t.Fatal("worker did not stop after destroying itself")
	}
	assert.False(t, m.Running())
	assert.Equal(t, int32(3), h.steps.Load())
}

func TestDestroyInterruptsSleep(t *testing.T) {
	entered := make(chan struct{})
	h := &countingHooks{}
	m := New("m", h)
	h.onStep = func(ctx context.Context) {
		close(entered)
		Sleep(ctx, m.Clock(), time.Hour)
	}

	m.Start()
	<-entered
	m.Destroy()

	select {
	case <-m.Stopped():
	case <-time.After(waitFor):
		t.Fatal("destroy did not interrupt a blocking step")
	}
}

func TestStepPanicIsRecovered(t *testing.T) {
	h := &countingHooks{}
	var panics atomic.Int32
	h.onStep = func(ctx context.Context) {
		if panics.Add(1) == 1 {
			panic("boom")
		}
	}
	m := New("m", h, WithFrequency(500))
	m.Start()
	defer m.Destroy()

	require.Eventually(t, func() bool { return panics.Load() >= 3 }, waitFor, tick)
}

func TestWorkerFollowsClock(t *testing.T) {
	clk := clock.NewMock()
	h := &countingHooks{}
	m := New("m", h, WithClock(clk), WithFrequency(10))
	m.Start()
	defer m.Destroy()

	require.Eventually(t, func() bool { return h.steps.Load() >= 1 }, waitFor, tick)
	assert.Equal(t, int32(1), h.steps.Load(), "no second step before the period elapses")

	require.Eventually(t, func() bool {
		clk.Add(100 * time.Millisecond)
		return h.steps.Load() >= 4
	}, waitFor, tick)
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, Sleep(ctx, clock.New(), time.Millisecond))
	assert.True(t, Sleep(ctx, clock.New(), 0))

	cancel()
	assert.False(t, Sleep(ctx, clock.New(), time.Hour))
	assert.False(t, Sleep(ctx, clock.New(), 0))
}

func TestModuleMetrics(t *testing.T) {
	mt := metrics.New(prometheus.NewRegistry())
	h := &countingHooks{}
	m := New("wires", h, WithMetrics(mt), WithFrequency(500))

	m.Pass()
	assert.Equal(t, float64(Active), testutil.ToFloat64(mt.ModuleState.WithLabelValues("wires")))

	m.Start()
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Workers.WithLabelValues("wires")))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(mt.Steps.WithLabelValues("wires")) >= 2
	}, waitFor, tick)

	m.Destroy()
	assert.Equal(t, 0.0, testutil.ToFloat64(mt.Workers.WithLabelValues("wires")))

	m.Fail()
	assert.Equal(t, float64(Failed), testutil.ToFloat64(mt.ModuleState.WithLabelValues("wires")))
}
