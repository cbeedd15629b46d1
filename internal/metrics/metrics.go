// Package metrics exposes Prometheus collectors for module lifecycles,
// debounced inputs and event queues.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "propbox"

// Metrics groups the collectors registered by the daemon.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ModuleState   *prometheus.GaugeVec
	Transitions   *prometheus.CounterVec
	Steps         *prometheus.CounterVec
	Overruns      *prometheus.CounterVec
	Workers       *prometheus.GaugeVec
	Edges         *prometheus.CounterVec
	QueueDropped  *prometheus.CounterVec
	PublishErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModuleState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_state",
			Help:      "Current module state (0=INVALID 1=ACTIVE 2=PASSED 3=FAILED).",
		}, []string{"module"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_transitions_total",
			Help:      "State transitions by target state.",
		}, []string{"module", "state"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_steps_total",
			Help:      "Worker iterations executed.",
		}, []string{"module"}),
		Overruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_overruns_total",
			Help:      "Worker iterations that exceeded the target period.",
		}, []string{"module"}),
		Workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 while the module has a worker, 0 otherwise.",
		}, []string{"module"}),
		Edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_edges_total",
			Help:      "Rising and falling edges accepted by debounced inputs.",
		}, []string{"edge"}),
		QueueDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Symbols dropped because an event queue was full.",
		}, []string{"queue"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publish_errors_total",
			Help:      "Failed MQTT publishes.",
		}),
	}
	reg.MustRegister(
		m.ModuleState,
		m.Transitions,
		m.Steps,
		m.Overruns,
		m.Workers,
		m.Edges,
		m.QueueDropped,
		m.PublishErrors,
	)
	return m
}

// SetState records the numeric state of a module.
func (m *Metrics) SetState(module string, state int, name string) {
	if m == nil {
		return
	}
	m.ModuleState.WithLabelValues(module).Set(float64(state))
	m.Transitions.WithLabelValues(module, name).Inc()
}

// Step counts one worker iteration.
func (m *Metrics) Step(module string) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(module).Inc()
}

// Overrun counts one late worker iteration.
func (m *Metrics) Overrun(module string) {
	if m == nil {
		return
	}
	m.Overruns.WithLabelValues(module).Inc()
}

// WorkerRunning records whether a module currently owns a worker.
func (m *Metrics) WorkerRunning(module string, running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.Workers.WithLabelValues(module).Set(v)
}

// Edge counts an accepted input edge.
func (m *Metrics) Edge(edge string) {
	if m == nil {
		return
	}
	m.Edges.WithLabelValues(edge).Inc()
}

// Dropped counts a symbol lost to a full queue.
func (m *Metrics) Dropped(queue string) {
	if m == nil {
		return
	}
	m.QueueDropped.WithLabelValues(queue).Inc()
}

// PublishError counts a failed publish.
func (m *Metrics) PublishError() {
	if m == nil {
		return
	}
	m.PublishErrors.Inc()
}
