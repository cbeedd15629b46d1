package logic

import "time"

// Watcher remembers the last state of every module and reports changes.
type Watcher struct {
	order         []string
	states        map[string]string
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewWatcher creates a watcher. The startTime is used for calculating
// uptime in heartbeat events.
func NewWatcher(startTime time.Time) *Watcher {
	return &Watcher{
		states:        make(map[string]string),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process records a poll and returns one event per module whose state
// differs from the previous poll, in sample order. The first sample of a
// module sets its baseline and emits nothing.
func (w *Watcher) Process(now time.Time, samples []Sample) []Event {
	var events []Event
	for _, s := range samples {
		prev, seen := w.states[s.Module]
		if !seen {
			w.order = append(w.order, s.Module)
			w.states[s.Module] = s.State
			continue
		}
		if prev == s.State {
			continue
		}
		w.states[s.Module] = s.State
		events = append(events, Event{Timestamp: now, Module: s.Module, From: prev, To: s.State})

		w.eventCounts.Transitions++
		switch s.State {
		case StatePassed:
			w.eventCounts.Passed++
		case StateFailed:
			w.eventCounts.Failed++
		}
	}
	return events
}

// State returns the last recorded state of module.
func (w *Watcher) State(module string) (string, bool) {
	s, ok := w.states[module]
	return s, ok
}

// Current returns every known module state in first-seen order.
func (w *Watcher) Current() []Sample {
	out := make([]Sample, len(w.order))
	for i, name := range w.order {
		out[i] = Sample{Module: name, State: w.states[name]}
	}
	return out
}

// EventCountsSnapshot returns a copy of the counts.
func (w *Watcher) EventCountsSnapshot() EventCounts {
	return w.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (w *Watcher) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(w.lastHeartbeat) < interval {
		return nil
	}

	w.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(w.startTime),
		Counts:    w.eventCounts,
	}
}
