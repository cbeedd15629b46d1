// Package logic contains pure bookkeeping for the supervisor: which module
// is in which state, what changed since the last poll, and when the next
// heartbeat is due.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Sample is one module's state as seen by a poll.
type Sample struct {
	Module string
	State  string
}

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Module    string
	From      string
	To        string
}

// Terminal state names counted by the watcher.
const (
	StatePassed = "PASSED"
	StateFailed = "FAILED"
)

// EventCounts tracks transitions since startup.
type EventCounts struct {
	Transitions int
	Passed      int
	Failed      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
