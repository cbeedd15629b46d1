// Package mqtt publishes module and system events to an MQTT broker, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicPrefix is the root of every propbox topic.
const TopicPrefix = "propbox"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = TopicPrefix + "/system"

// StateTopic returns the topic module state changes are published on.
func StateTopic(module string) string {
	return TopicPrefix + "/modules/" + module + "/state"
}

// KeyTopic returns the topic keypad presses are published on.
func KeyTopic(module string) string {
	return TopicPrefix + "/modules/" + module + "/keys"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a module state change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event StateEvent) error

	// PublishKey sends a keypad press to the broker.
	PublishKey(event KeyEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StateEvent is a module moving from one state to another.
type StateEvent struct {
	Timestamp time.Time
	Module    string
	From      string
	To        string
	Session   string
}

// KeyEvent is a key read from a keypad module.
type KeyEvent struct {
	Timestamp time.Time
	Module    string
	Key       rune
	Session   string
}

// SystemEvent is a daemon lifecycle event: STARTUP, HEARTBEAT, SHUTDOWN,
// RECONNECTED or the OFFLINE will.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // signal name, shutdown only

	// RawPayload replaces the formatted payload. The supervisor sets it to
	// a full status snapshot.
	RawPayload []byte
	Retained   bool
}

// StatePayload is the MQTT message payload for a state change.
type StatePayload struct {
	Module StatePayloadInner `json:"module"`
}

// StatePayloadInner contains the state change details.
type StatePayloadInner struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	From      string `json:"from"`
	To        string `json:"to"`
	Session   string `json:"session,omitempty"`
}

// FormatPayload creates the JSON payload for a state change.
func FormatPayload(event StateEvent) ([]byte, error) {
	payload := StatePayload{
		Module: StatePayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Name:      event.Module,
			From:      event.From,
			To:        event.To,
			Session:   event.Session,
		},
	}
	return json.Marshal(payload)
}

// KeyPayload is the MQTT message payload for a key press.
type KeyPayload struct {
	Key KeyPayloadInner `json:"key"`
}

// KeyPayloadInner contains the key press details.
type KeyPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Module    string `json:"module"`
	Key       string `json:"key"`
	Session   string `json:"session,omitempty"`
}

// FormatKeyPayload creates the JSON payload for a key press.
func FormatKeyPayload(event KeyEvent) ([]byte, error) {
	payload := KeyPayload{
		Key: KeyPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Module:    event.Module,
			Key:       string(event.Key),
			Session:   event.Session,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the payload of events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload returns event.RawPayload when set, otherwise a
// SystemPayload.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(SystemPayload{System: SystemPayloadInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
	}})
}

// NopPublisher discards every event. It stands in when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(StateEvent) error        { return nil }
func (NopPublisher) PublishKey(KeyEvent) error       { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }
