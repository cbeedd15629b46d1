package status

import (
	"encoding/json"
	"time"
)

// Envelope wraps a Report as {"status": {...}}.
type Envelope struct {
	Status Report `json:"status"`
}

// Report is the JSON view of a Snapshot. Event and Reason are set only when
// the report is published as a system event.
type Report struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          Link            `json:"mqtt"`
	Attributes    []AttributeJSON `json:"attributes"`
	Config        Settings        `json:"config"`
}

// Link is the broker connection.
type Link struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// AttributeJSON is one dashboard attribute.
type AttributeJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Desc  string `json:"desc"`
}

// Settings mirrors Config.
type Settings struct {
	Game        string `json:"game"`
	FrequencyHz int    `json:"frequency_hz"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	SessionID   string `json:"session_id,omitempty"`
}

// Attributes converts attributes to their JSON form, never returning nil.
func Attributes(attrs []Attribute) []AttributeJSON {
	out := make([]AttributeJSON, len(attrs))
	for i, a := range attrs {
		out[i] = AttributeJSON(a)
	}
	return out
}

// NewReport builds the report for snap.
func NewReport(snap Snapshot, event, reason string) Report {
	cfg := snap.Config
	return Report{
		Event:         event,
		Reason:        reason,
		UptimeSeconds: int64(snap.Uptime() / time.Second),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          Link{Connected: snap.MQTTConnected, Broker: cfg.Broker},
		Attributes:    Attributes(snap.Attributes),
		Config:        Settings(cfg),
	}
}

// FormatJSON returns the indented report served by the dashboard.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Envelope{Status: NewReport(snap, "", "")}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact report published as a system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	data, _ := json.Marshal(Envelope{Status: NewReport(snap, event, reason)})
	return data
}
