// Package status keeps the attribute board shown on the dashboard and
// reported in MQTT system events. It is safe for concurrent use.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Config contains daemon configuration for display.
type Config struct {
	Game        string
	FrequencyHz int
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	SessionID   string
}

// Attribute is one named value on the board.
type Attribute struct {
	Name  string
	Value string
	Desc  string
}

// Snapshot is a point-in-time view of the board.
// It is a value type; safe to use after the lock is released.
type Snapshot struct {
	Attributes    []Attribute // sorted by name
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Board holds attributes behind an RWMutex and notifies subscribers when
// any of them changes.
type Board struct {
	clock clock.Clock

	mu        sync.RWMutex
	attrs     map[string]Attribute
	start     time.Time
	connected bool
	cfg       Config
	subs      map[chan struct{}]struct{}
}

// NewBoard creates an empty board. A nil clk uses the wall clock.
func NewBoard(clk clock.Clock, cfg Config) *Board {
	if clk == nil {
		clk = clock.New()
	}
	return &Board{
		clock: clk,
		attrs: make(map[string]Attribute),
		start: clk.Now(),
		cfg:   cfg,
		subs:  make(map[chan struct{}]struct{}),
	}
}

// Register adds a new attribute. It returns false if name already exists.
func (b *Board) Register(name, value, desc string) bool {
	b.mu.Lock()
	if _, ok := b.attrs[name]; ok {
		b.mu.Unlock()
		return false
	}
	b.attrs[name] = Attribute{Name: name, Value: value, Desc: desc}
	b.notifyLocked()
	b.mu.Unlock()
	return true
}

// Update changes the value of an existing attribute. It returns false if
// name is not registered.
func (b *Board) Update(name, value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.attrs[name]
	if !ok {
		return false
	}
	if a.Value != value {
		a.Value = value
		b.attrs[name] = a
		b.notifyLocked()
	}
	return true
}

// Upsert updates name if it exists, keeping its description, and registers
// it with desc otherwise.
func (b *Board) Upsert(name, value, desc string) {
	if !b.Update(name, value) {
		b.Register(name, value, desc)
	}
}

// Read returns the value of name.
func (b *Board) Read(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.attrs[name]
	return a.Value, ok
}

// Delete removes name. It returns false if name was not registered.
func (b *Board) Delete(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.attrs[name]; !ok {
		return false
	}
	delete(b.attrs, name)
	b.notifyLocked()
	return true
}

// SetMQTTConnected sets the MQTT connection status.
func (b *Board) SetMQTTConnected(connected bool) {
	b.mu.Lock()
	if b.connected != connected {
		b.connected = connected
		b.notifyLocked()
	}
	b.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the board.
// The Now field is set to the current time at the moment of the call.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	s := Snapshot{
		Attributes:    make([]Attribute, 0, len(b.attrs)),
		StartTime:     b.start,
		MQTTConnected: b.connected,
		Config:        b.cfg,
	}
	for _, a := range b.attrs {
		s.Attributes = append(s.Attributes, a)
	}
	b.mu.RUnlock()

	sort.Slice(s.Attributes, func(i, j int) bool { return s.Attributes[i].Name < s.Attributes[j].Name })
	s.Now = b.clock.Now()
	return s
}

// Subscribe returns a channel that receives a value after changes to the
// board. Notifications coalesce: a slow reader sees one pending signal for
// any number of changes. Call cancel to unsubscribe.
func (b *Board) Subscribe() (changes <-chan struct{}, cancel func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

func (b *Board) notifyLocked() {
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
