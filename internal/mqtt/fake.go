package mqtt

import "sync"

// FakeMessage is one message accepted by a FakePublisher, as it would have
// gone to the broker.
type FakeMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakePublisher records what would be published, in order. It is safe for
// concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	messages []FakeMessage
	states   []StateEvent
	keys     []KeyEvent
	system   []SystemEvent

	eventErr  error
	systemErr error
	connected bool
	closed    bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// FailEvents makes Publish and PublishKey return err. nil restores them.
func (f *FakePublisher) FailEvents(err error) {
	f.mu.Lock()
	f.eventErr = err
	f.mu.Unlock()
}

// FailSystem makes PublishSystem return err. nil restores it.
func (f *FakePublisher) FailSystem(err error) {
	f.mu.Lock()
	f.systemErr = err
	f.mu.Unlock()
}

// SetConnected sets what IsConnected reports.
func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

func (f *FakePublisher) Publish(event StateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.states = append(f.states, event)
	f.messages = append(f.messages, FakeMessage{Topic: StateTopic(event.Module), Payload: payload})
	return nil
}

func (f *FakePublisher) PublishKey(event KeyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	payload, err := FormatKeyPayload(event)
	if err != nil {
		return err
	}
	f.keys = append(f.keys, event)
	f.messages = append(f.messages, FakeMessage{Topic: KeyTopic(event.Module), Payload: payload})
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.systemErr != nil {
		return f.systemErr
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.system = append(f.system, event)
	f.messages = append(f.messages, FakeMessage{Topic: TopicSystem, Payload: payload, Retained: event.Retained})
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Messages returns every accepted message in publish order.
func (f *FakePublisher) Messages() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeMessage(nil), f.messages...)
}

// StateEvents returns the accepted state changes.
func (f *FakePublisher) StateEvents() []StateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StateEvent(nil), f.states...)
}

// KeyEvents returns the accepted key presses.
func (f *FakePublisher) KeyEvents() []KeyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]KeyEvent(nil), f.keys...)
}

// SystemEvents returns the accepted system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.system...)
}

// SystemEventNames returns the Event of every accepted system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.system))
	for i, e := range f.system {
		names[i] = e.Event
	}
	return names
}

// Reset returns f to its freshly constructed state.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages, f.states, f.keys, f.system = nil, nil, nil, nil
	f.eventErr, f.systemErr = nil, nil
	f.connected, f.closed = false, false
}
