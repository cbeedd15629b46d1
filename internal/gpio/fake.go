package gpio

import "sync"

// Mode records how a FakePin was configured.
type Mode uint8

const (
	ModeUnconfigured Mode = iota
	ModeInput
	ModeOutput
)

// FakePin is a test double usable as both input and output.
// It is safe for concurrent use so a test can drive the level while a module
// worker samples it.
type FakePin struct {
	mu sync.Mutex

	level  bool
	mode   Mode
	script []bool
	reads  int
	writes []bool

	// ReadError, if set, will be returned by Get.
	ReadError error
	// WriteError, if set, will be returned by Set.
	WriteError error
	// ConfigureError, if set, will be returned by ConfigureInput and
	// ConfigureOutput, leaving the mode unchanged.
	ConfigureError error
}

// NewFakePin creates a FakePin at the given level.
func NewFakePin(level bool) *FakePin {
	return &FakePin{level: level}
}

// ConfigureInput marks the pin as an input.
func (f *FakePin) ConfigureInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.mode = ModeInput
	return nil
}

// ConfigureOutput marks the pin as an output driven low.
func (f *FakePin) ConfigureOutput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.mode = ModeOutput
	f.level = false
	return nil
}

// Get returns the next scripted level if any, otherwise the current level.
// A scripted level becomes the current level once read.
func (f *FakePin) Get() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	f.reads++
	if len(f.script) > 0 {
		f.level = f.script[0]
		f.script = f.script[1:]
	}
	return f.level, nil
}

// Set records the written level.
func (f *FakePin) Set(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	f.level = high
	f.writes = append(f.writes, high)
	return nil
}

// SetLevel changes the physical level seen by the next Get.
func (f *FakePin) SetLevel(high bool) {
	f.mu.Lock()
	f.level = high
	f.mu.Unlock()
}

// Script queues levels returned by successive Get calls.
func (f *FakePin) Script(levels ...bool) {
	f.mu.Lock()
	f.script = append(f.script, levels...)
	f.mu.Unlock()
}

// Level returns the current level.
func (f *FakePin) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Mode returns how the pin was last configured.
func (f *FakePin) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Reads returns how many successful Get calls were made.
func (f *FakePin) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Writes returns a copy of every level passed to Set.
func (f *FakePin) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

// FakeBank is a Bank of FakePins created on first use.
type FakeBank struct {
	mu     sync.Mutex
	pins   map[int]*FakePin
	Closed bool
}

// NewFakeBank creates an empty FakeBank.
func NewFakeBank() *FakeBank {
	return &FakeBank{pins: make(map[int]*FakePin)}
}

// Pin returns the fake at offset, creating it low if needed.
func (b *FakeBank) Pin(offset int) *FakePin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[offset]
	if !ok {
		p = NewFakePin(false)
		b.pins[offset] = p
	}
	return p
}

// Input returns the fake at offset.
func (b *FakeBank) Input(offset int) InputPin { return b.Pin(offset) }

// Output returns the fake at offset.
func (b *FakeBank) Output(offset int) OutputPin { return b.Pin(offset) }

// Close marks the bank as closed.
func (b *FakeBank) Close() error {
	b.mu.Lock()
	b.Closed = true
	b.mu.Unlock()
	return nil
}
