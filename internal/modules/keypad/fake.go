package keypad

import (
	"sync"

	"github.com/sweeney/propbox/internal/gpio"
)

// FakeMatrix simulates the wiring of a matrix keypad: a row reads high only
// while the column of a pressed key in that row is powered.
type FakeMatrix struct {
	mu      sync.Mutex
	cols    []*gpio.FakePin
	rows    int
	pressed map[Key]bool
}

// NewFakeMatrix creates a cols x rows matrix with no key pressed.
func NewFakeMatrix(cols, rows int) *FakeMatrix {
	f := &FakeMatrix{
		cols:    make([]*gpio.FakePin, cols),
		rows:    rows,
		pressed: make(map[Key]bool),
	}
	for i := range f.cols {
		f.cols[i] = gpio.NewFakePin(false)
	}
	return f
}

// ColPins returns the column (power) pins.
func (f *FakeMatrix) ColPins() []gpio.OutputPin {
	pins := make([]gpio.OutputPin, len(f.cols))
	for i, p := range f.cols {
		pins[i] = p
	}
	return pins
}

// RowPins returns the row (read) pins.
func (f *FakeMatrix) RowPins() []gpio.InputPin {
	pins := make([]gpio.InputPin, f.rows)
	for r := range pins {
		pins[r] = fakeRow{matrix: f, row: r}
	}
	return pins
}

// Press holds the key at col, row down.
func (f *FakeMatrix) Press(col, row int) {
	f.mu.Lock()
	f.pressed[Key{Col: col, Row: row}] = true
	f.mu.Unlock()
}

// Release lets the key at col, row go.
func (f *FakeMatrix) Release(col, row int) {
	f.mu.Lock()
	delete(f.pressed, Key{Col: col, Row: row})
	f.mu.Unlock()
}

type fakeRow struct {
	matrix *FakeMatrix
	row    int
}

func (r fakeRow) ConfigureInput() error { return nil }

func (r fakeRow) Get() (bool, error) {
	f := r.matrix
	f.mu.Lock()
	defer f.mu.Unlock()
	for c, p := range f.cols {
		if p.Level() && f.pressed[Key{Col: c, Row: r.row}] {
			return true, nil
		}
	}
	return false, nil
}
