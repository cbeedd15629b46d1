// Package input classifies transitions of debounced binary inputs and
// dispatches them to per-edge callbacks.
package input

// Edge is the transition between two consecutive samples, encoded as
// old<<1 | new.
type Edge uint8

const (
	Released Edge = 0b00 // low -> low
	Rising   Edge = 0b01 // low -> high
	Falling  Edge = 0b10 // high -> low
	Pressed  Edge = 0b11 // high -> high
)

// Classify returns the edge between the previous and the newly read sample.
func Classify(previous, current bool) Edge {
	var e Edge
	if previous {
		e |= 0b10
	}
	if current {
		e |= 0b01
	}
	return e
}

// Changed reports whether the edge is a state change (rising or falling).
func (e Edge) Changed() bool {
	return e == Rising || e == Falling
}

func (e Edge) String() string {
	switch e {
	case Released:
		return "released"
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case Pressed:
		return "pressed"
	default:
		return "unknown"
	}
}
