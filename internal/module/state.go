package module

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a module.
type State uint32

const (
	Invalid State = 0b00
	Active  State = 0b01
	Passed  State = 0b10
	Failed  State = 0b11
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Active:
		return "ACTIVE"
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Passed || s == Failed
}

// Stateful is the INVALID -> ACTIVE -> PASSED|FAILED state machine.
// Illegal transitions are no-ops, so game logic may call Pass and Fail
// every iteration without checking the current state.
// The zero value is Invalid and ready to use.
type Stateful struct {
	mu        sync.Mutex
	state     atomic.Uint32
	observers []func(from, to State)

	// notifyMu is taken before mu is released so observers see changes in
	// the order they happened.
	notifyMu sync.Mutex
}

// State returns the current state without blocking.
func (s *Stateful) State() State {
	return State(s.state.Load())
}

// Pass advances along the success path: Invalid -> Active, Active -> Passed.
// It returns the resulting state.
func (s *Stateful) Pass() State {
	return s.transition(func(cur State) State {
		switch cur {
		case Invalid:
			return Active
		case Active:
			return Passed
		default:
			return cur
		}
	})
}

// Fail moves Active -> Failed and does nothing from any other state.
// It returns the resulting state.
func (s *Stateful) Fail() State {
	return s.transition(func(cur State) State {
		if cur == Active {
			return Failed
		}
		return cur
	})
}

// OnTransition registers fn to run after every actual state change.
// Observers run outside the state lock, on the goroutine that made the change,
// one change at a time and in order. An observer must not call Pass or Fail on
// the same Stateful.
func (s *Stateful) OnTransition(fn func(from, to State)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Stateful) transition(next func(State) State) State {
	s.mu.Lock()
	from := State(s.state.Load())
	to := next(from)
	if to == from {
		s.mu.Unlock()
		return to
	}
	s.state.Store(uint32(to))
	observers := s.observers
	s.notifyMu.Lock()
	s.mu.Unlock()

	defer s.notifyMu.Unlock()
	for _, fn := range observers {
		fn(from, to)
	}
	return to
}
