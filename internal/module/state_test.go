package module

import (
	"sync"
	"testing"
	"time"
)

func TestStatefulStartsInvalid(t *testing.T) {
	var s Stateful
	if s.State() != Invalid {
		t.Errorf("expected INVALID, got %s", s.State())
	}
}

func TestPassTransitions(t *testing.T) {
	var s Stateful

	want := []State{Active, Passed, Passed}
	for i, w := range want {
		if got := s.Pass(); got != w {
			t.Errorf("pass %d: expected %s, got %s", i, w, got)
		}
	}

	if got := s.Fail(); got != Passed {
		t.Errorf("fail after PASSED: expected PASSED, got %s", got)
	}
}

func TestFailTransitions(t *testing.T) {
	var s Stateful

	if got := s.Fail(); got != Invalid {
		t.Errorf("fail from INVALID: expected INVALID, got %s", got)
	}
	if got := s.Pass(); got != Active {
		t.Errorf("expected ACTIVE, got %s", got)
	}
	if got := s.Fail(); got != Failed {
		t.Errorf("expected FAILED, got %s", got)
	}
	if got := s.Fail(); got != Failed {
		t.Errorf("expected FAILED to stick, got %s", got)
	}
	if got := s.Pass(); got != Failed {
		t.Errorf("pass after FAILED: expected FAILED, got %s", got)
	}
}

// apply is the reference transition table.
func apply(s State, pass bool) State {
	switch {
	case pass && s == Invalid:
		return Active
	case pass && s == Active:
		return Passed
	case !pass && s == Active:
		return Failed
	default:
		return s
	}
}

func TestTransitionSequencesMatchTable(t *testing.T) {
	// Every sequence of up to 6 pass/fail calls.
	for n := 0; n <= 6; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			var s Stateful
			want := Invalid
			for i := 0; i < n; i++ {
				pass := mask&(1<<i) != 0
				want = apply(want, pass)
				var got State
				if pass {
					got = s.Pass()
				} else {
					got = s.Fail()
				}
				if got != want {
					t.Fatalf("n=%d mask=%b step %d: expected %s, got %s", n, mask, i, want, got)
				}
			}
			if s.State() != want {
				t.Fatalf("n=%d mask=%b: final state %s, want %s", n, mask, s.State(), want)
			}
		}
	}
}

func TestObserverCalledOnlyOnChange(t *testing.T) {
	var s Stateful
	type change struct{ from, to State }
	var got []change
	s.OnTransition(func(from, to State) {
		got = append(got, change{from, to})
	})

	s.Fail()
	s.Pass()
	s.Pass()
	s.Pass()
	s.Fail()

	want := []change{{Invalid, Active}, {Active, Passed}}
	if len(got) != len(want) {
		t.Fatalf("expected %d changes, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestConcurrentTransitionsReachOneTerminal(t *testing.T) {
	for run := 0; run < 50; run++ {
		var s Stateful
		s.Pass()

		var mu sync.Mutex
		terminals := 0
		s.OnTransition(func(from, to State) {
			mu.Lock()
			terminals++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					s.Pass()
				} else {
					s.Fail()
				}
				_ = s.State()
			}(i)
		}
		wg.Wait()

		if !s.State().Terminal() {
			t.Fatalf("run %d: expected terminal state, got %s", run, s.State())
		}
		if terminals != 1 {
			t.Fatalf("run %d: expected exactly one terminal transition, got %d", run, terminals)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Invalid:  "INVALID",
		Active:   "ACTIVE",
		Passed:   "PASSED",
		Failed:   "FAILED",
		State(7): "UNKNOWN",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestObserversSeeChangesInOrder(t *testing.T) {
	for run := 0; run < 20; run++ {
		var s Stateful
		type change struct{ from, to State }

		var mu sync.Mutex
		var got []change
		s.OnTransition(func(from, to State) {
			if from == Invalid {
				// hold the first notification so the next change can overtake it
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			got = append(got, change{from, to})
			mu.Unlock()
		})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Pass()
		}()
		go func() {
			defer wg.Done()
			for s.State() == Invalid {
				time.Sleep(10 * time.Microsecond)
			}
			s.Pass()
		}()
		wg.Wait()

		want := []change{{Invalid, Active}, {Active, Passed}}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("run %d: observed %v, want %v", run, got, want)
		}
	}
}
