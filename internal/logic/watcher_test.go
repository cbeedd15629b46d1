package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFirstSampleIsBaseline(t *testing.T) {
	w := NewWatcher(t0)

	events := w.Process(t0, []Sample{{"cs", "ACTIVE"}, {"cs_defuse", "ACTIVE"}})
	if len(events) != 0 {
		t.Errorf("expected no events for baseline, got %v", events)
	}
	if s, ok := w.State("cs"); !ok || s != "ACTIVE" {
		t.Errorf("State: got %q %v", s, ok)
	}
}

func TestNoEventsForStableState(t *testing.T) {
	w := NewWatcher(t0)
	w.Process(t0, []Sample{{"cs", "ACTIVE"}})

	for i := 1; i <= 10; i++ {
		if events := w.Process(t0.Add(time.Duration(i)*time.Second), []Sample{{"cs", "ACTIVE"}}); len(events) != 0 {
			t.Fatalf("poll %d: unexpected events %v", i, events)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	w := NewWatcher(t0)
	w.Process(t0, []Sample{{"cs", "ACTIVE"}})

	at := t0.Add(time.Second)
	events := w.Process(at, []Sample{{"cs", "PASSED"}})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	want := Event{Timestamp: at, Module: "cs", From: "ACTIVE", To: "PASSED"}
	if events[0] != want {
		t.Errorf("got %+v, want %+v", events[0], want)
	}
}

func TestSimultaneousTransitionsKeepSampleOrder(t *testing.T) {
	w := NewWatcher(t0)
	w.Process(t0, []Sample{{"b", "ACTIVE"}, {"a", "ACTIVE"}})

	events := w.Process(t0, []Sample{{"b", "FAILED"}, {"a", "FAILED"}})
	if len(events) != 2 || events[0].Module != "b" || events[1].Module != "a" {
		t.Errorf("got %+v", events)
	}
}

func TestLateModuleJoinsSilently(t *testing.T) {
	w := NewWatcher(t0)
	w.Process(t0, []Sample{{"cs", "ACTIVE"}})

	events := w.Process(t0, []Sample{{"cs", "ACTIVE"}, {"cs_buzzer", "INVALID"}})
	if len(events) != 0 {
		t.Errorf("unexpected events %v", events)
	}
	cur := w.Current()
	if len(cur) != 2 || cur[1].Module != "cs_buzzer" {
		t.Errorf("Current: got %+v", cur)
	}
}

func TestEventCounts(t *testing.T) {
	w := NewWatcher(t0)
	w.Process(t0, []Sample{{"a", "INVALID"}, {"b", "ACTIVE"}})
	w.Process(t0, []Sample{{"a", "ACTIVE"}, {"b", "PASSED"}})
	w.Process(t0, []Sample{{"a", "FAILED"}, {"b", "PASSED"}})

	got := w.EventCountsSnapshot()
	want := EventCounts{Transitions: 3, Passed: 1, Failed: 1}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	w := NewWatcher(t0)
	if hb := w.CheckHeartbeat(t0.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat when disabled")
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	w := NewWatcher(t0)
	if hb := w.CheckHeartbeat(t0.Add(59*time.Second), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before interval")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	w := NewWatcher(t0)
	at := t0.Add(time.Minute)

	hb := w.CheckHeartbeat(at, time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if !hb.Timestamp.Equal(at) || hb.Uptime != time.Minute {
		t.Errorf("got %+v", hb)
	}
}

func TestCheckHeartbeatUpdatesLastTime(t *testing.T) {
	w := NewWatcher(t0)
	w.CheckHeartbeat(t0.Add(time.Minute), time.Minute)

	if hb := w.CheckHeartbeat(t0.Add(90*time.Second), time.Minute); hb != nil {
		t.Error("second heartbeat came too early")
	}
	hb := w.CheckHeartbeat(t0.Add(2*time.Minute), time.Minute)
	if hb == nil || hb.Uptime != 2*time.Minute {
		t.Errorf("got %+v", hb)
	}
}

func TestHeartbeatContainsEventCounts(t *testing.T) {
	w := NewWatcher(t0)
	w.Process(t0, []Sample{{"cs", "ACTIVE"}})
	w.Process(t0, []Sample{{"cs", "PASSED"}})

	hb := w.CheckHeartbeat(t0.Add(time.Minute), time.Minute)
	if hb.Counts.Passed != 1 || hb.Counts.Transitions != 1 {
		t.Errorf("Counts: got %+v", hb.Counts)
	}
}
