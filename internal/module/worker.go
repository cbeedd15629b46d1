package module

import (
	"context"
	"sync"
)

// worker is the handle of a running worker goroutine.
type worker struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

func newWorker(cancel context.CancelFunc) *worker {
	return &worker{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// suspend reports whether the call changed anything.
func (w *worker) suspend() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paused {
		return false
	}
	w.paused = true
	w.resumed = make(chan struct{})
	return true
}

// resume reports whether the call changed anything.
func (w *worker) resume() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.paused {
		return false
	}
	w.paused = false
	close(w.resumed)
	return true
}

func (w *worker) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// wait blocks while the worker is suspended. It reports whether it blocked
// and false for ok once ctx is cancelled.
func (w *worker) wait(ctx context.Context) (paused, ok bool) {
	for {
		w.mu.Lock()
		if !w.paused {
			w.mu.Unlock()
			return paused, ctx.Err() == nil
		}
		ch := w.resumed
		w.mu.Unlock()

		paused = true
		select {
		case <-ch:
		case <-ctx.Done():
			return paused, false
		}
	}
}
