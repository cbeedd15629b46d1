// Package queue provides a fixed-capacity FIFO used to hand discrete symbols
// from a polling producer to a consumer.
package queue

// Bounded is a fixed-capacity FIFO with wrap-around cursors.
// A push into a full queue is dropped; nothing is ever evicted.
// Not safe for concurrent use; callers must synchronize.
type Bounded[T any] struct {
	// buf has one slot more than the capacity so that write == read
	// always means empty.
	buf   []T
	write int // next write position
	read  int // oldest element
}

// New creates a queue holding at most capacity elements, pre-filled with
// initial. Initial values that do not fit are dropped like any other push.
func New[T any](capacity int, initial ...T) *Bounded[T] {
	if capacity < 1 {
		panic("queue: capacity must be at least 1")
	}
	q := &Bounded[T]{buf: make([]T, capacity+1)}
	for _, v := range initial {
		q.Push(v)
	}
	return q
}

// Push inserts v at the back unless the queue is full.
// Callers that need to detect a drop compare Len before and after.
func (q *Bounded[T]) Push(v T) {
	next := q.wrap(q.write + 1)
	if next == q.read {
		return
	}
	q.buf[q.write] = v
	q.write = next
}

// Pop removes the front element. It is a no-op on an empty queue.
func (q *Bounded[T]) Pop() {
	if q.Empty() {
		return
	}
	var zero T
	q.buf[q.read] = zero
	q.read = q.wrap(q.read + 1)
}

// Front returns the oldest element, or the zero value if the queue is empty.
func (q *Bounded[T]) Front() T {
	if q.Empty() {
		var zero T
		return zero
	}
	return q.buf[q.read]
}

// Back returns the newest element, or the zero value if the queue is empty.
func (q *Bounded[T]) Back() T {
	if q.Empty() {
		var zero T
		return zero
	}
	return q.buf[q.wrap(q.write-1+len(q.buf))]
}

// Empty reports whether the queue holds no elements.
func (q *Bounded[T]) Empty() bool {
	return q.write == q.read
}

// Full reports whether a Push would be dropped.
func (q *Bounded[T]) Full() bool {
	return q.wrap(q.write+1) == q.read
}

// Len returns the number of stored elements, derived from the cursor distance.
func (q *Bounded[T]) Len() int {
	return q.wrap(q.write - q.read + len(q.buf))
}

// Cap returns the maximum number of elements the queue can hold.
func (q *Bounded[T]) Cap() int {
	return len(q.buf) - 1
}

func (q *Bounded[T]) wrap(offset int) int {
	return offset % len(q.buf)
}
