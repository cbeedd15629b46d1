package mqtt

import (
	"go.uber.org/zap"

	"github.com/sweeney/propbox/internal/queue"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// When full, the oldest message is evicted to make room.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	q        *queue.Bounded[bufferedMsg]
	logger   *zap.Logger
	dropped  int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int, logger *zap.Logger) *ringBuffer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ringBuffer{
		q:      queue.New[bufferedMsg](capacity),
		logger: logger,
	}
}

// push stores msg and reports whether an older message was evicted.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	evicted := false
	if r.q.Full() {
		if !r.overflow {
			r.logger.Warn("buffer full, dropping oldest", zap.Int("capacity", r.q.Cap()))
			r.overflow = true
		}
		r.q.Pop()
		r.dropped++
		evicted = true
	}
	r.q.Push(msg)
	return evicted
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.q.Empty() {
		return nil
	}

	result := make([]bufferedMsg, 0, r.q.Len())
	for !r.q.Empty() {
		result = append(result, r.q.Front())
		r.q.Pop()
	}
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.q.Len()
}
