package hub

import "sync"

// DefaultQueueSize is the outbound buffer length used when none is given.
const DefaultQueueSize = 64

// Queue is a buffered [Observer] backed by a channel.
//
// Send never blocks: if the buffer is full the message is dropped for this
// observer only. The owner drains [Queue.Messages] and calls [Queue.Close]
// when the underlying connection goes away.
type Queue struct {
	mu     sync.RWMutex
	ch     chan []byte
	closed bool
}

// NewQueue creates an open queue holding up to size messages.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan []byte, size)}
}

// Send implements [Observer].
func (q *Queue) Send(msg []byte) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	select {
	case q.ch <- msg:
		return true
	default:
		// slow consumer, drop
		return false
	}
}

// Open implements [Observer].
func (q *Queue) Open() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.closed
}

// Messages returns the channel of queued messages. It is closed by
// [Queue.Close] once remaining messages are drained.
func (q *Queue) Messages() <-chan []byte {
	return q.ch
}

// Close marks the queue closed and closes the message channel.
// Safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
