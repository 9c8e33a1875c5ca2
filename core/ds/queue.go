package ds

import "sync"

// Queue is an unbounded FIFO buffer decoupling a producer from one consumer.
// Push never blocks; a pump goroutine delivers buffered items on Chan in
// order. It exists so a slow reader can lag behind without ever blocking the
// goroutine that feeds it (a shared demux loop, a broadcast fan-out).
//
// Close stops intake and closes Chan once everything buffered has been
// delivered. Drop stops intake and closes Chan immediately, discarding the
// buffer. One of the two must be called eventually or the pump goroutine
// leaks waiting on an abandoned reader.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	wake    chan struct{}
	out     chan T
	closed  bool          // no more Push
	drop    bool          // discard buffer on close
	bye     chan struct{} // unblocks a pending send on Drop
	byeOnce sync.Once
}

// NewQueue creates a queue and starts its pump.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		bye:  make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push appends v to the buffer. Returns false if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Chan returns the delivery channel. It is closed after Close has drained
// the buffer, or immediately on Drop.
func (q *Queue[T]) Chan() <-chan T { return q.out }

// Len returns the number of buffered, not yet delivered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Close stops intake. Buffered items are still delivered, then Chan closes.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drop stops intake, discards the buffer and closes Chan without waiting
// for the reader.
func (q *Queue[T]) Drop() {
	q.mu.Lock()
	q.closed = true
	q.drop = true
	q.mu.Unlock()

	q.byeOnce.Do(func() { close(q.bye) })
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if q.drop {
			q.buf = nil
			q.mu.Unlock()
			return
		}
		if len(q.buf) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.wake:
			case <-q.bye:
			}
			continue
		}
		v := q.buf[0]
		q.buf = q.buf[1:]
		q.mu.Unlock()

		select {
		case q.out <- v:
		case <-q.bye:
			return
		}
	}
}
