package es

import (
	"sync"

	"github.com/driftlog/driftlog-go/core/ds"
)

// Feed is the Subscription implementation the stores hand out. The producer
// side pushes values with Publish and ends the sequence with Complete or
// Fail; the consumer side reads Chan and may Cancel at any time.
//
// Values buffer in an unbounded queue, so Publish never blocks on a slow
// consumer. Whichever of Complete, Fail or Cancel happens first decides how
// the feed ends; the others become no-ops, except that Cancel always
// releases the queue.
type Feed[T any] struct {
	q        *ds.Queue[T]
	onCancel func()

	mu   sync.Mutex
	err  error
	done bool
}

var _ Subscription[any] = (*Feed[any])(nil)

// NewFeed returns an open feed. onCancel, if not nil, runs once when the
// consumer cancels before the producer has ended the sequence. Producers use
// it to stop upstream work, like unsubscribing from a broker or sending a
// cancel frame.
func NewFeed[T any](onCancel func()) *Feed[T] {
	return &Feed[T]{
		q:        ds.NewQueue[T](),
		onCancel: onCancel,
	}
}

// Chan returns the delivery channel. It closes when the feed ends.
func (f *Feed[T]) Chan() <-chan T { return f.q.Chan() }

// Err returns the terminal error once Chan is closed, nil for a complete or
// canceled sequence.
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Publish queues v for delivery. It reports false once the feed has ended,
// telling the producer to stop.
func (f *Feed[T]) Publish(v T) bool { return f.q.Push(v) }

// Complete ends the sequence normally. Queued values still reach the
// consumer, then Chan closes.
func (f *Feed[T]) Complete() {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.mu.Unlock()
	f.q.Close()
}

// Fail ends the sequence with err. Queued values still reach the consumer,
// then Chan closes and Err returns err.
func (f *Feed[T]) Fail(err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.err = err
	f.mu.Unlock()
	f.q.Close()
}

// Cancel stops delivery. The onCancel hook fires only when the sequence has
// not already completed or failed, so producers are never told to stop work
// they have already finished. Queued values are discarded.
func (f *Feed[T]) Cancel() {
	f.mu.Lock()
	fire := !f.done
	f.done = true
	hook := f.onCancel
	f.mu.Unlock()
	if fire && hook != nil {
		hook()
	}
	f.q.Drop()
}
