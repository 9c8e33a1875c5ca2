// Package pubsub provides a broadcast broker with per-subscriber queues.
//
// Publish enqueues, it never delivers on the caller's stack: a subscriber
// reacting to a delivery may publish again without re-entering anyone's
// handler or deadlocking the broker. Late subscribers only see what is
// published after they subscribed; there is no replay.
package pubsub

import (
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/driftlog/driftlog-go/core/ds"
)

// Broker fans values out to its current subscribers.
type Broker[T any] struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber[T]
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: map[string]*Subscriber[T]{}}
}

// Subscribe registers a new subscriber receiving everything published from
// now on. Returns nil if the broker is closed.
func (b *Broker[T]) Subscribe() *Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	sub := &Subscriber[T]{
		id:     gonanoid.Must(),
		q:      ds.NewQueue[T](),
		broker: b,
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish enqueues v for every current subscriber and returns how many were
// reached. Never blocks.
func (b *Broker[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, sub := range b.subs {
		if sub.q.Push(v) {
			n++
		}
	}
	return n
}

// Len returns the number of active subscribers.
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Already queued values are still delivered,
// then the subscriber channels close. Further Subscribe calls return nil,
// further Publish calls reach nobody.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.q.Close()
		delete(b.subs, id)
	}
}

func (b *Broker[T]) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscriber is one registration on a broker. Values arrive on Chan in
// publish order; an abandoned subscriber must be cancelled or its queue
// leaks.
type Subscriber[T any] struct {
	id     string
	q      *ds.Queue[T]
	broker *Broker[T]
	once   sync.Once
}

// Chan returns the delivery channel. It closes after Cancel, or after the
// broker closed and the queue drained.
func (s *Subscriber[T]) Chan() <-chan T { return s.q.Chan() }

// Pending returns how many values are queued and not yet consumed.
func (s *Subscriber[T]) Pending() int { return s.q.Len() }

// Cancel ends the subscription, discarding anything still queued. Safe to
// call more than once.
func (s *Subscriber[T]) Cancel() {
	s.once.Do(func() {
		s.broker.unsubscribe(s.id)
		s.q.Drop()
	})
}
