package es

import (
	"context"

	"github.com/driftlog/driftlog-go/core/event"
)

// Order selects the delivery order of a query result.
type Order string

const (
	// OrderAsc delivers events ascending by event key.
	OrderAsc Order = "asc"
	// OrderDesc delivers events descending by event key.
	OrderDesc Order = "desc"
	// OrderStreamAsc delivers each stream's events in ascending offset
	// order but makes no promise across streams. It is the only order a
	// live subscription can honor and the default when none is given.
	OrderStreamAsc Order = "stream-asc"
)

// ConnectivityState names how much of the swarm a store can currently reach.
type ConnectivityState string

const (
	FullyConnected     ConnectivityState = "fully-connected"
	PartiallyConnected ConnectivityState = "partially-connected"
	NotConnected       ConnectivityState = "not-connected"
)

// ConnectivityStatus is one sample of a store's connection health.
type ConnectivityStatus struct {
	State        ConnectivityState `json:"state"`
	EventsToRead uint64            `json:"eventsToRead,omitempty"`
	EventsToSend uint64            `json:"eventsToSend,omitempty"`
}

// OffsetsResult reports which events a store has, and which it knows exist
// but has not replicated yet.
type OffsetsResult struct {
	// Present holds the highest gapless offset per known stream.
	Present event.OffsetMap `json:"present"`
	// ToReplicate counts, per stream, events the store has heard of beyond
	// Present but not received in contiguous order yet.
	ToReplicate map[event.StreamID]uint64 `json:"toReplicate,omitempty"`
}

// Subscription is a cancelable sequence of values produced by a store
// operation. The channel closes when the sequence ends; Err reports why.
//
// After the channel closes, Err returns nil for a complete sequence and the
// terminal error otherwise. Cancel releases the producer and may be called
// any number of times, also after the sequence has already ended.
type Subscription[T any] interface {
	// Chan returns the delivery channel. It never blocks the producer: a
	// slow consumer buffers, it does not stall the store.
	Chan() <-chan T
	// Err returns the terminal error, if any, once Chan is closed.
	Err() error
	// Cancel stops delivery and releases producer resources.
	Cancel()
}

// EventStore is the contract every store implementation satisfies: the
// in-memory reference store as well as remote stores reached over a
// transport. Results arrive as chunked subscriptions so that queries and
// live subscriptions share one shape.
type EventStore interface {
	// NodeID returns the identity of the node this store writes for.
	NodeID(ctx context.Context) (event.NodeID, error)

	// Offsets reports the store's present offsets and its replication lag.
	Offsets(ctx context.Context) (OffsetsResult, error)

	// PersistedEvents returns the finite set of already-stored events
	// selected by q, delivered in chunks. The subscription completes once
	// all matching events have been handed out.
	PersistedEvents(ctx context.Context, q RangeQuery) (Subscription[[]event.Event], error)

	// AllEvents returns stored events selected by q followed by matching
	// live events as they arrive. With an upper bound the subscription
	// completes once every bounded stream is covered; without one it runs
	// until canceled.
	AllEvents(ctx context.Context, q LiveQuery) (Subscription[[]event.Event], error)

	// PersistEvents appends the drafts to the node's own stream and returns
	// the stored events with their assigned keys, in draft order.
	PersistEvents(ctx context.Context, drafts []event.Draft) ([]event.Event, error)

	// ConnectivityStatus emits the current connection state immediately and
	// a new sample on every change, until canceled.
	ConnectivityStatus(ctx context.Context) (Subscription[ConnectivityStatus], error)
}
