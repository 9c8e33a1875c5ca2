package es

import (
	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/tags"
)

// RangeQuery selects a finite slice of already-persisted events.
//
// Bounds are offset maps: an event is selected when its offset lies above
// Lower and at or below Upper for its stream. A nil Lower means "from the
// start of every stream". A nil Upper means "up to everything persisted at
// the moment the query starts".
type RangeQuery struct {
	// Lower is the exclusive lower bound. Streams absent from the map are
	// read from their beginning.
	Lower event.OffsetMap
	// Upper is the inclusive upper bound. Streams absent from the map
	// contribute nothing. Nil selects the store's present offsets.
	Upper event.OffsetMap
	// Where restricts the result to matching events. The zero Where keeps
	// every event.
	Where tags.Where
	// Order is the delivery order, OrderStreamAsc when empty.
	Order Order
	// MinKey, when set, drops every event whose key is at or below it.
	// Useful to resume a sorted read after the last key already seen.
	MinKey *event.Key
}

// Validate reports whether the query can be served.
func (q RangeQuery) Validate() error {
	switch q.Order {
	case "", OrderAsc, OrderDesc, OrderStreamAsc:
		return nil
	default:
		return ErrBadOrder
	}
}

// LiveQuery selects persisted events like a RangeQuery and then follows the
// live feed. Without an Upper bound it never completes on its own.
type LiveQuery struct {
	// Lower is the exclusive lower bound, as in RangeQuery.
	Lower event.OffsetMap
	// Upper, when set, bounds the subscription: only the named streams are
	// followed and the subscription completes once each has reached its
	// bound. Nil follows all streams forever.
	Upper event.OffsetMap
	// Where restricts delivery to matching events. The zero Where keeps
	// every event.
	Where tags.Where
	// Order must be empty or OrderStreamAsc. Sorted orders need the whole
	// result before the first chunk, which an unbounded feed never has.
	Order Order
	// MinKey, when set, drops every event whose key is at or below it.
	MinKey *event.Key
}

// Validate reports whether the query can be served.
func (q LiveQuery) Validate() error {
	switch q.Order {
	case "", OrderStreamAsc:
		return nil
	case OrderAsc, OrderDesc:
		return ErrUnboundedSort
	default:
		return ErrBadOrder
	}
}

// eventFilter is the exact per-event selection shared by all delivery
// paths. The index window handed out by event.IndexRange is a candidate
// set; this decides.
type eventFilter struct {
	lower  event.OffsetMapWithDefault
	upper  event.OffsetMapWithDefault
	where  tags.Where
	minKey *event.Key
	node   event.NodeID
}

func (f eventFilter) match(ev event.Event) bool {
	if !event.WithinBounds(ev, f.lower, f.upper) {
		return false
	}
	if f.minKey != nil && ev.Key().Compare(*f.minKey) <= 0 {
		return false
	}
	if !f.where.IsEmpty() && !f.where.Matches(ev, f.node) {
		return false
	}
	return true
}
