package es

import "errors"

var (
	// ErrStoreClosed is returned by every operation on a closed store.
	ErrStoreClosed = errors.New("es: store closed")

	// ErrUnboundedSort is returned when a live query asks for a sorted
	// delivery order. Events keep arriving forever on an unbounded set of
	// streams, so no total order can ever be emitted in sequence.
	ErrUnboundedSort = errors.New("es: sorted order requires an upper bound")

	// ErrBadOrder is returned for an order value the store does not know.
	ErrBadOrder = errors.New("es: unknown delivery order")

	// ErrLocalStream is returned when replicated events name a stream owned
	// by the receiving node. Local events enter through PersistEvents only.
	ErrLocalStream = errors.New("es: replicated event targets the local stream")
)
