package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyStream  = errors.New("event: empty stream id")
	ErrBadOffset    = errors.New("event: offset out of range")
	ErrBadLamport   = errors.New("event: negative lamport")
	ErrBadTimestamp = errors.New("event: negative timestamp")
)

// Event is one committed entry of a stream. The store assigns stream, offset,
// lamport and timestamp when a draft is persisted; after that the event never
// changes. Tag order is irrelevant for matching but preserved for wire
// round-trips.
type Event struct {
	Stream    StreamID        `json:"stream"`
	Offset    Offset          `json:"offset"`
	Lamport   Lamport         `json:"lamport"`
	Timestamp Timestamp       `json:"timestamp"`
	Tags      []string        `json:"tags"`
	Payload   json.RawMessage `json:"payload"`
}

// Key returns the identity/sort triple of the event.
func (e Event) Key() Key {
	return Key{Lamport: e.Lamport, Stream: e.Stream, Offset: e.Offset}
}

// HasTag returns true if the event carries the given tag.
func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks the invariants every stored event satisfies. Decoding
// boundaries reject events failing this instead of coercing them.
func (e Event) Validate() error {
	if e.Stream == "" {
		return ErrEmptyStream
	}
	if !e.Offset.Valid() {
		return fmt.Errorf("%w: %d on stream %s", ErrBadOffset, e.Offset, e.Stream)
	}
	if e.Lamport < 0 {
		return fmt.Errorf("%w: %d on stream %s", ErrBadLamport, e.Lamport, e.Stream)
	}
	if e.Timestamp < 0 {
		return fmt.Errorf("%w: %d on stream %s", ErrBadTimestamp, e.Timestamp, e.Stream)
	}
	return nil
}

// Draft is what a caller hands to PersistEvents: the payload and its tags,
// everything else is assigned by the store.
type Draft struct {
	Tags    []string        `json:"tags"`
	Payload json.RawMessage `json:"payload"`
}

// NewDraft marshals payload and attaches the given tags.
func NewDraft(payload any, tags ...string) (Draft, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Draft{}, fmt.Errorf("event: marshal draft payload: %w", err)
	}
	return Draft{Tags: tags, Payload: raw}, nil
}

// MustDraft is NewDraft for payloads known to marshal, mostly tests.
func MustDraft(payload any, tags ...string) Draft {
	d, err := NewDraft(payload, tags...)
	if err != nil {
		panic(err)
	}
	return d
}
