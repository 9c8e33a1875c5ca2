// Package ds provides the small generic collections shared across the
// library: an insertion-ordered set and an unbounded FIFO queue.
package ds

import (
	"encoding/json"
	"fmt"
)

type StringSet = Set[string]

// Set is an insertion-ordered set: O(1) membership plus deterministic
// iteration in the order elements were first added. Tag expressions rely on
// this to render the same wire form for the same construction sequence.
//
// Add and Extend mutate the receiver; Union, Copy and Values return new
// values and leave the receiver untouched.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

// NewSet creates a set containing the given items, duplicates dropped.
func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{items: map[T]struct{}{}, order: make([]T, 0, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// NewStringSet creates a new string set with the given items.
func NewStringSet(items ...string) *StringSet {
	return NewSet(items...)
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("%v", s.order)
}

// Add adds v to the set. No-op if already present. (mutates)
func (s *Set[T]) Add(v T) {
	if s.Contains(v) {
		return
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
}

// Extend adds all given items in order. (mutates)
func (s *Set[T]) Extend(items ...T) {
	for _, v := range items {
		s.Add(v)
	}
}

// Contains returns true if v is present in the set.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

// ContainsValues returns true if all given items are present in the set.
func (s *Set[T]) ContainsValues(items ...T) bool {
	for _, v := range items {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// ContainsAll returns true if every element of other is present in s.
func (s *Set[T]) ContainsAll(other *Set[T]) bool {
	for v := range other.items {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// IsSubsetOf returns true if all elements of s are contained in other.
// An empty set is a subset of any set.
func (s *Set[T]) IsSubsetOf(other *Set[T]) bool {
	return other.ContainsAll(s)
}

// Union returns a new set holding the receiver's elements followed by those
// of other that are not already present. Neither operand is modified.
func (s *Set[T]) Union(other *Set[T]) *Set[T] {
	u := NewSet(s.order...)
	u.Extend(other.order...)
	return u
}

// Copy returns a new set with the same elements and order.
func (s *Set[T]) Copy() *Set[T] {
	return NewSet(s.order...)
}

// Values returns the elements as a fresh slice in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

// ForEach calls fn for each element in insertion order.
func (s *Set[T]) ForEach(fn func(T)) {
	for _, v := range s.order {
		fn(v)
	}
}

// Len returns the number of elements in the set.
func (s *Set[T]) Len() int { return len(s.items) }

// IsEmpty returns true if the set contains no elements.
func (s *Set[T]) IsEmpty() bool { return len(s.items) == 0 }

// Eq returns true if both sets contain the same elements, order ignored.
func (s *Set[T]) Eq(other *Set[T]) bool {
	return s.Len() == other.Len() && s.ContainsAll(other)
}

// EqValues returns true if the set contains exactly the given items.
func (s *Set[T]) EqValues(items ...T) bool {
	return s.Eq(NewSet(items...))
}

// MarshalJSON serializes the set as an ordered JSON array.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON deserializes a JSON array into the set, replacing its
// contents.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.items = map[T]struct{}{}
	s.order = nil
	s.Extend(items...)
	return nil
}
