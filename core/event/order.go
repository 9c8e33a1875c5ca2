package event

import (
	"slices"
	"sort"
)

// CompareByKey orders two events by their keys.
func CompareByKey(a, b Event) int { return a.Key().Compare(b.Key()) }

// SortByKey sorts events in place into key order. Stable, so exact
// duplicates keep their relative position.
func SortByKey(events []Event) {
	slices.SortStableFunc(events, CompareByKey)
}

// IsSortedByKey reports whether events are in key order.
func IsSortedByKey(events []Event) bool {
	return slices.IsSortedFunc(events, CompareByKey)
}

// MergeSortedByKey merges two key-sorted slices into a new key-sorted slice
// by consuming the smaller head element of either side, O(n+m). On equal
// keys elements of a win the position. Inputs are not modified; the result
// shares no backing array with them.
func MergeSortedByKey(a, b []Event) []Event {
	if len(a) == 0 {
		return slices.Clone(b)
	}
	if len(b) == 0 {
		return slices.Clone(a)
	}
	out := make([]Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if CompareByKey(a[i], b[j]) <= 0 {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// IndexRange computes a window [lo, hi) of the key-sorted slice that
// contains every event within the exclusive lower / inclusive upper offset
// bounds. It is a pre-filter: events inside the window may still violate the
// bounds and exact filtering must follow, but no event outside the window
// satisfies them.
//
// The window is found by binary search treating the bound as a cut through
// the key order: an index is too low while its event sits at or below the
// bound for its stream, too high once above it, where an event of a stream
// unknown to the bound ranks at the bound's default and an event exactly at
// the bound defers the verdict to the next index, so adjacent events of one
// stream never land on different sides of the cut. Bounds taken as present
// snapshots of the same buffer cut it cleanly and the window is minimal.
// An arbitrary bound may interleave with the key order instead, so the cut
// margins are re-checked and the window widened to the outermost events
// actually inside the bounds.
func IndexRange(sorted []Event, lower, upper OffsetMapWithDefault) (lo, hi int) {
	lo, hi = 0, len(sorted)

	if lower.Default == OffsetMin && len(lower.Offsets) > 0 {
		lo = sort.Search(len(sorted), func(i int) bool {
			return ordAt(sorted, lower, i) >= 0
		})
		for i := 0; i < lo; i++ {
			if WithinBounds(sorted[i], lower, upper) {
				lo = i
				break
			}
		}
	}

	if upper.Default == OffsetMin && hi > lo {
		cut := sort.Search(len(sorted), func(i int) bool {
			return ordAt(sorted, upper, i) > 0
		})
		if cut < hi {
			hi = cut
			for i := len(sorted) - 1; i >= hi; i-- {
				if WithinBounds(sorted[i], lower, upper) {
					hi = i + 1
					break
				}
			}
		}
	}

	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// ordAt ranks the event at index i against the bound: negative below it,
// positive above it. An exact hit passes the decision to the following
// index; a tie running to the end of the slice ranks as the cut itself.
func ordAt(sorted []Event, bound OffsetMapWithDefault, i int) int {
	for ; i < len(sorted); i++ {
		height := bound.Get(sorted[i].Stream)
		switch {
		case sorted[i].Offset < height:
			return -1
		case sorted[i].Offset > height:
			return 1
		}
	}
	return 0
}
