package tags

import (
	"strings"

	"github.com/driftlog/driftlog-go/core/event"
)

// TagSubscription is the wire form of one disjunct: the labels an event must
// all carry, and whether only locally-authored events qualify.
type TagSubscription struct {
	Tags  []string `json:"tags"`
	Local bool     `json:"local"`
}

// Where is a flat disjunction of conjunctions: an event matches when at
// least one alternative does. A Where selects events, it can never tag them;
// there is no single coherent label set to attach. The payload contract of a
// disjunction is the union of its alternatives'.
//
// The zero Where has no alternatives and matches nothing.
type Where struct {
	disjuncts []Tags
}

// MatchAll returns the query matching every event: a single empty
// conjunction.
func MatchAll() Where {
	return Tags{}.Where()
}

// FromSubscriptions rebuilds a Where from its wire form.
func FromSubscriptions(subs []TagSubscription) Where {
	w := Where{disjuncts: make([]Tags, 0, len(subs))}
	for _, sub := range subs {
		t := NewTags(sub.Tags...)
		t.local = sub.Local
		w.disjuncts = append(w.disjuncts, t)
	}
	return w
}

// Or returns the disjunction extended by one more alternative. The receiver
// stays flat; alternatives never nest.
func (w Where) Or(t Tags) Where {
	out := Where{disjuncts: make([]Tags, 0, len(w.disjuncts)+1)}
	out.disjuncts = append(out.disjuncts, w.disjuncts...)
	out.disjuncts = append(out.disjuncts, t)
	return out
}

// OrWhere merges the alternatives of both queries, left before right.
func (w Where) OrWhere(other Where) Where {
	out := Where{disjuncts: make([]Tags, 0, len(w.disjuncts)+len(other.disjuncts))}
	out.disjuncts = append(out.disjuncts, w.disjuncts...)
	out.disjuncts = append(out.disjuncts, other.disjuncts...)
	return out
}

// IsEmpty returns true for the zero Where, the one without alternatives.
func (w Where) IsEmpty() bool { return len(w.disjuncts) == 0 }

// Matches reports whether the event satisfies at least one alternative.
func (w Where) Matches(ev event.Event, localNode event.NodeID) bool {
	for _, t := range w.disjuncts {
		if t.Matches(ev, localNode) {
			return true
		}
	}
	return false
}

// WireFormat renders the query as its wire form, one entry per alternative,
// in construction order. Rendering is deterministic: the same construction
// sequence always yields the same output.
func (w Where) WireFormat() []TagSubscription {
	out := make([]TagSubscription, 0, len(w.disjuncts))
	for _, t := range w.disjuncts {
		out = append(out, t.Subscription())
	}
	return out
}

// String renders the alternatives joined by " | ".
func (w Where) String() string {
	parts := make([]string, 0, len(w.disjuncts))
	for _, t := range w.disjuncts {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " | ")
}
