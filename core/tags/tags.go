package tags

import (
	"strings"

	"github.com/driftlog/driftlog-go/core/ds"
	"github.com/driftlog/driftlog-go/core/event"
)

// Tag is a single label, optionally carrying an extractor that derives a
// per-entity id suffix from a payload. A tag "robot" with extracted id "r5"
// emits both "robot" and "robot:r5", so broad and narrow subscriptions work
// without prefix search.
type Tag struct {
	label   string
	extract func(payload any) (string, bool)
}

// NewTag creates a tag with the given label.
func NewTag(label string) Tag {
	return Tag{label: label}
}

// WithExtractor attaches an entity-id extractor used by Apply.
func (t Tag) WithExtractor(fn func(payload any) (string, bool)) Tag {
	t.extract = fn
	return t
}

// ID applies the tag's extractor to the payload. Without an extractor, or
// when the extractor yields nothing, ok is false.
func (t Tag) ID(payload any) (id string, ok bool) {
	if t.extract == nil {
		return "", false
	}
	return t.extract(payload)
}

// Label returns the tag's label.
func (t Tag) Label() string { return t.label }

// Tags promotes the tag to a single-element conjunction.
func (t Tag) Tags() Tags {
	return Tags{tags: []Tag{t}}
}

// WithID returns the conjunction of the base label and the label suffixed
// with ":id", selecting one entity while staying visible to subscribers of
// the broad label.
func (t Tag) WithID(id string) Tags {
	return Tags{tags: []Tag{{label: t.label}, {label: t.label + ":" + id}}}
}

// And combines two tags into a conjunction.
func (t Tag) And(other Tag) Tags {
	return t.Tags().AndTag(other)
}

// Or combines two tags into a disjunction.
func (t Tag) Or(other Tag) Where {
	return t.Tags().Or(other.Tags())
}

// Apply builds a draft for the payload carrying the tag's labels, the
// id-suffixed one included when the extractor yields an id.
func (t Tag) Apply(payload any) (event.Draft, error) {
	return t.Tags().Apply(payload)
}

// Tags is a conjunction of tags: an event matches when it carries every
// label. Conjunction is the emit-side shape too, so a Tags can both tag new
// drafts and select events. The payload contract of a conjunction is the
// intersection of its operands' contracts; Go cannot intersect types, so
// that narrowing is a documented contract between emitters and subscribers,
// not a compile-time one.
//
// The zero Tags is the empty conjunction and matches every event.
type Tags struct {
	tags  []Tag // label-deduped, insertion order
	local bool
}

// NewTags creates a conjunction of plain labels, duplicates dropped.
func NewTags(labels ...string) Tags {
	t := Tags{}
	seen := ds.NewStringSet()
	for _, l := range labels {
		if !seen.Contains(l) {
			seen.Add(l)
			t.tags = append(t.tags, Tag{label: l})
		}
	}
	return t
}

// And returns the conjunction of both operands: the union of their labels,
// first occurrence keeping its position, restricted to local events if
// either side is.
func (t Tags) And(other Tags) Tags {
	out := t
	out.tags = append([]Tag(nil), t.tags...)
	out.local = t.local || other.local
	seen := ds.NewStringSet(t.labels()...)
	for _, tag := range other.tags {
		if !seen.Contains(tag.label) {
			seen.Add(tag.label)
			out.tags = append(out.tags, tag)
		}
	}
	return out
}

// AndTag adds a single tag to the conjunction.
func (t Tags) AndTag(tag Tag) Tags {
	return t.And(tag.Tags())
}

// Local restricts the conjunction to events authored by the querying node.
func (t Tags) Local() Tags {
	t.local = true
	return t
}

// IsLocal returns true if the conjunction is restricted to local events.
func (t Tags) IsLocal() bool { return t.local }

// Or starts a disjunction of the two conjunctions. The payload contract
// widens to the union of the operands'.
func (t Tags) Or(other Tags) Where {
	return Where{disjuncts: []Tags{t, other}}
}

// Where promotes the conjunction to a single-alternative query.
func (t Tags) Where() Where {
	return Where{disjuncts: []Tags{t}}
}

// Labels returns the conjunction's labels in insertion order, never nil.
func (t Tags) Labels() []string {
	out := make([]string, 0, len(t.tags))
	for _, tag := range t.tags {
		out = append(out, tag.label)
	}
	return out
}

func (t Tags) labels() []string { return t.Labels() }

// Apply builds a draft for the payload tagged with every label of the
// conjunction, plus the id-suffixed labels of tags whose extractor yields an
// id for this payload.
func (t Tags) Apply(payload any) (event.Draft, error) {
	labels := ds.NewStringSet()
	for _, tag := range t.tags {
		labels.Add(tag.label)
		if tag.extract != nil {
			if id, ok := tag.extract(payload); ok {
				labels.Add(tag.label + ":" + id)
			}
		}
	}
	return event.NewDraft(payload, labels.Values()...)
}

// Matches reports whether the event carries every label of the conjunction
// and, for local-restricted conjunctions, was authored by localNode. An
// unknown localNode never excludes.
func (t Tags) Matches(ev event.Event, localNode event.NodeID) bool {
	if t.local && localNode != "" && !ev.Stream.OwnedBy(localNode) {
		return false
	}
	for _, tag := range t.tags {
		if !ev.HasTag(tag.label) {
			return false
		}
	}
	return true
}

// Subscription renders the conjunction as one wire disjunct.
func (t Tags) Subscription() TagSubscription {
	return TagSubscription{Tags: t.Labels(), Local: t.local}
}

// String renders the conjunction as 'a' & 'b', "& isLocal" appended for
// local-restricted ones. Embedded single quotes are doubled.
func (t Tags) String() string {
	if len(t.tags) == 0 {
		if t.local {
			return "isLocal"
		}
		return "allEvents"
	}
	var b strings.Builder
	for i, tag := range t.tags {
		if i > 0 {
			b.WriteString(" & ")
		}
		b.WriteString(quoteLabel(tag.label))
	}
	if t.local {
		b.WriteString(" & isLocal")
	}
	return b.String()
}

func quoteLabel(label string) string {
	return "'" + strings.ReplaceAll(label, "'", "''") + "'"
}
