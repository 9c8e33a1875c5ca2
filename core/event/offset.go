package event

// Offset is the sequence number of an event within its stream. Offsets start
// at 0, increase by one per event and are gapless: a store never exposes
// offset n+1 of a stream before offset n.
type Offset int64

const (
	// OffsetMin sorts before every stored offset, "nothing of this stream".
	OffsetMin Offset = -1
	// OffsetMax is the wire-safe infinity (largest integer JSON peers
	// represent exactly), "everything of this stream".
	OffsetMax Offset = 1<<53 - 1
)

// Valid reports whether o is a legal stored offset. The sentinels are valid
// only in bounds, never on events.
func (o Offset) Valid() bool { return o >= 0 && o <= OffsetMax }

// OffsetMap records, per stream, the highest offset seen and contiguous.
// Absent streams implicitly sit at OffsetMin. It serves both as a progress
// watermark ("present") and as a query bound. Entries only ever grow.
type OffsetMap map[StreamID]Offset

// Lookup returns the recorded offset for the stream, OffsetMin if absent.
func (m OffsetMap) Lookup(stream StreamID) Offset {
	if off, ok := m[stream]; ok {
		return off
	}
	return OffsetMin
}

// Update records the event's offset if it is higher than the current entry
// for its stream. Returns true if the map advanced. Updating with an older
// or equal offset is a no-op, which makes Update idempotent and, across
// distinct streams, commutative.
func (m OffsetMap) Update(ev Event) bool {
	if ev.Offset <= m.Lookup(ev.Stream) {
		return false
	}
	m[ev.Stream] = ev.Offset
	return true
}

// Copy returns an independent copy of the map.
func (m OffsetMap) Copy() OffsetMap {
	out := make(OffsetMap, len(m))
	for s, off := range m {
		out[s] = off
	}
	return out
}

// IsEmpty returns true if no stream has been recorded.
func (m OffsetMap) IsEmpty() bool { return len(m) == 0 }

// Equal returns true if both maps record the same offsets for the same
// streams.
func (m OffsetMap) Equal(other OffsetMap) bool {
	if len(m) != len(other) {
		return false
	}
	for s, off := range m {
		if other.Lookup(s) != off {
			return false
		}
	}
	return true
}

// OffsetMapWithDefault pairs an OffsetMap with an explicit offset for absent
// streams. A bare map is ambiguous as a bound: "no entry" may mean "from the
// start" on a lower bound but "not at all" on an upper bound. The default
// makes the reading explicit.
type OffsetMapWithDefault struct {
	Default Offset
	Offsets OffsetMap
}

// WithDefaultMin wraps m so absent streams read as OffsetMin.
func WithDefaultMin(m OffsetMap) OffsetMapWithDefault {
	return OffsetMapWithDefault{Default: OffsetMin, Offsets: m}
}

// WithDefaultMax wraps m so absent streams read as OffsetMax.
func WithDefaultMax(m OffsetMap) OffsetMapWithDefault {
	return OffsetMapWithDefault{Default: OffsetMax, Offsets: m}
}

// Get returns the bound for the stream, falling back to the default.
func (b OffsetMapWithDefault) Get(stream StreamID) Offset {
	if off, ok := b.Offsets[stream]; ok {
		return off
	}
	return b.Default
}

// WithinBounds reports whether the event sits strictly above the exclusive
// lower bound and at or below the inclusive upper bound for its stream.
func WithinBounds(e Event, lower, upper OffsetMapWithDefault) bool {
	return e.Offset > lower.Get(e.Stream) && e.Offset <= upper.Get(e.Stream)
}
