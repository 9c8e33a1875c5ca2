package event

import (
	"strconv"
	"strings"
	"time"
)

// Timestamp is a wall-clock time in microseconds since the Unix epoch.
// Informational only; ordering never depends on it.
type Timestamp int64

// TimestampOf converts a time.Time to its microsecond representation.
func TimestampOf(t time.Time) Timestamp { return Timestamp(t.UnixMicro()) }

// Time converts the timestamp back to a time.Time in UTC.
func (t Timestamp) Time() time.Time { return time.UnixMicro(int64(t)).UTC() }

// Lamport is a logical clock value. Every event carries one; together with
// the stream id it defines the swarm-wide total order.
type Lamport int64

// LamportClock issues monotonically increasing Lamport values anchored to
// wall-clock microseconds. Not safe for concurrent use; the owning store
// ticks it from inside its single mutation path.
type LamportClock struct {
	last Lamport
}

// Tick returns max(now, last+1) and remembers it. Monotonic even when the
// wall clock runs backward.
func (c *LamportClock) Tick(now Timestamp) Lamport {
	next := Lamport(now)
	if next <= c.last {
		next = c.last + 1
	}
	c.last = next
	return next
}

// Witness advances the clock past an externally observed Lamport value, so
// events created locally afterwards sort after everything already seen.
func (c *LamportClock) Witness(l Lamport) {
	if l > c.last {
		c.last = l
	}
}

// Last returns the highest value issued or witnessed so far.
func (c *LamportClock) Last() Lamport { return c.last }

// Key is the identity and sort triple of an event. Comparison uses only
// (lamport, stream); the offset participates in identity and in the rendered
// identifier, never in ordering.
type Key struct {
	Lamport Lamport  `json:"lamport"`
	Stream  StreamID `json:"stream"`
	Offset  Offset   `json:"offset"`
}

// Compare returns a negative, zero or positive value ordering k against
// other: lamport ascending first, stream id lexicographic on ties. Every
// pair of events from distinct (lamport, stream) pairs is strictly ordered,
// independent of arrival order. This is the one guarantee all parties in the
// swarm agree on.
func (k Key) Compare(other Key) int {
	switch {
	case k.Lamport < other.Lamport:
		return -1
	case k.Lamport > other.Lamport:
		return 1
	}
	return strings.Compare(string(k.Stream), string(other.Stream))
}

// Before returns true if k orders strictly before other.
func (k Key) Before(other Key) bool { return k.Compare(other) < 0 }

// Equal folds the offset in for exact identity checks.
func (k Key) Equal(other Key) bool {
	return k.Lamport == other.Lamport && k.Stream == other.Stream && k.Offset == other.Offset
}

// String renders "lamport/stream/offset".
func (k Key) String() string {
	return strconv.FormatInt(int64(k.Lamport), 10) + "/" + string(k.Stream) + "/" + strconv.FormatInt(int64(k.Offset), 10)
}
