// Package event holds the data model of the log: node and stream
// identities, offsets and offset maps, the Lamport clock, event keys and the
// events themselves, plus the pure ordering algorithms the stores are built
// on.
//
// # Ordering
//
// Every event carries a Key of (lamport, stream, offset). Keys compare by
// lamport first and stream id second; the offset never participates in
// ordering, only in identity. The resulting order is total over all events
// of all streams and every participant arrives at the same one, no matter in
// which order events reached it. Events of a disconnected stream may merge
// into the already-observed past once connectivity returns; consumers see
// this as time travel, not as reordering of what they already hold.
//
// # Offsets
//
// Within one stream offsets are dense: 0, 1, 2, ... with no gaps. An
// OffsetMap is the per-stream high-water mark of contiguous knowledge and
// doubles as the query bound. OffsetMapWithDefault disambiguates absent
// streams where a bare map cannot.
//
// # Algorithms
//
// MergeSortedByKey folds a sorted batch into a sorted buffer in O(n+m).
// IndexRange narrows a key-sorted buffer to the window a pair of offset
// bounds can touch. Both are pure; the stores own all state.
package event
