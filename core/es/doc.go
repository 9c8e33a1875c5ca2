// Package es defines the store contract for append-only event logs and an
// in-memory reference implementation.
//
// A store holds events from many streams, merged into one sequence by event
// key. Reads come back as chunked subscriptions: PersistedEvents delivers a
// finite selection of what is already stored, AllEvents continues from that
// selection into the live feed without a gap. Writes go to the node's own
// stream through PersistEvents; events from other nodes replicate in
// through PushEvents.
//
// All store operations are safe for concurrent use. Delivery never blocks
// the store: each subscription buffers independently, so one slow consumer
// cannot stall writers or other readers.
package es
