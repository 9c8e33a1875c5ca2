// Package sf provides a generic single-flight mechanism for deduplicating
// concurrent function calls with the same key.
//
// Only one execution per key is ever in flight. Goroutines calling
// [Singleflight.Do] with a key that is already running block until that run
// finishes and share its result.
//
// The remote store uses this to fetch the node's identity once, no matter
// how many concurrent operations need it:
//
//	ids := sf.New[event.NodeID]()
//
//	id, err := ids.Do("node_id", func() (event.NodeID, error) {
//	    return fetchNodeID(ctx)
//	})
//
// The type parameter keeps results type-safe without casting at the call
// site.
package sf
