package event

import (
	"encoding/base32"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/blake2b"
)

const nodeIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NodeID identifies a node participating in the swarm. Opaque, immutable.
type NodeID string

// Stream derives the id of the node's stream with the given index.
func (n NodeID) Stream(index uint64) StreamID {
	return StreamID(string(n) + "-" + strconv.FormatUint(index, 10))
}

// StreamID identifies one append-only stream of events, owned by exactly one
// node. Derived from the owning node id plus a small stream index.
type StreamID string

// NodeID recovers the owning node id, everything before the final dash.
// Returns the empty NodeID if the stream id carries no index part.
func (s StreamID) NodeID() NodeID {
	i := strings.LastIndexByte(string(s), '-')
	if i < 0 {
		return ""
	}
	return NodeID(s[:i])
}

// OwnedBy returns true if the stream belongs to the given node.
func (s StreamID) OwnedBy(n NodeID) bool {
	return n != "" && s.NodeID() == n
}

// NodeIDFromSeed derives a stable node id from an arbitrary seed string.
// Identical seeds yield identical ids, which makes multi-node test setups
// reproducible.
func NodeIDFromSeed(seed string) NodeID {
	sum := blake2b.Sum256([]byte(seed))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return NodeID(strings.ToLower(enc[:26]))
}

// RandomNodeID generates a fresh node id.
func RandomNodeID() NodeID {
	return NodeID(gonanoid.MustGenerate(nodeIDAlphabet, 21))
}
