package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamID_RoundTrip(t *testing.T) {
	n := NodeID("node1")
	s := n.Stream(3)
	require.Equal(t, StreamID("node1-3"), s)
	require.Equal(t, n, s.NodeID())
	require.True(t, s.OwnedBy(n))
	require.False(t, s.OwnedBy(NodeID("node2")))
}

func TestStreamID_NodeWithDashes(t *testing.T) {
	n := NodeID("a-b-c")
	s := n.Stream(0)
	require.Equal(t, StreamID("a-b-c-0"), s)
	require.Equal(t, n, s.NodeID())
}

func TestStreamID_NoIndexPart(t *testing.T) {
	require.Equal(t, NodeID(""), StreamID("plain").NodeID())
	require.False(t, StreamID("plain").OwnedBy(""))
}

func TestNodeIDFromSeed_Deterministic(t *testing.T) {
	a := NodeIDFromSeed("alpha")
	b := NodeIDFromSeed("alpha")
	c := NodeIDFromSeed("beta")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, string(a), 26)
}

func TestRandomNodeID_Unique(t *testing.T) {
	seen := map[NodeID]bool{}
	for i := 0; i < 100; i++ {
		id := RandomNodeID()
		require.False(t, seen[id])
		seen[id] = true
	}
}
