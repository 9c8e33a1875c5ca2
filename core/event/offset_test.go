package event

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetMap_Lookup_AbsentIsMin(t *testing.T) {
	m := OffsetMap{}
	require.Equal(t, OffsetMin, m.Lookup("s1"))

	m["s1"] = 4
	require.Equal(t, Offset(4), m.Lookup("s1"))
}

func TestOffsetMap_Update_Monotone(t *testing.T) {
	m := OffsetMap{}

	require.True(t, m.Update(Event{Stream: "s1", Offset: 2}))
	require.Equal(t, Offset(2), m.Lookup("s1"))

	// lower and equal offsets are no-ops
	require.False(t, m.Update(Event{Stream: "s1", Offset: 1}))
	require.False(t, m.Update(Event{Stream: "s1", Offset: 2}))
	require.Equal(t, Offset(2), m.Lookup("s1"))

	require.True(t, m.Update(Event{Stream: "s1", Offset: 3}))
	require.Equal(t, Offset(3), m.Lookup("s1"))
}

func TestOffsetMap_Update_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	streams := []StreamID{"s1", "s2", "s3"}

	for round := 0; round < 200; round++ {
		evs := make([]Event, 10)
		for i := range evs {
			evs[i] = Event{Stream: streams[r.Intn(len(streams))], Offset: Offset(r.Intn(20))}
		}

		forward := OffsetMap{}
		for _, ev := range evs {
			forward.Update(ev)
		}

		shuffled := OffsetMap{}
		perm := r.Perm(len(evs))
		for _, i := range perm {
			shuffled.Update(evs[i])
		}

		require.True(t, forward.Equal(shuffled), "round %d: %v != %v", round, forward, shuffled)
	}
}

func TestOffsetMap_Copy_Detached(t *testing.T) {
	m := OffsetMap{"s1": 1}
	c := m.Copy()
	c["s1"] = 9
	c["s2"] = 0
	require.Equal(t, Offset(1), m.Lookup("s1"))
	require.Equal(t, OffsetMin, m.Lookup("s2"))
}

func TestOffsetMap_Json(t *testing.T) {
	m := OffsetMap{"node1-0": 3, "node2-0": 0}
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back OffsetMap
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, m.Equal(back))
}

func TestOffsetMapWithDefault_Get(t *testing.T) {
	m := OffsetMap{"s1": 5}

	lo := WithDefaultMin(m)
	require.Equal(t, Offset(5), lo.Get("s1"))
	require.Equal(t, OffsetMin, lo.Get("s2"))

	hi := WithDefaultMax(m)
	require.Equal(t, Offset(5), hi.Get("s1"))
	require.Equal(t, OffsetMax, hi.Get("s2"))
}

func TestWithinBounds(t *testing.T) {
	lower := WithDefaultMin(OffsetMap{"s1": 1})
	upper := WithDefaultMax(OffsetMap{"s1": 3})

	ev := func(off Offset) Event { return Event{Stream: "s1", Offset: off} }

	require.False(t, WithinBounds(ev(0), lower, upper))
	require.False(t, WithinBounds(ev(1), lower, upper)) // lower is exclusive
	require.True(t, WithinBounds(ev(2), lower, upper))
	require.True(t, WithinBounds(ev(3), lower, upper)) // upper is inclusive
	require.False(t, WithinBounds(ev(4), lower, upper))

	// unknown streams follow the defaults
	other := Event{Stream: "s2", Offset: 0}
	require.True(t, WithinBounds(other, lower, upper))
	require.False(t, WithinBounds(other, lower, WithDefaultMin(OffsetMap{"s1": 3})))
}

func TestOffset_Valid(t *testing.T) {
	require.True(t, Offset(0).Valid())
	require.True(t, OffsetMax.Valid())
	require.False(t, OffsetMin.Valid())
	require.False(t, Offset(-2).Valid())
	require.False(t, (OffsetMax + 1).Valid())
}
