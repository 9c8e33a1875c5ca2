package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvent_Validate(t *testing.T) {
	ok := Event{Stream: "n1-0", Offset: 0, Lamport: 0, Timestamp: 0}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Stream = ""
	require.ErrorIs(t, bad.Validate(), ErrEmptyStream)

	bad = ok
	bad.Offset = -1
	require.ErrorIs(t, bad.Validate(), ErrBadOffset)

	bad = ok
	bad.Offset = OffsetMax + 1
	require.ErrorIs(t, bad.Validate(), ErrBadOffset)

	bad = ok
	bad.Lamport = -1
	require.ErrorIs(t, bad.Validate(), ErrBadLamport)

	bad = ok
	bad.Timestamp = -1
	require.ErrorIs(t, bad.Validate(), ErrBadTimestamp)
}

func TestEvent_HasTag(t *testing.T) {
	e := Event{Tags: []string{"a", "b"}}
	require.True(t, e.HasTag("a"))
	require.False(t, e.HasTag("c"))
}

func TestEvent_Json_RoundTrip(t *testing.T) {
	e := Event{
		Stream:    "n1-0",
		Offset:    3,
		Lamport:   17,
		Timestamp: 1000,
		Tags:      []string{"b", "a"},
		Payload:   json.RawMessage(`{"v":1}`),
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, e, back)
	// tag order survives the round trip
	require.Equal(t, []string{"b", "a"}, back.Tags)
}

func TestNewDraft(t *testing.T) {
	d, err := NewDraft(map[string]int{"n": 1}, "a", "b")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, d.Tags)
	require.JSONEq(t, `{"n":1}`, string(d.Payload))

	_, err = NewDraft(make(chan int))
	require.Error(t, err)

	require.Panics(t, func() { MustDraft(make(chan int)) })
}
