package tags

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlog/driftlog-go/core/event"
)

func ev(stream event.StreamID, tagList ...string) event.Event {
	return event.Event{Stream: stream, Tags: tagList}
}

func TestTags_And_UnionDedup(t *testing.T) {
	a := NewTags("a", "b")
	b := NewTags("b", "c")

	u := a.And(b)
	require.Equal(t, []string{"a", "b", "c"}, u.Labels())

	// operands untouched
	require.Equal(t, []string{"a", "b"}, a.Labels())
	require.Equal(t, []string{"b", "c"}, b.Labels())
}

func TestTags_And_LocalInfects(t *testing.T) {
	a := NewTags("a").Local()
	b := NewTags("b")

	require.True(t, a.And(b).IsLocal())
	require.True(t, b.And(a).IsLocal())
	require.False(t, b.And(NewTags("c")).IsLocal())
}

func TestTag_And(t *testing.T) {
	u := NewTag("a").And(NewTag("b"))
	require.Equal(t, []string{"a", "b"}, u.Labels())
}

func TestTag_WithID(t *testing.T) {
	w := NewTag("robot").WithID("r5")
	require.Equal(t, []string{"robot", "robot:r5"}, w.Labels())
}

func TestTag_ID(t *testing.T) {
	plain := NewTag("robot")
	_, ok := plain.ID("anything")
	require.False(t, ok, "no extractor, no id")

	robot := plain.WithExtractor(func(payload any) (string, bool) {
		s, ok := payload.(string)
		return s, ok
	})
	id, ok := robot.ID("r5")
	require.True(t, ok)
	require.Equal(t, "r5", id)

	_, ok = robot.ID(42)
	require.False(t, ok, "extractor declined")
}

func TestTags_Matches_Superset(t *testing.T) {
	q := NewTags("a", "b")

	require.True(t, q.Matches(ev("n-0", "a", "b"), ""))
	require.True(t, q.Matches(ev("n-0", "b", "x", "a"), "")) // order irrelevant
	require.False(t, q.Matches(ev("n-0", "a"), ""))
	require.False(t, q.Matches(ev("n-0"), ""))

	// the empty conjunction matches everything
	require.True(t, Tags{}.Matches(ev("n-0"), ""))
}

func TestTags_Matches_Local(t *testing.T) {
	q := NewTags("a").Local()
	local := event.NodeID("n1")

	require.True(t, q.Matches(ev("n1-0", "a"), local))
	require.False(t, q.Matches(ev("n2-0", "a"), local))

	// unknown local node never excludes
	require.True(t, q.Matches(ev("n2-0", "a"), ""))
}

func TestTags_Apply_Extractor(t *testing.T) {
	type reading struct {
		Robot string `json:"robot"`
		V     int    `json:"v"`
	}

	robot := NewTag("robot").WithExtractor(func(payload any) (string, bool) {
		r, ok := payload.(reading)
		if !ok {
			return "", false
		}
		return r.Robot, true
	})

	d, err := robot.Apply(reading{Robot: "r5", V: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"robot", "robot:r5"}, d.Tags)
	require.JSONEq(t, `{"robot":"r5","v":1}`, string(d.Payload))

	// extractor declines: only the base label
	d, err = robot.Apply("not a reading")
	require.NoError(t, err)
	require.Equal(t, []string{"robot"}, d.Tags)
}

func TestTags_Apply_ConjunctionKeepsAllExtractors(t *testing.T) {
	first := NewTag("first").WithExtractor(func(any) (string, bool) { return "1", true })
	second := NewTag("second").WithExtractor(func(any) (string, bool) { return "2", true })

	d, err := first.And(second).Apply(struct{}{})
	require.NoError(t, err)
	require.Equal(t, []string{"first", "first:1", "second", "second:2"}, d.Tags)
}

func TestTags_String(t *testing.T) {
	require.Equal(t, `'a'`, NewTags("a").String())
	require.Equal(t, `'a' & 'b'`, NewTags("a", "b").String())
	require.Equal(t, `'a' & isLocal`, NewTags("a").Local().String())
	require.Equal(t, "allEvents", Tags{}.String())
	require.Equal(t, "isLocal", Tags{}.Local().String())
}

func TestTags_String_QuoteDoubling(t *testing.T) {
	require.Equal(t, `'it''s'`, NewTags("it's").String())
	require.Equal(t, `''''`, NewTags("'").String())
}

func TestTags_Subscription_NeverNilTags(t *testing.T) {
	sub := Tags{}.Subscription()
	require.NotNil(t, sub.Tags)

	data, err := json.Marshal(sub)
	require.NoError(t, err)
	require.JSONEq(t, `{"tags":[],"local":false}`, string(data))
}
