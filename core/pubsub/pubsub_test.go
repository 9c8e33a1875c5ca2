package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed early, got %d of %d", len(out), n)
			out = append(out, v)
		case <-timeout:
			t.Fatalf("timed out, got %d of %d", len(out), n)
		}
	}
	return out
}

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker[int]()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	require.Equal(t, 2, b.Len())

	require.Equal(t, 2, b.Publish(1))
	require.Equal(t, 2, b.Publish(2))

	require.Equal(t, []int{1, 2}, collect(t, s1.Chan(), 2))
	require.Equal(t, []int{1, 2}, collect(t, s2.Chan(), 2))
}

func TestBroker_LateSubscriberMissesPast(t *testing.T) {
	b := NewBroker[int]()
	b.Publish(1)

	s := b.Subscribe()
	b.Publish(2)
	b.Close()

	var got []int
	for v := range s.Chan() {
		got = append(got, v)
	}
	require.Equal(t, []int{2}, got)
}

func TestBroker_Cancel_StopsDelivery(t *testing.T) {
	b := NewBroker[int]()
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	s1.Cancel()
	s1.Cancel() // idempotent
	require.Equal(t, 1, b.Len())
	require.Equal(t, 1, b.Publish(7))

	require.Equal(t, []int{7}, collect(t, s2.Chan(), 1))

	_, ok := <-s1.Chan()
	require.False(t, ok)
}

func TestBroker_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroker[int]()
	slow := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.Publish(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// nothing was lost while the subscriber lagged
	require.Equal(t, 499, collect(t, slow.Chan(), 500)[499])
}

func TestBroker_PublishFromHandler_NoDeadlock(t *testing.T) {
	b := NewBroker[int]()
	s := b.Subscribe()

	done := make(chan []int)
	go func() {
		var got []int
		for v := range s.Chan() {
			got = append(got, v)
			if v < 3 {
				// a reaction publishing again must not deadlock and must be
				// delivered after the current value, not inside it
				b.Publish(v + 1)
			}
			if v == 3 {
				s.Cancel()
			}
		}
		done <- got
	}()

	b.Publish(1)

	select {
	case got := <-done:
		require.Equal(t, []int{1, 2, 3}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant publish deadlocked")
	}
}

func TestBroker_Close_DrainsThenCloses(t *testing.T) {
	b := NewBroker[int]()
	s := b.Subscribe()

	b.Publish(1)
	b.Publish(2)
	b.Close()

	require.Nil(t, b.Subscribe())
	require.Equal(t, 0, b.Publish(3))

	var got []int
	for v := range s.Chan() {
		got = append(got, v)
	}
	require.Equal(t, []int{1, 2}, got)
}
