package es

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlog/driftlog-go/core/event"
)

const testWait = 5 * time.Second

// StartTestStore creates a memory store with a deterministic node identity
// and silent logging. It is closed via t.Cleanup.
func StartTestStore(t *testing.T, opts ...StoreOption) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(append([]StoreOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNodeSeed("test-" + t.Name()),
	}, opts...)...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// CollectEvents reads chunks from sub until n events have arrived and
// returns them flattened. It fails the test when the subscription ends or
// times out first.
func CollectEvents(t *testing.T, sub Subscription[[]event.Event], n int) []event.Event {
	t.Helper()
	var out []event.Event
	deadline := time.After(testWait)
	for {
		if len(out) >= n {
			return out
		}
		select {
		case chunk, ok := <-sub.Chan():
			if !ok {
				require.NoError(t, sub.Err())
				t.Fatalf("subscription completed with %d events, want %d", len(out), n)
			}
			out = append(out, chunk...)
		case <-deadline:
			t.Fatalf("timed out waiting for events: have %d, want %d", len(out), n)
		}
	}
}

// CollectChunks reads n chunks from sub, preserving chunk boundaries.
func CollectChunks(t *testing.T, sub Subscription[[]event.Event], n int) [][]event.Event {
	t.Helper()
	var out [][]event.Event
	deadline := time.After(testWait)
	for len(out) < n {
		select {
		case chunk, ok := <-sub.Chan():
			if !ok {
				require.NoError(t, sub.Err())
				t.Fatalf("subscription completed with %d chunks, want %d", len(out), n)
			}
			out = append(out, chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for chunks: have %d, want %d", len(out), n)
		}
	}
	return out
}

// DrainEvents reads sub until it ends and returns all events flattened. The
// caller checks sub.Err itself.
func DrainEvents(t *testing.T, sub Subscription[[]event.Event]) []event.Event {
	t.Helper()
	var out []event.Event
	deadline := time.After(testWait)
	for {
		select {
		case chunk, ok := <-sub.Chan():
			if !ok {
				return out
			}
			out = append(out, chunk...)
		case <-deadline:
			t.Fatal("timed out draining subscription")
		}
	}
}

// CollectOne reads a single value from sub.
func CollectOne[T any](t *testing.T, sub Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.Chan():
		require.True(t, ok, "subscription ended before delivering a value")
		return v
	case <-time.After(testWait):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}
