package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlog/driftlog-go/adapters/websocket"
	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/tags"
	"github.com/driftlog/driftlog-go/ports/kv"
)

func newClient(t *testing.T, url string, opts ...func(*websocket.StoreConfig)) *websocket.Store {
	t.Helper()
	cfg := websocket.StoreConfig{
		URL: url,
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := websocket.NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func mustPersist(t *testing.T, store es.EventStore, drafts ...event.Draft) []event.Event {
	t.Helper()
	evs, err := store.PersistEvents(context.Background(), drafts)
	require.NoError(t, err)
	return evs
}

// Two clients share one server. The follower subscribes first, then sees
// the writer's batch as history and the next persist live, through the
// same feed.
func TestIntegration_TwoClientsOneServer(t *testing.T) {
	ctx := context.Background()
	mem := es.StartTestStore(t)
	url := websocket.NewTestServer(t, mem)

	writer := newClient(t, url)
	follower := newClient(t, url)

	sensor := tags.NewTag("sensor")
	sub, err := follower.AllEvents(ctx, es.LiveQuery{Where: sensor.Tags().Where()})
	require.NoError(t, err)
	defer sub.Cancel()

	mustPersist(t, writer,
		event.MustDraft(map[string]any{"celsius": 19.5}, "sensor", "sensor:kitchen"),
		event.MustDraft(map[string]any{"celsius": 12.3}, "sensor", "sensor:cellar"),
	)
	history := es.CollectEvents(t, sub, 2)
	require.Equal(t, event.Offset(0), history[0].Offset)
	require.Equal(t, event.Offset(1), history[1].Offset)

	mustPersist(t, writer, event.MustDraft(map[string]any{"celsius": 22.8}, "sensor", "sensor:kitchen"))
	live := es.CollectEvents(t, sub, 1)
	require.Equal(t, event.Offset(2), live[0].Offset)

	// Both clients and the store agree on the present.
	fromWriter, err := writer.Offsets(ctx)
	require.NoError(t, err)
	fromFollower, err := follower.Offsets(ctx)
	require.NoError(t, err)
	fromStore, err := mem.Offsets(ctx)
	require.NoError(t, err)
	require.Equal(t, fromStore, fromWriter)
	require.Equal(t, fromStore, fromFollower)
}

// Events authored on another node arrive by replication and merge into
// query results in key order. A snapshot taken before they arrived still
// replays the old state.
func TestIntegration_ReplicationAndTimeTravel(t *testing.T) {
	ctx := context.Background()
	hub := es.StartTestStore(t)
	url := websocket.NewTestServer(t, hub)
	client := newClient(t, url)

	job := tags.NewTag("job")
	local := mustPersist(t, client,
		event.MustDraft("local-1", "job"),
		event.MustDraft("local-2", "job"),
	)

	snapshot, err := client.Offsets(ctx)
	require.NoError(t, err)

	// Another node authors events while out of reach, then replication
	// catches the hub up.
	edge := es.StartTestStore(t, es.WithNodeSeed("edge"))
	mustPersist(t, edge,
		event.MustDraft("edge-1", "job"),
		event.MustDraft("edge-2", "job"),
	)
	require.NoError(t, hub.PushEvents(ctx, edge.StoredEvents()))

	sub, err := client.PersistedEvents(ctx, es.RangeQuery{Where: job.Tags().Where(), Order: es.OrderAsc})
	require.NoError(t, err)
	all := es.DrainEvents(t, sub)
	require.NoError(t, sub.Err())
	require.Len(t, all, 4)
	for i := range len(all) - 1 {
		require.True(t, all[i].Key().Before(all[i+1].Key()), "events out of order at %d", i)
	}

	// Replication is caught up, nothing pending.
	res, err := client.Offsets(ctx)
	require.NoError(t, err)
	require.Empty(t, res.ToReplicate)
	require.Len(t, res.Present, 2)

	// Time travel: bounded by the snapshot, the edge events do not exist.
	replay, err := client.PersistedEvents(ctx, es.RangeQuery{
		Upper: snapshot.Present,
		Where: job.Tags().Where(),
		Order: es.OrderAsc,
	})
	require.NoError(t, err)
	past := es.DrainEvents(t, replay)
	require.NoError(t, replay.Err())
	require.Equal(t, local, past)
}

// A consumer saves its checkpoint mid-stream and restarts. The resumed
// query delivers exactly the unprocessed remainder, even though a full
// chunk was already on the wire when it stopped.
func TestIntegration_CheckpointResumeAcrossRestart(t *testing.T) {
	ctx := context.Background()
	mem := es.StartTestStore(t)
	url := websocket.NewTestServer(t, mem)

	writer := newClient(t, url)
	job := tags.NewTag("job")
	var drafts []event.Draft
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		drafts = append(drafts, event.MustDraft(name, "job"))
	}
	all := mustPersist(t, writer, drafts...)

	stateDir := t.TempDir()

	// First consumer: processes three events, saves, dies.
	first := newClient(t, url)
	files, err := kv.NewFileStore(stateDir)
	require.NoError(t, err)
	cps := es.NewCheckpointStore(files)
	cp, err := cps.Load(ctx, "worker")
	require.NoError(t, err)

	sub, err := first.PersistedEvents(ctx, cp.Query(job.Tags().Where(), es.OrderAsc))
	require.NoError(t, err)
	got := es.CollectEvents(t, sub, 3)
	for _, ev := range got[:3] {
		cp.Observe(ev)
	}
	require.NoError(t, cps.Save(ctx, "worker", cp))
	sub.Cancel()

	// Restarted consumer: fresh client, fresh kv handle, same directory.
	second := newClient(t, url)
	files2, err := kv.NewFileStore(stateDir)
	require.NoError(t, err)
	cps2 := es.NewCheckpointStore(files2)
	cp2, err := cps2.Load(ctx, "worker")
	require.NoError(t, err)

	resumed, err := second.PersistedEvents(ctx, cp2.Query(job.Tags().Where(), es.OrderAsc))
	require.NoError(t, err)
	rest := es.DrainEvents(t, resumed)
	require.NoError(t, resumed.Err())
	require.Equal(t, all[3:], rest, "resume must deliver exactly the unprocessed remainder")
}

// Killing the connection fails every subscription and every later call
// hard. A fresh client recovers by re-reading from the store.
func TestIntegration_ConnectionLossFailsHard(t *testing.T) {
	ctx := context.Background()
	mem := es.StartTestStore(t)
	srv, err := websocket.NewServer(websocket.ServerConfig{Store: mem, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	defer hs.Close()
	url := "ws" + hs.URL[len("http"):]

	var lost atomic.Int32
	client := newClient(t, url, func(cfg *websocket.StoreConfig) {
		cfg.OnConnectionLost = func(error) { lost.Add(1) }
	})

	mustPersist(t, client, event.MustDraft("payload", "t"))
	sub, err := client.AllEvents(ctx, es.LiveQuery{})
	require.NoError(t, err)
	es.CollectEvents(t, sub, 1)

	hs.CloseClientConnections()

	select {
	case <-waitClosed(sub):
	case <-time.After(5 * time.Second):
		t.Fatal("subscription survived the dead connection")
	}
	require.ErrorIs(t, sub.Err(), websocket.ErrConnectionLost)
	require.Eventually(t, func() bool { return lost.Load() == 1 }, time.Second, 10*time.Millisecond)

	_, err = client.Offsets(ctx)
	require.ErrorIs(t, err, websocket.ErrConnectionLost)

	// The store is fine, only the session died. A new client sees
	// everything.
	fresh := newClient(t, url)
	replay, err := fresh.PersistedEvents(ctx, es.RangeQuery{})
	require.NoError(t, err)
	require.Len(t, es.DrainEvents(t, replay), 1)
	require.NoError(t, replay.Err())
	require.Equal(t, int32(1), lost.Load(), "hook must not fire for the new client")
}

// waitClosed signals once the feed's channel is closed, discarding any
// chunks still buffered.
func waitClosed(sub es.Subscription[[]event.Event]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.Chan() {
		}
	}()
	return done
}
