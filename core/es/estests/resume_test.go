package estests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/tags"
	"github.com/driftlog/driftlog-go/ports/kv"
)

// A consumer that checkpoints its position must be able to stop after any
// event and continue with exactly the next one, no matter which store
// implementation serves it.
func TestEventStore_CheckpointResume(t *testing.T) {
	t.Run("resume continues exactly", eachStore(func(t *testing.T, sut es.EventStore) {
		ctx := context.Background()
		where := tags.NewTags("job").Where()
		mustPersist(t, sut,
			event.MustDraft(0, "job"), event.MustDraft(1, "job"), event.MustDraft(2, "job"),
			event.MustDraft(3, "job"), event.MustDraft(4, "job"), event.MustDraft(5, "job"))

		cps := es.NewCheckpointStore(kv.NewMemStore())
		cp, err := cps.Load(ctx, "worker")
		require.NoError(t, err)

		sub, err := sut.PersistedEvents(ctx, cp.Query(where, es.OrderAsc))
		require.NoError(t, err)
		all := es.DrainEvents(t, sub)
		require.NoError(t, sub.Err())
		require.Len(t, all, 6)

		// Process half, checkpoint, stop.
		for _, ev := range all[:3] {
			cp.Observe(ev)
		}
		require.NoError(t, cps.Save(ctx, "worker", cp))

		// A restart loads the checkpoint and picks up with event 3.
		loaded, err := cps.Load(ctx, "worker")
		require.NoError(t, err)
		sub, err = sut.PersistedEvents(ctx, loaded.Query(where, es.OrderAsc))
		require.NoError(t, err)
		rest := es.DrainEvents(t, sub)
		require.NoError(t, sub.Err())
		require.Equal(t, all[3:], rest)
	}))
}
