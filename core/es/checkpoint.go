package es

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/tags"
	"github.com/driftlog/driftlog-go/ports/kv"
)

// Checkpoint is a consumer's durable read position: the offsets already
// processed and the highest key handed out. Feeding both back into a query
// resumes a read exactly where it stopped, across restarts and across
// events that arrived out of order in between.
type Checkpoint struct {
	Offsets event.OffsetMap `json:"offsets"`
	LastKey *event.Key      `json:"lastKey,omitempty"`
}

// Observe folds one delivered event into the checkpoint.
func (cp *Checkpoint) Observe(ev event.Event) {
	if cp.Offsets == nil {
		cp.Offsets = event.OffsetMap{}
	}
	cp.Offsets.Update(ev)
	k := ev.Key()
	if cp.LastKey == nil || cp.LastKey.Before(k) {
		cp.LastKey = &k
	}
}

// Query builds the range query that continues this checkpoint: everything
// past the recorded offsets, skipping keys already handed out.
func (cp Checkpoint) Query(where tags.Where, order Order) RangeQuery {
	return RangeQuery{
		Lower:  cp.Offsets,
		Where:  where,
		Order:  order,
		MinKey: cp.LastKey,
	}
}

// CheckpointStore persists named checkpoints through a kv.Store.
type CheckpointStore struct {
	kv kv.Store
}

func NewCheckpointStore(store kv.Store) *CheckpointStore {
	return &CheckpointStore{kv: store}
}

func (c *CheckpointStore) Save(ctx context.Context, name string, cp Checkpoint) error {
	if err := kv.Put(ctx, c.kv, name, cp); err != nil {
		return fmt.Errorf("save checkpoint %q: %w", name, err)
	}
	return nil
}

// Load returns the stored checkpoint, or a fresh one when none was saved
// yet.
func (c *CheckpointStore) Load(ctx context.Context, name string) (Checkpoint, error) {
	cp, err := kv.Get[Checkpoint](ctx, c.kv, name)
	if errors.Is(err, kv.ErrNotFound) {
		return Checkpoint{Offsets: event.OffsetMap{}}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint %q: %w", name, err)
	}
	if cp.Offsets == nil {
		cp.Offsets = event.OffsetMap{}
	}
	return cp, nil
}

func (c *CheckpointStore) Delete(ctx context.Context, name string) error {
	return c.kv.Delete(ctx, name)
}
