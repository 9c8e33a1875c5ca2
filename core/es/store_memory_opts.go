package es

import (
	"log/slog"
	"time"

	"github.com/driftlog/driftlog-go/core/event"
)

type storeOptions struct {
	nodeID    event.NodeID
	chunkSize int
	now       func() time.Time
	log       *slog.Logger
	metrics   StoreMetrics
}

// StoreOption configures a MemoryStore.
type StoreOption func(*storeOptions)

// WithNodeID fixes the store's node identity.
func WithNodeID(id event.NodeID) StoreOption {
	return func(o *storeOptions) { o.nodeID = id }
}

// WithNodeSeed derives the node identity from a seed. The same seed always
// yields the same node, which keeps test fixtures stable.
func WithNodeSeed(seed string) StoreOption {
	return func(o *storeOptions) { o.nodeID = event.NodeIDFromSeed(seed) }
}

// WithChunkSize sets the number of events per delivery chunk. Values below
// one are ignored.
func WithChunkSize(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithWallClock replaces the wall clock used for event timestamps.
func WithWallClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithStoreMetrics attaches a metrics backend.
func WithStoreMetrics(m StoreMetrics) StoreOption {
	return func(o *storeOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}
