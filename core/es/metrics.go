package es

import "github.com/driftlog/driftlog-go/core/metrics"

// StoreMetrics is implemented by metric backends that want visibility into
// store operations. All methods must be safe for concurrent use.
type StoreMetrics interface {
	// PersistDuration times one PersistEvents call.
	PersistDuration() metrics.Timer
	// QueryDuration times the snapshot phase of a read, split by whether
	// the read continues live.
	QueryDuration(live bool) metrics.Timer
	// EventsPersisted counts events appended to the local stream.
	EventsPersisted(count int)
	// EventsReplicated counts remote events accepted into the store.
	EventsReplicated(count int)
	// EventsDelivered counts events handed to subscribers.
	EventsDelivered(live bool, count int)
	// ReplicationLag reports the number of known-but-missing remote events.
	ReplicationLag(count int)
	// SubscriptionsActive tracks the number of open live subscriptions.
	SubscriptionsActive(delta int)
}

type nopStoreMetrics struct{}

func (nopStoreMetrics) PersistDuration() metrics.Timer   { return metrics.NopTimer() }
func (nopStoreMetrics) QueryDuration(bool) metrics.Timer { return metrics.NopTimer() }

func (nopStoreMetrics) EventsPersisted(int)       {}
func (nopStoreMetrics) EventsReplicated(int)      {}
func (nopStoreMetrics) EventsDelivered(bool, int) {}
func (nopStoreMetrics) ReplicationLag(int)        {}
func (nopStoreMetrics) SubscriptionsActive(int)   {}

// NopStoreMetrics returns a StoreMetrics that does nothing.
func NopStoreMetrics() StoreMetrics { return nopStoreMetrics{} }
