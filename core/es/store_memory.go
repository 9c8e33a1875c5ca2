package es

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/pubsub"
)

// DefaultChunkSize is the number of events per delivery chunk unless
// configured otherwise.
const DefaultChunkSize = 4

// MemoryStore is the reference EventStore. It keeps every event in one
// key-sorted buffer and serves reads from copy-on-write snapshots, so a
// running query never observes later writes.
//
// Local writes enter through PersistEvents; events replicated from other
// nodes enter through PushEvents, which holds out-of-order arrivals back
// until their stream is gapless again.
type MemoryStore struct {
	log     *slog.Logger
	metrics StoreMetrics
	now     func() time.Time

	chunkSize int

	mu         sync.Mutex
	closed     bool
	nodeID     event.NodeID
	local      event.StreamID
	nextOffset event.Offset
	clock      event.LamportClock
	buffer     []event.Event
	present    event.OffsetMap
	pending    map[event.StreamID][]event.Event
	live       *pubsub.Broker[[]event.Event]
	status     *pubsub.Broker[ConnectivityStatus]
}

var _ EventStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. Without WithNodeID or WithNodeSeed
// the node identity is random.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	o := storeOptions{
		chunkSize: DefaultChunkSize,
		now:       time.Now,
		log:       slog.Default(),
		metrics:   NopStoreMetrics(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.nodeID == "" {
		o.nodeID = event.RandomNodeID()
	}
	return &MemoryStore{
		log:       o.log.With(slog.String("store", "memory"), slog.String("node", string(o.nodeID))),
		metrics:   o.metrics,
		now:       o.now,
		chunkSize: o.chunkSize,
		nodeID:    o.nodeID,
		local:     o.nodeID.Stream(0),
		present:   event.OffsetMap{},
		pending:   map[event.StreamID][]event.Event{},
		live:      pubsub.NewBroker[[]event.Event](),
		status:    pubsub.NewBroker[ConnectivityStatus](),
	}
}

func (s *MemoryStore) NodeID(ctx context.Context) (event.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	return s.nodeID, nil
}

func (s *MemoryStore) Offsets(ctx context.Context) (OffsetsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return OffsetsResult{}, ErrStoreClosed
	}
	res := OffsetsResult{Present: s.present.Copy()}
	if len(s.pending) > 0 {
		res.ToReplicate = make(map[event.StreamID]uint64, len(s.pending))
		for stream, q := range s.pending {
			res.ToReplicate[stream] = uint64(q[len(q)-1].Offset - s.present.Lookup(stream))
		}
	}
	return res, nil
}

// PersistEvents appends the drafts to the node's own stream. Offsets,
// lamports and timestamps are assigned under the store lock, so concurrent
// callers interleave but each draft slice stays contiguous in offset order.
func (s *MemoryStore) PersistEvents(ctx context.Context, drafts []event.Draft) ([]event.Event, error) {
	defer s.metrics.PersistDuration().ObserveDuration()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	out := make([]event.Event, 0, len(drafts))
	for _, d := range drafts {
		ts := event.TimestampOf(s.now())
		ev := event.Event{
			Stream:    s.local,
			Offset:    s.nextOffset,
			Lamport:   s.clock.Tick(ts),
			Timestamp: ts,
			Tags:      slices.Clone(d.Tags),
			Payload:   slices.Clone(d.Payload),
		}
		if ev.Tags == nil {
			ev.Tags = []string{}
		}
		if ev.Payload == nil {
			ev.Payload = json.RawMessage("null")
		}
		s.nextOffset++
		s.present.Update(ev)
		out = append(out, ev)
	}
	if len(out) > 0 {
		s.buffer = event.MergeSortedByKey(s.buffer, out)
		s.live.Publish(slices.Clone(out))
	}
	s.mu.Unlock()

	s.metrics.EventsPersisted(len(out))
	s.log.Debug("events persisted", slog.Int("count", len(out)))
	return out, nil
}

// PushEvents accepts events replicated from other nodes. Events at or below
// the stream's present offset are duplicates and dropped; events beyond the
// next expected offset wait in a per-stream buffer until the gap closes.
// Accepted events become visible to readers in one atomic step.
func (s *MemoryStore) PushEvents(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return err
		}
		if ev.Stream.OwnedBy(s.nodeID) {
			return fmt.Errorf("%w: %s", ErrLocalStream, ev.Stream)
		}
	}
	for _, ev := range events {
		s.clock.Witness(ev.Lamport)
		if ev.Offset <= s.present.Lookup(ev.Stream) {
			continue
		}
		s.enqueuePending(ev)
	}
	accepted := s.drainPending()
	if len(accepted) > 0 {
		event.SortByKey(accepted)
		s.buffer = event.MergeSortedByKey(s.buffer, accepted)
		s.live.Publish(accepted)
		s.metrics.EventsReplicated(len(accepted))
	}
	s.metrics.ReplicationLag(s.replicationLag())
	s.log.Debug("events pushed",
		slog.Int("received", len(events)),
		slog.Int("accepted", len(accepted)))
	return nil
}

func (s *MemoryStore) enqueuePending(ev event.Event) {
	q := s.pending[ev.Stream]
	i, found := slices.BinarySearchFunc(q, ev, func(a, b event.Event) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	if found {
		return
	}
	s.pending[ev.Stream] = slices.Insert(q, i, ev)
}

// drainPending moves every pending event whose stream has become gapless
// into the result and advances present accordingly.
func (s *MemoryStore) drainPending() []event.Event {
	var accepted []event.Event
	for stream, q := range s.pending {
		next := s.present.Lookup(stream) + 1
		n := 0
		for n < len(q) && q[n].Offset == next {
			next++
			n++
		}
		if n == 0 {
			continue
		}
		for _, ev := range q[:n] {
			s.present.Update(ev)
			accepted = append(accepted, ev)
		}
		if n == len(q) {
			delete(s.pending, stream)
		} else {
			s.pending[stream] = slices.Clone(q[n:])
		}
	}
	return accepted
}

func (s *MemoryStore) replicationLag() int {
	total := 0
	for stream, q := range s.pending {
		total += int(q[len(q)-1].Offset - s.present.Lookup(stream))
	}
	return total
}

func (s *MemoryStore) PersistedEvents(ctx context.Context, q RangeQuery) (Subscription[[]event.Event], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	t := s.metrics.QueryDuration(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	buffer := s.buffer
	present := s.present.Copy()
	node := s.nodeID
	s.mu.Unlock()

	lower := event.WithDefaultMin(q.Lower)
	upper := event.WithDefaultMin(q.Upper)
	if q.Upper == nil {
		upper = event.WithDefaultMin(present)
	}
	f := eventFilter{lower: lower, upper: upper, where: q.Where, minKey: q.MinKey, node: node}

	selected := selectWindow(buffer, lower, upper, f)
	if q.Order == OrderDesc {
		slices.Reverse(selected)
	}
	t.ObserveDuration()
	s.metrics.EventsDelivered(false, len(selected))

	feed := NewFeed[[]event.Event](nil)
	context.AfterFunc(ctx, feed.Cancel)
	go func() {
		defer feed.Complete()
		for start := 0; start < len(selected); start += s.chunkSize {
			end := min(start+s.chunkSize, len(selected))
			if !feed.Publish(selected[start:end:end]) {
				return
			}
		}
	}()
	return feed, nil
}

func (s *MemoryStore) AllEvents(ctx context.Context, q LiveQuery) (Subscription[[]event.Event], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	t := s.metrics.QueryDuration(true)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	buffer := s.buffer
	present := s.present.Copy()
	node := s.nodeID
	live := s.live.Subscribe()
	s.mu.Unlock()
	if live == nil {
		return nil, ErrStoreClosed
	}

	lower := event.WithDefaultMin(q.Lower)
	upper := event.WithDefaultMax(nil)
	bounded := q.Upper != nil
	if bounded {
		upper = event.WithDefaultMin(q.Upper)
	}
	f := eventFilter{lower: lower, upper: upper, where: q.Where, minKey: q.MinKey, node: node}

	selected := selectWindow(buffer, lower, upper, f)
	t.ObserveDuration()

	feed := NewFeed[[]event.Event](live.Cancel)
	context.AfterFunc(ctx, feed.Cancel)
	s.metrics.SubscriptionsActive(1)

	go func() {
		defer s.metrics.SubscriptionsActive(-1)
		defer live.Cancel()
		for start := 0; start < len(selected); start += s.chunkSize {
			end := min(start+s.chunkSize, len(selected))
			if !feed.Publish(selected[start:end:end]) {
				return
			}
		}
		s.metrics.EventsDelivered(true, len(selected))

		// The live handoff is gapless: the broker subscription was opened
		// under the same lock that took the snapshot, so every batch seen
		// here is strictly beyond it.
		watermark := present
		if bounded && covered(watermark, q.Upper) {
			feed.Complete()
			return
		}
		for batch := range live.Chan() {
			var out []event.Event
			for _, ev := range batch {
				if bounded {
					watermark.Update(ev)
				}
				if f.match(ev) {
					out = append(out, ev)
				}
			}
			if len(out) > 0 {
				if !feed.Publish(out) {
					return
				}
				s.metrics.EventsDelivered(true, len(out))
			}
			if bounded && covered(watermark, q.Upper) {
				feed.Complete()
				return
			}
		}
		feed.Complete()
	}()
	return feed, nil
}

// selectWindow narrows the buffer to the candidate index window and applies
// the exact filter.
func selectWindow(buffer []event.Event, lower, upper event.OffsetMapWithDefault, f eventFilter) []event.Event {
	lo, hi := event.IndexRange(buffer, lower, upper)
	selected := make([]event.Event, 0, hi-lo)
	for _, ev := range buffer[lo:hi] {
		if f.match(ev) {
			selected = append(selected, ev)
		}
	}
	return selected
}

// covered reports whether the watermark has reached the bound on every
// stream the bound names.
func covered(watermark, bound event.OffsetMap) bool {
	for stream, o := range bound {
		if watermark.Lookup(stream) < o {
			return false
		}
	}
	return true
}

func (s *MemoryStore) ConnectivityStatus(ctx context.Context) (Subscription[ConnectivityStatus], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	first := ConnectivityStatus{
		State:        FullyConnected,
		EventsToRead: uint64(s.replicationLag()),
	}
	sub := s.status.Subscribe()
	s.mu.Unlock()
	if sub == nil {
		return nil, ErrStoreClosed
	}

	feed := NewFeed[ConnectivityStatus](sub.Cancel)
	context.AfterFunc(ctx, feed.Cancel)
	go func() {
		defer sub.Cancel()
		if !feed.Publish(first) {
			return
		}
		for st := range sub.Chan() {
			if !feed.Publish(st) {
				return
			}
		}
		feed.Complete()
	}()
	return feed, nil
}

// StoredEvents returns a copy of every event currently held, in key order.
func (s *MemoryStore) StoredEvents() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.buffer)
}

// Close ends every open subscription and fails all further operations with
// ErrStoreClosed. It is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.live.Close()
	s.status.Close()
	s.log.Debug("store closed")
	return nil
}
