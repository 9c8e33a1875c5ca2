package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/pubsub"
	"github.com/driftlog/driftlog-go/core/sf"
	"github.com/driftlog/driftlog-go/internal/codec"
)

// ErrBadResponse is wrapped by every response that decodes but fails
// validation: an empty node id, a mismatched publish result, an invalid
// event. A bad response fails its own request and nothing else.
var ErrBadResponse = errors.New("ws: bad response")

// StoreConfig configures a remote store client.
type StoreConfig struct {
	URL              string           // store endpoint, ws:// or wss://
	Dialer           *gws.Dialer      // optional
	Log              *slog.Logger     // optional
	Metrics          TransportMetrics // optional
	RetryInterval    time.Duration    // see MuxConfig
	MaxDialAttempts  int              // see MuxConfig
	OnConnectionLost func(error)      // fired exactly once if the connection dies
}

// Store is an es.EventStore served by a remote node over the multiplexed
// websocket protocol. All operations share one connection.
type Store struct {
	mux    *Mux
	log    *slog.Logger
	flight *sf.Singleflight[event.NodeID]
	status *pubsub.Broker[es.ConnectivityStatus]

	mu     sync.Mutex
	nodeID event.NodeID
}

var _ es.EventStore = (*Store)(nil)

// NewStore creates a client for the store at cfg.URL. The connection is
// dialed on first use.
func NewStore(cfg StoreConfig) (*Store, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		log:    log.With(slog.String("store", "ws")),
		flight: sf.New[event.NodeID](),
		status: pubsub.NewBroker[es.ConnectivityStatus](),
	}
	mux, err := NewMux(MuxConfig{
		URL:             cfg.URL,
		Dialer:          cfg.Dialer,
		Log:             log,
		Metrics:         cfg.Metrics,
		RetryInterval:   cfg.RetryInterval,
		MaxDialAttempts: cfg.MaxDialAttempts,
		OnConnect: func() {
			s.status.Publish(es.ConnectivityStatus{State: es.FullyConnected})
		},
		OnConnectionLost: func(cause error) {
			s.status.Publish(es.ConnectivityStatus{State: es.NotConnected})
			if cfg.OnConnectionLost != nil {
				cfg.OnConnectionLost(cause)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	s.mux = mux
	return s, nil
}

// Close tears down the connection. In-flight requests fail with
// ErrMuxClosed.
func (s *Store) Close() error {
	err := s.mux.Close()
	s.status.Close()
	return err
}

// NodeID fetches the serving node's identity once and caches it; concurrent
// first calls share a single request.
func (s *Store) NodeID(ctx context.Context) (event.NodeID, error) {
	s.mu.Lock()
	if s.nodeID != "" {
		id := s.nodeID
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	return s.flight.Do("node_id", func() (event.NodeID, error) {
		payload, err := s.requestOne(ctx, ServiceNodeID, struct{}{})
		if err != nil {
			return "", err
		}
		var resp nodeIDResponse
		if err := codec.Decode(payload, &resp); err != nil {
			return "", fmt.Errorf("ws: node id: %w", err)
		}
		if resp.NodeID == "" {
			return "", fmt.Errorf("%w: empty node id", ErrBadResponse)
		}
		s.mu.Lock()
		s.nodeID = resp.NodeID
		s.mu.Unlock()
		return resp.NodeID, nil
	})
}

func (s *Store) Offsets(ctx context.Context) (es.OffsetsResult, error) {
	payload, err := s.requestOne(ctx, ServiceOffsets, struct{}{})
	if err != nil {
		return es.OffsetsResult{}, err
	}
	var res es.OffsetsResult
	if err := codec.Decode(payload, &res); err != nil {
		return es.OffsetsResult{}, fmt.Errorf("ws: offsets: %w", err)
	}
	if err := validateOffsetMap(res.Present); err != nil {
		return es.OffsetsResult{}, fmt.Errorf("%w: present map: %w", ErrBadResponse, err)
	}
	if res.Present == nil {
		res.Present = event.OffsetMap{}
	}
	return res, nil
}

func (s *Store) PersistedEvents(ctx context.Context, q es.RangeQuery) (es.Subscription[[]event.Event], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	req := queryRequest{
		Lower:  q.Lower,
		Upper:  q.Upper,
		Where:  q.Where.WireFormat(),
		Order:  string(q.Order),
		MinKey: q.MinKey,
	}
	raw, err := s.mux.Request(ctx, ServiceQuery, req)
	if err != nil {
		return nil, err
	}
	return s.decodeEventStream(raw), nil
}

func (s *Store) AllEvents(ctx context.Context, q es.LiveQuery) (es.Subscription[[]event.Event], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	req := subscribeRequest{
		Lower:  q.Lower,
		Upper:  q.Upper,
		Where:  q.Where.WireFormat(),
		MinKey: q.MinKey,
	}
	raw, err := s.mux.Request(ctx, ServiceSubscribe, req)
	if err != nil {
		return nil, err
	}
	return s.decodeEventStream(raw), nil
}

func (s *Store) PersistEvents(ctx context.Context, drafts []event.Draft) ([]event.Event, error) {
	if len(drafts) == 0 {
		return []event.Event{}, nil
	}
	payload, err := s.requestOne(ctx, ServicePublish, publishRequest{Data: drafts})
	if err != nil {
		return nil, err
	}
	var resp publishResponse
	if err := codec.Decode(payload, &resp); err != nil {
		return nil, fmt.Errorf("ws: publish: %w", err)
	}
	if len(resp.Data) != len(drafts) {
		return nil, fmt.Errorf("%w: %d results for %d drafts", ErrBadResponse, len(resp.Data), len(drafts))
	}
	out := make([]event.Event, len(drafts))
	for i, meta := range resp.Data {
		out[i] = event.Event{
			Stream:    meta.Stream,
			Offset:    meta.Offset,
			Lamport:   meta.Lamport,
			Timestamp: meta.Timestamp,
			Tags:      drafts[i].Tags,
			Payload:   drafts[i].Payload,
		}
		if out[i].Tags == nil {
			out[i].Tags = []string{}
		}
		if out[i].Payload == nil {
			out[i].Payload = json.RawMessage("null")
		}
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: draft %d: %w", ErrBadResponse, i, err)
		}
	}
	return out, nil
}

// ConnectivityStatus reports connection health from the socket's point of
// view: fully connected while it is up, not connected after a loss. The
// first sample reflects the current state; no dial is triggered.
func (s *Store) ConnectivityStatus(ctx context.Context) (es.Subscription[es.ConnectivityStatus], error) {
	sub := s.status.Subscribe()
	if sub == nil {
		return nil, ErrMuxClosed
	}
	first := es.ConnectivityStatus{State: es.NotConnected}
	if s.mux.Connected() {
		first.State = es.FullyConnected
	}

	feed := es.NewFeed[es.ConnectivityStatus](sub.Cancel)
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

// requestOne performs a unary request: one response payload, then the end
// of the stream.
func (s *Store) requestOne(ctx context.Context, serviceID string, payload any) (json.RawMessage, error) {
	sub, err := s.mux.Request(ctx, serviceID, payload)
	if err != nil {
		return nil, err
	}
	defer sub.Cancel()
	select {
	case v, ok := <-sub.Chan():
		if !ok {
			if err := sub.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s completed without a response", ErrBadResponse, serviceID)
		}
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decodeEventStream turns raw response payloads into validated event
// chunks. A chunk that fails to decode or validate fails this subscription
// and cancels its request; the connection and every other request stay up.
func (s *Store) decodeEventStream(raw es.Subscription[json.RawMessage]) es.Subscription[[]event.Event] {
	out := es.NewFeed[[]event.Event](raw.Cancel)
	go func() {
		for payload := range raw.Chan() {
			var chunk []event.Event
			if err := codec.Decode(payload, &chunk); err != nil {
				raw.Cancel()
				out.Fail(fmt.Errorf("ws: event chunk: %w", err))
				return
			}
			for _, ev := range chunk {
				if err := ev.Validate(); err != nil {
					raw.Cancel()
					out.Fail(fmt.Errorf("%w: event on stream %q: %w", ErrBadResponse, ev.Stream, err))
					return
				}
			}
			if len(chunk) == 0 {
				continue
			}
			if !out.Publish(chunk) {
				return
			}
		}
		if err := raw.Err(); err != nil {
			out.Fail(err)
			return
		}
		out.Complete()
	}()
	return out
}

func validateOffsetMap(m event.OffsetMap) error {
	for stream, o := range m {
		if stream == "" {
			return errors.New("empty stream id")
		}
		if !o.Valid() {
			return fmt.Errorf("offset %d on stream %q out of range", o, stream)
		}
	}
	return nil
}
