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
	"github.com/driftlog/driftlog-go/core/sf"
	"github.com/driftlog/driftlog-go/internal/codec"
)

var (
	// ErrMuxClosed is returned after Close.
	ErrMuxClosed = errors.New("ws: mux closed")
	// ErrConnectionLost is returned once an established connection has
	// died. The mux does not redial; every in-flight request fails with
	// this error and new requests are refused with it.
	ErrConnectionLost = errors.New("ws: connection lost")
	// ErrRequestIDsExhausted is returned when the id space is used up.
	ErrRequestIDsExhausted = errors.New("ws: request ids exhausted")
)

const (
	DefaultRetryInterval   = time.Second
	DefaultMaxDialAttempts = 10
	DefaultWriteTimeout    = 10 * time.Second
)

// MuxConfig configures a Mux.
type MuxConfig struct {
	URL              string           // websocket endpoint, ws:// or wss://
	Dialer           *gws.Dialer      // optional, gorilla's DefaultDialer if nil
	Log              *slog.Logger     // optional
	Metrics          TransportMetrics // optional
	RetryInterval    time.Duration    // pause between dial attempts, DefaultRetryInterval if zero
	MaxDialAttempts  int              // dial attempts before the first open fails, DefaultMaxDialAttempts if zero
	WriteTimeout     time.Duration    // per-frame write deadline, DefaultWriteTimeout if zero
	OnConnectionLost func(error)      // fired exactly once if an established connection dies
	OnConnect        func()           // fired after a successful open
}

// Mux multiplexes concurrent requests over one websocket connection.
//
// The connection is dialed lazily on the first request and stays open while
// the mux lives. Dialing retries on a fixed interval, but only until the
// first successful open: once a connection has been established and then
// dies, the mux hard-fails instead of reconnecting, because a new
// connection would silently restart every subscription from a state the
// caller no longer holds. The caller decides how to rebuild.
//
// One writer goroutine owns the socket; the read loop never blocks on a
// consumer because every request buffers its responses independently.
type Mux struct {
	url          string
	dialer       *gws.Dialer
	log          *slog.Logger
	metrics      TransportMetrics
	retryEvery   time.Duration
	maxAttempts  int
	writeTimeout time.Duration
	onLost       func(error)
	onConnect    func()

	dial *sf.Singleflight[*wsConn]

	mu       sync.Mutex
	conn     *wsConn
	nextID   RequestID
	inflight map[RequestID]*call
	lost     bool
	closed   bool
}

type call struct {
	feed *es.Feed[json.RawMessage]
}

// wsConn is one established connection: the socket, the writer input and a
// door that closes when the socket dies.
type wsConn struct {
	c    *gws.Conn
	send chan Frame
	done chan struct{}
}

func (c *wsConn) enqueue(f Frame) error {
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return ErrConnectionLost
	}
}

// NewMux creates a mux for url. No connection is made until the first
// request.
func NewMux(cfg MuxConfig) (*Mux, error) {
	if cfg.URL == "" {
		return nil, errors.New("ws: mux needs a url")
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = gws.DefaultDialer
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = NopTransportMetrics()
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	attempts := cfg.MaxDialAttempts
	if attempts <= 0 {
		attempts = DefaultMaxDialAttempts
	}
	wt := cfg.WriteTimeout
	if wt <= 0 {
		wt = DefaultWriteTimeout
	}
	return &Mux{
		url:          cfg.URL,
		dialer:       dialer,
		log:          log.With(slog.String("transport", "ws"), slog.String("url", cfg.URL)),
		metrics:      m,
		retryEvery:   retry,
		maxAttempts:  attempts,
		writeTimeout: wt,
		onLost:       cfg.OnConnectionLost,
		onConnect:    cfg.OnConnect,
		dial:         sf.New[*wsConn](),
		inflight:     map[RequestID]*call{},
	}, nil
}

// Request opens a request for serviceID with the given payload and returns
// the stream of response payloads. The subscription completes when the
// server sends a complete frame, fails on an error frame or connection
// loss, and cancels upstream when the consumer cancels first.
func (m *Mux) Request(ctx context.Context, serviceID string, payload any) (es.Subscription[json.RawMessage], error) {
	body, err := codec.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("ws: encode %s request: %w", serviceID, err)
	}
	c, err := m.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrMuxClosed
	}
	if m.lost {
		m.mu.Unlock()
		return nil, ErrConnectionLost
	}
	if m.nextID > MaxRequestID {
		m.mu.Unlock()
		return nil, ErrRequestIDsExhausted
	}
	id := m.nextID
	m.nextID++
	feed := es.NewFeed[json.RawMessage](func() { m.cancelRequest(id) })
	m.inflight[id] = &call{feed: feed}
	m.mu.Unlock()

	if err := c.enqueue(Frame{Type: FrameRequest, RequestID: id, ServiceID: serviceID, Payload: body}); err != nil {
		m.mu.Lock()
		delete(m.inflight, id)
		m.mu.Unlock()
		return nil, err
	}
	context.AfterFunc(ctx, feed.Cancel)
	m.metrics.Requests(serviceID)
	m.metrics.RequestsInFlight(1)
	return feed, nil
}

// Connected reports whether the mux currently holds a usable connection.
func (m *Mux) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && !m.lost && !m.closed
}

// Close tears the connection down and fails every in-flight request with
// ErrMuxClosed. It is idempotent.
func (m *Mux) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	calls := m.takeInflightLocked()
	c := m.conn
	m.conn = nil
	m.mu.Unlock()

	for _, call := range calls {
		call.feed.Fail(ErrMuxClosed)
	}
	m.metrics.RequestsInFlight(-len(calls))
	if c != nil {
		close(c.done)
		_ = c.c.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
			time.Now().Add(m.writeTimeout))
		_ = c.c.Close()
	}
	return nil
}

func (m *Mux) takeInflightLocked() []*call {
	calls := make([]*call, 0, len(m.inflight))
	for _, c := range m.inflight {
		calls = append(calls, c)
	}
	m.inflight = map[RequestID]*call{}
	return calls
}

func (m *Mux) ensureConn(ctx context.Context) (*wsConn, error) {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return nil, ErrMuxClosed
	case m.lost:
		m.mu.Unlock()
		return nil, ErrConnectionLost
	case m.conn != nil:
		c := m.conn
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	return m.dial.Do("dial", func() (*wsConn, error) {
		m.mu.Lock()
		if c := m.conn; c != nil {
			m.mu.Unlock()
			return c, nil
		}
		m.mu.Unlock()

		var lastErr error
		for attempt := 1; ; attempt++ {
			conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err == nil {
				m.metrics.Dials(true)
				wc := &wsConn{c: conn, send: make(chan Frame, 64), done: make(chan struct{})}
				m.mu.Lock()
				if m.closed {
					m.mu.Unlock()
					_ = conn.Close()
					return nil, ErrMuxClosed
				}
				m.conn = wc
				m.mu.Unlock()
				go m.readLoop(wc)
				go m.writeLoop(wc)
				m.log.Info("connected")
				if m.onConnect != nil {
					m.onConnect()
				}
				return wc, nil
			}
			m.metrics.Dials(false)
			lastErr = err
			if attempt >= m.maxAttempts {
				break
			}
			m.log.Debug("dial failed, retrying",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			select {
			case <-time.After(m.retryEvery):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, fmt.Errorf("ws: dial %s after %d attempts: %w", m.url, m.maxAttempts, lastErr)
	})
}

// cancelRequest is the feed cancel hook: it runs only when the request has
// not already completed or failed, so a cancel frame never chases a request
// the server has finished.
func (m *Mux) cancelRequest(id RequestID) {
	m.mu.Lock()
	_, open := m.inflight[id]
	if open {
		delete(m.inflight, id)
	}
	c := m.conn
	dead := m.lost || m.closed
	m.mu.Unlock()

	if !open {
		return
	}
	m.metrics.RequestsInFlight(-1)
	if dead || c == nil {
		return
	}
	if err := c.enqueue(Frame{Type: FrameCancel, RequestID: id}); err == nil {
		m.metrics.Cancels()
	}
}

func (m *Mux) readLoop(c *wsConn) {
	for {
		var f Frame
		if err := c.c.ReadJSON(&f); err != nil {
			m.connectionLost(err)
			return
		}
		if err := f.Validate(); err != nil {
			m.log.Warn("dropping invalid frame", slog.Any("error", err))
			continue
		}
		m.metrics.FramesReceived(string(f.Type))
		m.dispatch(f)
	}
}

func (m *Mux) dispatch(f Frame) {
	m.mu.Lock()
	call, ok := m.inflight[f.RequestID]
	if !ok {
		m.mu.Unlock()
		// Late frame for a canceled request. Ids are never reused, so
		// dropping it is always safe.
		m.log.Debug("frame for unknown request",
			slog.String("type", string(f.Type)),
			slog.Uint64("requestId", uint64(f.RequestID)))
		return
	}
	switch f.Type {
	case FrameNext:
		m.mu.Unlock()
		call.feed.Publish(f.Payload)
	case FrameComplete:
		delete(m.inflight, f.RequestID)
		m.mu.Unlock()
		call.feed.Complete()
		m.metrics.RequestsInFlight(-1)
	case FrameError:
		delete(m.inflight, f.RequestID)
		m.mu.Unlock()
		call.feed.Fail(&RequestError{Kind: f.Kind, Message: f.Message})
		m.metrics.RequestsInFlight(-1)
	default:
		m.mu.Unlock()
		m.log.Warn("unexpected frame from server", slog.String("type", string(f.Type)))
	}
}

func (m *Mux) writeLoop(c *wsConn) {
	for {
		select {
		case f := <-c.send:
			_ = c.c.SetWriteDeadline(time.Now().Add(m.writeTimeout))
			if err := c.c.WriteJSON(f); err != nil {
				m.connectionLost(fmt.Errorf("write: %w", err))
				return
			}
			m.metrics.FramesSent(string(f.Type))
		case <-c.done:
			return
		}
	}
}

// connectionLost runs at most once per established connection: it fails all
// in-flight requests and fires the OnConnectionLost hook.
func (m *Mux) connectionLost(cause error) {
	m.mu.Lock()
	if m.closed || m.lost {
		m.mu.Unlock()
		return
	}
	m.lost = true
	calls := m.takeInflightLocked()
	c := m.conn
	m.conn = nil
	m.mu.Unlock()

	if c != nil {
		close(c.done)
		_ = c.c.Close()
	}
	for _, call := range calls {
		call.feed.Fail(ErrConnectionLost)
	}
	m.metrics.RequestsInFlight(-len(calls))
	m.metrics.ConnectionsLost()
	m.log.Warn("connection lost", slog.Any("error", cause))
	if m.onLost != nil {
		m.onLost(cause)
	}
}
