package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/tags"
	"github.com/driftlog/driftlog-go/internal/codec"
)

const DefaultPingInterval = 30 * time.Second

// ServerConfig configures a Server.
type ServerConfig struct {
	Store        es.EventStore    // the store to serve, required
	Log          *slog.Logger     // optional
	Metrics      TransportMetrics // optional
	PingInterval time.Duration    // keepalive ping period, DefaultPingInterval if zero
	WriteTimeout time.Duration    // per-frame write deadline, DefaultWriteTimeout if zero
}

// Server exposes an EventStore over the multiplexed websocket protocol. It
// is an http.Handler; every upgraded connection gets its own session, every
// request its own goroutine, so one slow query never delays another.
type Server struct {
	store        es.EventStore
	log          *slog.Logger
	metrics      TransportMetrics
	upgrader     gws.Upgrader
	pingEvery    time.Duration
	writeTimeout time.Duration
}

// NewServer creates a server for cfg.Store.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("ws: server needs a store")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = NopTransportMetrics()
	}
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = DefaultPingInterval
	}
	wt := cfg.WriteTimeout
	if wt <= 0 {
		wt = DefaultWriteTimeout
	}
	return &Server{
		store:        cfg.Store,
		log:          log.With(slog.String("component", "ws.server")),
		metrics:      m,
		pingEvery:    ping,
		writeTimeout: wt,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", slog.Any("error", err))
		return
	}
	ses := &session{
		srv:    s,
		conn:   conn,
		log:    s.log.With(slog.String("conn", gonanoid.Must())),
		send:   make(chan Frame, 64),
		done:   make(chan struct{}),
		active: map[RequestID]context.CancelFunc{},
	}
	ses.run()
}

// session is one client connection: a read loop, a write loop and the set
// of requests currently being served.
type session struct {
	srv  *Server
	conn *gws.Conn
	log  *slog.Logger
	send chan Frame
	done chan struct{}

	mu     sync.Mutex
	active map[RequestID]context.CancelFunc
}

func (ses *session) run() {
	ses.log.Info("client connected")
	go ses.writeLoop()
	ses.readLoop()

	ses.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(ses.active))
	for _, c := range ses.active {
		cancels = append(cancels, c)
	}
	ses.active = map[RequestID]context.CancelFunc{}
	ses.mu.Unlock()
	close(ses.done)
	for _, cancel := range cancels {
		cancel()
	}
	ses.log.Info("client disconnected")
}

func (ses *session) readLoop() {
	for {
		var f Frame
		if err := ses.conn.ReadJSON(&f); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				ses.log.Warn("read failed", slog.Any("error", err))
			}
			return
		}
		if err := f.Validate(); err != nil {
			ses.reply(Frame{Type: FrameError, RequestID: f.RequestID, Kind: KindBadRequest, Message: err.Error()})
			continue
		}
		ses.srv.metrics.FramesReceived(string(f.Type))
		switch f.Type {
		case FrameRequest:
			ses.openRequest(f)
		case FrameCancel:
			ses.cancelRequest(f.RequestID)
		default:
			ses.reply(Frame{Type: FrameError, RequestID: f.RequestID, Kind: KindBadRequest,
				Message: fmt.Sprintf("unexpected frame type %q", f.Type)})
		}
	}
}

func (ses *session) openRequest(f Frame) {
	ses.mu.Lock()
	if _, dup := ses.active[f.RequestID]; dup {
		ses.mu.Unlock()
		ses.reply(Frame{Type: FrameError, RequestID: f.RequestID, Kind: KindBadRequest,
			Message: "request id already in use"})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ses.active[f.RequestID] = cancel
	ses.mu.Unlock()
	go ses.serve(ctx, f)
}

func (ses *session) cancelRequest(id RequestID) {
	ses.mu.Lock()
	cancel, ok := ses.active[id]
	ses.mu.Unlock()
	if ok {
		cancel()
	}
}

func (ses *session) closeRequest(id RequestID) {
	ses.mu.Lock()
	cancel, ok := ses.active[id]
	delete(ses.active, id)
	ses.mu.Unlock()
	if ok {
		cancel()
	}
}

func (ses *session) serve(ctx context.Context, f Frame) {
	defer ses.closeRequest(f.RequestID)
	err := ses.dispatch(ctx, f)
	if errors.Is(err, errSessionGone) {
		return
	}
	if ctx.Err() != nil {
		// Canceled: the client stopped listening for this id. Any frame
		// sent now would be dropped on arrival anyway.
		return
	}
	if err != nil {
		ses.log.Debug("request failed",
			slog.Uint64("requestId", uint64(f.RequestID)),
			slog.String("service", f.ServiceID),
			slog.Any("error", err))
		ses.reply(Frame{Type: FrameError, RequestID: f.RequestID, Kind: errorKind(err), Message: err.Error()})
		return
	}
	ses.reply(Frame{Type: FrameComplete, RequestID: f.RequestID})
}

func (ses *session) dispatch(ctx context.Context, f Frame) error {
	switch CanonicalService(f.ServiceID) {
	case ServiceNodeID:
		return ses.serveNodeID(ctx, f.RequestID)
	case ServiceOffsets:
		return ses.serveOffsets(ctx, f.RequestID)
	case ServiceQuery:
		return ses.serveQuery(ctx, f.RequestID, f.Payload)
	case ServiceSubscribe:
		return ses.serveSubscribe(ctx, f.RequestID, f.Payload)
	case ServicePublish:
		return ses.servePublish(ctx, f.RequestID, f.Payload)
	default:
		return &serviceUnknown{id: f.ServiceID}
	}
}

func (ses *session) serveNodeID(ctx context.Context, id RequestID) error {
	node, err := ses.srv.store.NodeID(ctx)
	if err != nil {
		return err
	}
	return ses.sendNext(id, nodeIDResponse{NodeID: node})
}

func (ses *session) serveOffsets(ctx context.Context, id RequestID) error {
	res, err := ses.srv.store.Offsets(ctx)
	if err != nil {
		return err
	}
	return ses.sendNext(id, res)
}

func (ses *session) serveQuery(ctx context.Context, id RequestID, payload json.RawMessage) error {
	var req queryRequest
	if err := codec.Decode(payload, &req); err != nil {
		return badRequest(err)
	}
	sub, err := ses.srv.store.PersistedEvents(ctx, es.RangeQuery{
		Lower:  req.Lower,
		Upper:  req.Upper,
		Where:  tags.FromSubscriptions(req.Where),
		Order:  es.Order(req.Order),
		MinKey: req.MinKey,
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()
	return ses.pipe(id, sub)
}

func (ses *session) serveSubscribe(ctx context.Context, id RequestID, payload json.RawMessage) error {
	var req subscribeRequest
	if err := codec.Decode(payload, &req); err != nil {
		return badRequest(err)
	}
	sub, err := ses.srv.store.AllEvents(ctx, es.LiveQuery{
		Lower:  req.Lower,
		Upper:  req.Upper,
		Where:  tags.FromSubscriptions(req.Where),
		MinKey: req.MinKey,
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()
	return ses.pipe(id, sub)
}

func (ses *session) servePublish(ctx context.Context, id RequestID, payload json.RawMessage) error {
	var req publishRequest
	if err := codec.Decode(payload, &req); err != nil {
		return badRequest(err)
	}
	evs, err := ses.srv.store.PersistEvents(ctx, req.Data)
	if err != nil {
		return err
	}
	metas := make([]publishedMeta, len(evs))
	for i, ev := range evs {
		metas[i] = publishedMeta{
			Stream:    ev.Stream,
			Offset:    ev.Offset,
			Lamport:   ev.Lamport,
			Timestamp: ev.Timestamp,
		}
	}
	return ses.sendNext(id, publishResponse{Data: metas})
}

// pipe forwards event chunks as next frames until the subscription ends.
func (ses *session) pipe(id RequestID, sub es.Subscription[[]event.Event]) error {
	for chunk := range sub.Chan() {
		if err := ses.sendNext(id, chunk); err != nil {
			return err
		}
	}
	return sub.Err()
}

var errSessionGone = errors.New("ws: session gone")

func (ses *session) sendNext(id RequestID, v any) error {
	payload, err := codec.Encode(v)
	if err != nil {
		return err
	}
	if !ses.reply(Frame{Type: FrameNext, RequestID: id, Payload: payload}) {
		return errSessionGone
	}
	return nil
}

// reply queues a frame for the writer. It reports false once the session
// has ended.
func (ses *session) reply(f Frame) bool {
	select {
	case ses.send <- f:
		return true
	case <-ses.done:
		return false
	}
}

func (ses *session) writeLoop() {
	t := time.NewTicker(ses.srv.pingEvery)
	defer t.Stop()
	defer ses.conn.Close()
	for {
		select {
		case f := <-ses.send:
			_ = ses.conn.SetWriteDeadline(time.Now().Add(ses.srv.writeTimeout))
			if err := ses.conn.WriteJSON(f); err != nil {
				return
			}
			ses.srv.metrics.FramesSent(string(f.Type))
		case <-t.C:
			_ = ses.conn.SetWriteDeadline(time.Now().Add(ses.srv.writeTimeout))
			if err := ses.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		case <-ses.done:
			_ = ses.conn.SetWriteDeadline(time.Now().Add(ses.srv.writeTimeout))
			_ = ses.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
			return
		}
	}
}

// serviceUnknown marks a request for a service this server does not have.
type serviceUnknown struct{ id string }

func (e *serviceUnknown) Error() string { return fmt.Sprintf("unknown service %q", e.id) }

// requestProblem marks an error caused by the request itself rather than
// the store.
type requestProblem struct{ err error }

func (e *requestProblem) Error() string { return e.err.Error() }
func (e *requestProblem) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestProblem{err: err} }

func errorKind(err error) ErrorKind {
	var unknown *serviceUnknown
	var problem *requestProblem
	switch {
	case errors.As(err, &unknown):
		return KindUnknownService
	case errors.As(err, &problem),
		errors.Is(err, es.ErrBadOrder),
		errors.Is(err, es.ErrUnboundedSort):
		return KindBadRequest
	default:
		return KindServiceError
	}
}
