package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/driftlog/driftlog-go/core/event"
	"github.com/driftlog/driftlog-go/core/tags"
)

// ErrBadFrame is wrapped by every frame validation failure.
var ErrBadFrame = errors.New("ws: bad frame")

// FrameType discriminates the multiplexed protocol frames.
type FrameType string

const (
	// FrameRequest opens a request on a fresh id (client to server).
	FrameRequest FrameType = "request"
	// FrameCancel asks the server to stop a running request.
	FrameCancel FrameType = "cancel"
	// FrameNext carries one response payload of a request.
	FrameNext FrameType = "next"
	// FrameComplete ends a request's response sequence normally.
	FrameComplete FrameType = "complete"
	// FrameError ends a request's response sequence with a failure.
	FrameError FrameType = "error"
)

// RequestID identifies one request on a connection. Ids are assigned
// strictly increasing and never reused, so a late frame can always be told
// apart from a current one. The range is capped so ids survive JSON's
// float64 numbers exactly.
type RequestID uint64

// MaxRequestID is the largest id exactly representable on the wire.
const MaxRequestID RequestID = 1<<53 - 1

// ErrorKind classifies an error frame.
type ErrorKind string

const (
	// KindUnknownService names a request for a service the peer lacks.
	KindUnknownService ErrorKind = "unknownService"
	// KindBadRequest names a malformed or invalid request payload.
	KindBadRequest ErrorKind = "badRequest"
	// KindServiceError names a failure inside the serving store.
	KindServiceError ErrorKind = "serviceError"
)

// Frame is the single wire envelope. Which fields are meaningful depends on
// Type; Validate enforces the per-type rules instead of leaving decoding to
// duck typing.
type Frame struct {
	Type      FrameType       `json:"type"`
	RequestID RequestID       `json:"requestId"`
	ServiceID string          `json:"serviceId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Kind      ErrorKind       `json:"kind,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Validate checks the per-type field rules.
func (f Frame) Validate() error {
	if f.RequestID > MaxRequestID {
		return fmt.Errorf("%w: request id %d out of range", ErrBadFrame, f.RequestID)
	}
	switch f.Type {
	case FrameRequest:
		if f.ServiceID == "" {
			return fmt.Errorf("%w: request without service id", ErrBadFrame)
		}
	case FrameNext:
		if len(f.Payload) == 0 {
			return fmt.Errorf("%w: next without payload", ErrBadFrame)
		}
	case FrameError:
		if f.Kind == "" {
			return fmt.Errorf("%w: error without kind", ErrBadFrame)
		}
	case FrameCancel, FrameComplete:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadFrame, f.Type)
	}
	return nil
}

// RequestError is the client-side form of an error frame.
type RequestError struct {
	Kind    ErrorKind
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ws: request failed: %s", e.Kind)
	}
	return fmt.Sprintf("ws: request failed (%s): %s", e.Kind, e.Message)
}

// Service ids of the store protocol.
const (
	ServiceNodeID    = "node_id"
	ServiceOffsets   = "offsets"
	ServiceQuery     = "query"
	ServiceSubscribe = "subscribe"
	ServicePublish   = "publish"
)

// legacyServices maps the revision-0 service names still accepted on the
// serving side to their current ids.
var legacyServices = map[string]string{
	"requestOffsets":  ServiceOffsets,
	"queryEvents":     ServiceQuery,
	"subscribeEvents": ServiceSubscribe,
	"persistEvents":   ServicePublish,
}

// CanonicalService resolves legacy service names, returning unknown ids
// unchanged.
func CanonicalService(id string) string {
	if c, ok := legacyServices[id]; ok {
		return c
	}
	return id
}

// queryRequest is the payload of a query request. Event chunks come back as
// []event.Event in next frames.
type queryRequest struct {
	Lower  event.OffsetMap        `json:"lowerBound,omitempty"`
	Upper  event.OffsetMap        `json:"upperBound,omitempty"`
	Where  []tags.TagSubscription `json:"where,omitempty"`
	Order  string                 `json:"order,omitempty"`
	MinKey *event.Key             `json:"minEventKey,omitempty"`
}

// subscribeRequest is the payload of a subscribe request.
type subscribeRequest struct {
	Lower  event.OffsetMap        `json:"lowerBound,omitempty"`
	Upper  event.OffsetMap        `json:"upperBound,omitempty"`
	Where  []tags.TagSubscription `json:"where,omitempty"`
	MinKey *event.Key             `json:"minEventKey,omitempty"`
}

// publishRequest is the payload of a publish request.
type publishRequest struct {
	Data []event.Draft `json:"data"`
}

// publishedMeta is the per-draft result of a publish: the key the store
// assigned. The client already holds tags and payload.
type publishedMeta struct {
	Stream    event.StreamID  `json:"stream"`
	Offset    event.Offset    `json:"offset"`
	Lamport   event.Lamport   `json:"lamport"`
	Timestamp event.Timestamp `json:"timestamp"`
}

// publishResponse answers a publish request, metas in draft order.
type publishResponse struct {
	Data []publishedMeta `json:"data"`
}

// nodeIDResponse answers a node_id request.
type nodeIDResponse struct {
	NodeID event.NodeID `json:"nodeId"`
}
