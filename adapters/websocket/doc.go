// Package websocket carries the store protocol over one multiplexed
// websocket connection per peer.
//
// The client side (Store, Mux) and the serving side (Server) speak the same
// frame protocol: a request opens a response stream on a fresh id, next
// frames carry payloads, complete and error frames end the stream, and a
// cancel frame stops a request the client no longer wants. Any number of
// requests share the connection without blocking each other; each one
// buffers its responses independently of the shared read loop.
package websocket
