package websocket

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlog/driftlog-go/core/es"
)

// NewTestServer serves store over a loopback listener and returns its
// websocket URL. The listener shuts down with the test.
func NewTestServer(t *testing.T, store es.EventStore) string {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Store: store,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

// StartLoopbackStore wires a client to a fresh in-memory store served over
// a loopback connection and returns both ends.
func StartLoopbackStore(t *testing.T, opts ...es.StoreOption) (*Store, *es.MemoryStore) {
	t.Helper()
	mem := es.StartTestStore(t, opts...)
	client, err := NewStore(StoreConfig{
		URL: NewTestServer(t, mem),
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mem
}
