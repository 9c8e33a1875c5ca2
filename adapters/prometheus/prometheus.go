// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the store and the websocket transport.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/driftlog/driftlog-go/adapters/websocket"
	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AllMetrics holds Prometheus implementations for both surfaces. Use this
// when a process runs a store and serves it over the transport.
type AllMetrics struct {
	Store     es.StoreMetrics
	Transport websocket.TransportMetrics
}

// NewAllMetrics creates Prometheus metrics for both surfaces on one
// registry.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Store:     NewStoreMetrics(reg),
		Transport: NewTransportMetrics(reg),
	}
}
