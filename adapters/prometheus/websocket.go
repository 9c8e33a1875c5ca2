package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/driftlog/driftlog-go/adapters/websocket"
)

// transportMetrics implements websocket.TransportMetrics using Prometheus.
type transportMetrics struct {
	dials            *prometheus.CounterVec
	connectionsLost  prometheus.Counter
	requests         *prometheus.CounterVec
	cancels          prometheus.Counter
	requestsInFlight prometheus.Gauge
	framesSent       *prometheus.CounterVec
	framesReceived   *prometheus.CounterVec
}

// NewTransportMetrics creates a new Prometheus implementation of
// TransportMetrics.
func NewTransportMetrics(reg prometheus.Registerer) websocket.TransportMetrics {
	m := &transportMetrics{
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftlog_ws_dials_total",
			Help: "Total number of connection attempts",
		}, []string{"success"}),

		connectionsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftlog_ws_connections_lost_total",
			Help: "Established connections that died",
		}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftlog_ws_requests_total",
			Help: "Total number of requests opened",
		}, []string{"service"}),

		cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftlog_ws_cancels_total",
			Help: "Total number of cancel frames sent",
		}),

		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftlog_ws_requests_in_flight",
			Help: "Requests currently open",
		}),

		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftlog_ws_frames_sent_total",
			Help: "Total number of frames written",
		}, []string{"type"}),

		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftlog_ws_frames_received_total",
			Help: "Total number of frames read",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.dials,
		m.connectionsLost,
		m.requests,
		m.cancels,
		m.requestsInFlight,
		m.framesSent,
		m.framesReceived,
	)

	return m
}

func (m *transportMetrics) Dials(success bool) {
	m.dials.WithLabelValues(boolToStr(success)).Inc()
}

func (m *transportMetrics) ConnectionsLost() {
	m.connectionsLost.Inc()
}

func (m *transportMetrics) Requests(serviceID string) {
	m.requests.WithLabelValues(serviceID).Inc()
}

func (m *transportMetrics) Cancels() {
	m.cancels.Inc()
}

func (m *transportMetrics) RequestsInFlight(delta int) {
	m.requestsInFlight.Add(float64(delta))
}

func (m *transportMetrics) FramesSent(frameType string) {
	m.framesSent.WithLabelValues(frameType).Inc()
}

func (m *transportMetrics) FramesReceived(frameType string) {
	m.framesReceived.WithLabelValues(frameType).Inc()
}

var _ websocket.TransportMetrics = (*transportMetrics)(nil)
