package websocket

// TransportMetrics is implemented by metric backends that want visibility
// into connection and frame traffic. All methods must be safe for
// concurrent use.
type TransportMetrics interface {
	// Dials counts connection attempts by outcome.
	Dials(success bool)
	// ConnectionsLost counts established connections that died.
	ConnectionsLost()
	// Requests counts opened requests by service.
	Requests(serviceID string)
	// Cancels counts cancel frames sent.
	Cancels()
	// RequestsInFlight tracks the number of open requests.
	RequestsInFlight(delta int)
	// FramesSent counts outgoing frames by type.
	FramesSent(frameType string)
	// FramesReceived counts incoming frames by type.
	FramesReceived(frameType string)
}

type nopTransportMetrics struct{}

func (nopTransportMetrics) Dials(bool)            {}
func (nopTransportMetrics) ConnectionsLost()      {}
func (nopTransportMetrics) Requests(string)       {}
func (nopTransportMetrics) Cancels()              {}
func (nopTransportMetrics) RequestsInFlight(int)  {}
func (nopTransportMetrics) FramesSent(string)     {}
func (nopTransportMetrics) FramesReceived(string) {}

// NopTransportMetrics returns a TransportMetrics that does nothing.
func NopTransportMetrics() TransportMetrics { return nopTransportMetrics{} }
