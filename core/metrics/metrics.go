// Package metrics defines the timing instrument the store's metrics
// interfaces hand out, so core packages stay decoupled from any concrete
// backend. The prometheus adapter provides the real implementation; the
// no-op default records nothing.
//
// Counts and gauges need no shared instrument: the metrics interfaces in
// core/es and adapters/websocket express them as plain methods.
package metrics

// Timer measures the duration of one operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a no-op Timer.
func NopTimer() Timer { return nopTimer{} }
