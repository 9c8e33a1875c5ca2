package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/driftlog/driftlog-go/core/es"
	"github.com/driftlog/driftlog-go/core/metrics"
)

// storeMetrics implements es.StoreMetrics using Prometheus.
type storeMetrics struct {
	persistDuration     prometheus.Histogram
	queryDuration       *prometheus.HistogramVec
	eventsPersisted     prometheus.Counter
	eventsReplicated    prometheus.Counter
	eventsDelivered     *prometheus.CounterVec
	replicationLag      prometheus.Gauge
	subscriptionsActive prometheus.Gauge
}

// NewStoreMetrics creates a new Prometheus implementation of StoreMetrics.
func NewStoreMetrics(reg prometheus.Registerer) es.StoreMetrics {
	m := &storeMetrics{
		persistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftlog_es_persist_duration_seconds",
			Help:    "Persist latency in seconds",
			Buckets: defaultBuckets,
		}),

		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "driftlog_es_query_duration_seconds",
			Help:    "Snapshot phase latency of a read in seconds",
			Buckets: defaultBuckets,
		}, []string{"live"}),

		eventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftlog_es_events_persisted_total",
			Help: "Total number of events appended locally",
		}),

		eventsReplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftlog_es_events_replicated_total",
			Help: "Total number of remote events accepted",
		}),

		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftlog_es_events_delivered_total",
			Help: "Total number of events handed to subscribers",
		}, []string{"live"}),

		replicationLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftlog_es_replication_lag",
			Help: "Known remote events not replicated yet",
		}),

		subscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftlog_es_subscriptions_active",
			Help: "Open live subscriptions",
		}),
	}

	reg.MustRegister(
		m.persistDuration,
		m.queryDuration,
		m.eventsPersisted,
		m.eventsReplicated,
		m.eventsDelivered,
		m.replicationLag,
		m.subscriptionsActive,
	)

	return m
}

func (m *storeMetrics) PersistDuration() metrics.Timer {
	return newTimer(m.persistDuration)
}

func (m *storeMetrics) QueryDuration(live bool) metrics.Timer {
	return newTimer(m.queryDuration.WithLabelValues(boolToStr(live)))
}

func (m *storeMetrics) EventsPersisted(count int) {
	m.eventsPersisted.Add(float64(count))
}

func (m *storeMetrics) EventsReplicated(count int) {
	m.eventsReplicated.Add(float64(count))
}

func (m *storeMetrics) EventsDelivered(live bool, count int) {
	m.eventsDelivered.WithLabelValues(boolToStr(live)).Add(float64(count))
}

func (m *storeMetrics) ReplicationLag(count int) {
	m.replicationLag.Set(float64(count))
}

func (m *storeMetrics) SubscriptionsActive(delta int) {
	m.subscriptionsActive.Add(float64(delta))
}

var _ es.StoreMetrics = (*storeMetrics)(nil)
