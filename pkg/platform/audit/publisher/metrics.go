package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "poolshare/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Emitted         *prometheus.CounterVec
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics registers the publisher metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_audit_events_emitted_total",
			Help: "Total number of notifications persisted, by category",
		}, []string{"category"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_audit_events_dropped_total",
			Help: "Total number of notifications dropped because the async buffer was full",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_audit_persist_failures_total",
			Help: "Total number of notification persistence failures",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolshare_audit_persist_duration_seconds",
			Help:    "Time spent writing a notification to the store",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) observe(category audit.EventCategory, d time.Duration) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(string(category)).Inc()
	m.PersistDuration.Observe(d.Seconds())
}
