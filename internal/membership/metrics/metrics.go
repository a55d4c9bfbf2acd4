package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks group allocation and membership churn.
type Metrics struct {
	Subscriptions  *prometheus.CounterVec
	Renewals       prometheus.Counter
	Removals       *prometheus.CounterVec
	GroupsCreated  prometheus.Counter
	Compensations  prometheus.Counter
	SubscribeCalls prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Subscriptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_membership_subscriptions_total",
			Help: "Successful subscriptions by placement (joined an existing group or created one)",
		}, []string{"placement"}),
		Renewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_membership_renewals_total",
			Help: "Successful subscription renewals",
		}),
		Removals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_membership_removals_total",
			Help: "Members removed from groups by reason",
		}, []string{"reason"}),
		GroupsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_membership_groups_created_total",
			Help: "Subscription groups created",
		}),
		Compensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_membership_compensations_total",
			Help: "Subscriptions or renewals undone after the service payment failed",
		}),
		SubscribeCalls: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolshare_membership_subscribe_duration_seconds",
			Help:    "Duration of Subscribe operations including the backend payment",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementSubscription(created bool) {
	if m == nil {
		return
	}
	if created {
		m.Subscriptions.WithLabelValues("created").Inc()
		m.GroupsCreated.Inc()
		return
	}
	m.Subscriptions.WithLabelValues("joined").Inc()
}

func (m *Metrics) IncrementRenewal() {
	if m == nil {
		return
	}
	m.Renewals.Inc()
}

func (m *Metrics) IncrementRemoval(reason string) {
	if m == nil {
		return
	}
	m.Removals.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementCompensation() {
	if m == nil {
		return
	}
	m.Compensations.Inc()
}

func (m *Metrics) ObserveSubscribe(seconds float64) {
	if m == nil {
		return
	}
	m.SubscribeCalls.Observe(seconds)
}
