package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks fund movement. Amounts are in minimal currency units.
type Metrics struct {
	CreditsPurchased prometheus.Counter
	RevenueReceived  prometheus.Counter
	Withdrawals      prometheus.Counter
	ServicePayments  prometheus.Counter
	ReentryRejected  prometheus.Counter
	Compensations    *prometheus.CounterVec
	TreasuryBalance  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		CreditsPurchased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_custody_credits_purchased_total",
			Help: "Credits minted by purchases",
		}),
		RevenueReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_custody_revenue_minor_units_total",
			Help: "Purchase revenue kept in the treasury, in minimal currency units",
		}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_custody_withdrawals_total",
			Help: "Completed treasury withdrawals",
		}),
		ServicePayments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_custody_service_payments_total",
			Help: "Group costs forwarded to the service backend",
		}),
		ReentryRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_custody_reentry_rejected_total",
			Help: "Nested calls into guarded fund operations that were rejected",
		}),
		Compensations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_custody_compensations_total",
			Help: "Committed effects undone after an external call failed",
		}, []string{"operation"}),
		TreasuryBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poolshare_custody_treasury_minor_units",
			Help: "Current treasury balance in minimal currency units",
		}),
	}
}

func (m *Metrics) ObservePurchase(credits uint64, revenue int64) {
	if m == nil {
		return
	}
	m.CreditsPurchased.Add(float64(credits))
	m.RevenueReceived.Add(float64(revenue))
}

func (m *Metrics) IncrementWithdrawals() {
	if m == nil {
		return
	}
	m.Withdrawals.Inc()
}

func (m *Metrics) IncrementServicePayments() {
	if m == nil {
		return
	}
	m.ServicePayments.Inc()
}

func (m *Metrics) IncrementReentryRejected() {
	if m == nil {
		return
	}
	m.ReentryRejected.Inc()
}

func (m *Metrics) IncrementCompensation(op string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(op).Inc()
}

func (m *Metrics) SetTreasury(amount int64) {
	if m == nil {
		return
	}
	m.TreasuryBalance.Set(float64(amount))
}
