package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ProposalsCreated   prometheus.Counter
	VotesCast          *prometheus.CounterVec
	Executions         *prometheus.CounterVec
	CooldownRejections prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ProposalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_governance_proposals_created_total",
			Help: "Total number of kick proposals created",
		}),
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_governance_votes_total",
			Help: "Votes cast on kick proposals",
		}, []string{"vote"}),
		Executions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_governance_executions_total",
			Help: "Proposal executions by outcome",
		}, []string{"outcome"}),
		CooldownRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_governance_cooldown_rejections_total",
			Help: "Proposals refused because the proposer's cooldown was active",
		}),
	}
}

func (m *Metrics) IncrementProposals() {
	if m == nil {
		return
	}
	m.ProposalsCreated.Inc()
}

func (m *Metrics) IncrementVote(yes bool) {
	if m == nil {
		return
	}
	vote := "no"
	if yes {
		vote = "yes"
	}
	m.VotesCast.WithLabelValues(vote).Inc()
}

func (m *Metrics) IncrementExecution(outcome string) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCooldownRejection() {
	if m == nil {
		return
	}
	m.CooldownRejections.Inc()
}
