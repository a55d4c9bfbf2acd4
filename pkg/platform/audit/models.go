package audit

import (
	"time"

	id "poolshare/pkg/domain"
)

// EventCategory classifies notifications by their primary purpose so stores
// and sinks can route them (topics, retention) without parsing actions.
type EventCategory string

const (
	// CategoryFunds covers anything that moves credit or money. Persisted
	// synchronously; emitting fails the caller if the write fails.
	CategoryFunds EventCategory = "funds"

	// CategoryMembership covers group and membership changes.
	CategoryMembership EventCategory = "membership"

	// CategoryGovernance covers proposals, votes and executions.
	CategoryGovernance EventCategory = "governance"

	// CategoryOperations covers catalog administration and routine access.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic for every externally observable state
// change. Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	Action      string
	PrincipalID id.PrincipalID
	// ActorID is who performed the action when different from PrincipalID,
	// e.g. the administrator storing credentials for a member.
	ActorID     string
	ServiceID   id.ServiceID
	GroupID     id.GroupID
	ProposalID  id.ProposalID
	Amount      int64
	MemberCount int
	RequestID   string
	// Detail is a short free-form outcome ("passed", "rejected", "target_left").
	Detail string
}

type AuditEvent string

const (
	// Custody events
	EventCreditsPurchased AuditEvent = "credits_purchased"
	EventRefundIssued     AuditEvent = "refund_issued"
	EventWithdrawal       AuditEvent = "withdrawal"
	EventServicePaid      AuditEvent = "service_paid"

	// Catalog events
	EventServiceAdded       AuditEvent = "service_added"
	EventServiceCostUpdated AuditEvent = "service_cost_updated"
	EventCapacityUpdated    AuditEvent = "capacity_updated"

	// Membership events
	EventGroupCreated          AuditEvent = "group_created"
	EventMemberAdded           AuditEvent = "member_added"
	EventSubscriptionRenewed   AuditEvent = "subscription_renewed"
	EventSubscriptionCancelled AuditEvent = "subscription_cancelled"
	EventSubscriptionExpired   AuditEvent = "subscription_expired"
	EventCostUpdated           AuditEvent = "cost_updated"

	// Vault events
	EventPublicKeyRegistered AuditEvent = "public_key_registered"
	EventCredentialsUpdated  AuditEvent = "credentials_updated"

	// Governance events
	EventProposalCreated  AuditEvent = "proposal_created"
	EventVoteCast         AuditEvent = "vote_cast"
	EventProposalExecuted AuditEvent = "proposal_executed"
	EventMemberKicked     AuditEvent = "member_kicked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCreditsPurchased: CategoryFunds,
	EventRefundIssued:     CategoryFunds,
	EventWithdrawal:       CategoryFunds,
	EventServicePaid:      CategoryFunds,

	EventGroupCreated:          CategoryMembership,
	EventMemberAdded:           CategoryMembership,
	EventSubscriptionRenewed:   CategoryMembership,
	EventSubscriptionCancelled: CategoryMembership,
	EventSubscriptionExpired:   CategoryMembership,
	EventCostUpdated:           CategoryMembership,
	EventPublicKeyRegistered:   CategoryMembership,
	EventCredentialsUpdated:    CategoryMembership,

	EventProposalCreated:  CategoryGovernance,
	EventVoteCast:         CategoryGovernance,
	EventProposalExecuted: CategoryGovernance,
	EventMemberKicked:     CategoryGovernance,

	EventServiceAdded:       CategoryOperations,
	EventServiceCostUpdated: CategoryOperations,
	EventCapacityUpdated:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Known reports whether e is part of the catalog.
func (e AuditEvent) Known() bool {
	_, ok := eventCategories[e]
	return ok
}
