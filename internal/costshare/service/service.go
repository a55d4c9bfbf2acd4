// Package service splits a group's recurring cost across its members.
//
// Division truncates. The remainder, at most MemberCount-1 minimal units, is
// reported with every share and is not redistributed or carried forward.
package service

import (
	"context"
	"errors"
	"log/slog"

	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/sentinel"
	"poolshare/pkg/requestcontext"
)

type Store interface {
	FindService(ctx context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error)
}

type Lifecycle interface {
	Refresh(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Share is one member's part of a group's total cost.
type Share struct {
	ServiceID   id.ServiceID `json:"service_id"`
	GroupID     id.GroupID   `json:"group_id"`
	Total       money.Money  `json:"total"`
	PerMember   money.Money  `json:"per_member"`
	Remainder   money.Money  `json:"remainder"`
	MemberCount int          `json:"member_count"`
}

// Divide splits total over members. members must be positive.
func Divide(total money.Money, members int) (per, remainder money.Money, err error) {
	if members <= 0 {
		return money.Money{}, money.Money{}, dErrors.New(dErrors.CodeInvariantViolation, "cannot divide cost over an empty group")
	}
	if total.IsNegative() {
		return money.Money{}, money.Money{}, dErrors.New(dErrors.CodeValidation, "total cost cannot be negative")
	}
	per, remainder = total.Split(int64(members))
	return per, remainder, nil
}

type Service struct {
	store          Store
	lifecycle      Lifecycle
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, lifecycle Lifecycle, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("costshare store is required")
	}
	if lifecycle == nil {
		return nil, errors.New("lifecycle manager is required")
	}
	s := &Service{store: store, lifecycle: lifecycle}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CostPerMember divides the service's current total cost across the group's
// members and publishes the result. The group must be active and non-empty.
func (s *Service) CostPerMember(ctx context.Context, ref id.GroupRef) (*Share, error) {
	svc, err := s.store.FindService(ctx, ref.ServiceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeServiceNotFound, "service not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service")
	}
	group, err := s.lifecycle.Refresh(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !group.IsActiveAt(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeSubscriptionExpired, "group is not active")
	}

	per, remainder, err := Divide(svc.TotalCost, group.MemberCount())
	if err != nil {
		return nil, err
	}
	share := &Share{
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
		Total:       svc.TotalCost,
		PerMember:   per,
		Remainder:   remainder,
		MemberCount: group.MemberCount(),
	}

	_ = audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventCostUpdated, audit.Event{
		PrincipalID: requestcontext.PrincipalID(ctx),
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
		MemberCount: share.MemberCount,
		Amount:      per.Amount,
	})
	return share, nil
}
