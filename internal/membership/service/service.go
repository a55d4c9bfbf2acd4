// Package service allocates principals into capacity-bounded subscription
// groups and maintains their membership records.
//
// A subscriber joins an active group with spare capacity, or, when none has
// room, opens a new group and pays its full recurring cost up front through
// the custodian. Later joiners pay only the membership fee. Ledger effects
// are committed before the payment is forwarded; a failed payment undoes them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"poolshare/internal/ledger/models"
	"poolshare/internal/membership/metrics"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/sentinel"
	"poolshare/pkg/requestcontext"
)

// MembershipFee is the credit cost of joining or renewing.
const MembershipFee uint64 = 1

type Store interface {
	FindService(ctx context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error)
	FindPrincipal(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	Credit(ctx context.Context, principalID id.PrincipalID, amount uint64) (uint64, error)
	Debit(ctx context.Context, principalID id.PrincipalID, amount uint64) (uint64, error)
	CreateGroup(ctx context.Context, serviceID id.ServiceID, now time.Time, duration time.Duration) (*models.SubscriptionGroup, error)
	DeleteGroup(ctx context.Context, ref id.GroupRef) error
	FindGroup(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
	ListGroups(ctx context.Context, serviceID id.ServiceID) ([]*models.SubscriptionGroup, error)
	ExecuteGroup(ctx context.Context, ref id.GroupRef, validate func(*models.SubscriptionGroup) error, mutate func(*models.SubscriptionGroup)) (*models.SubscriptionGroup, error)
	AddMember(ctx context.Context, ref id.GroupRef, principalID id.PrincipalID, capacity int, now time.Time) (*models.Membership, error)
	RemoveMember(ctx context.Context, ref id.GroupRef, principalID id.PrincipalID) error
	FindMembership(ctx context.Context, principalID id.PrincipalID, serviceID id.ServiceID) (*models.Membership, error)
	ListMemberships(ctx context.Context, principalID id.PrincipalID) ([]*models.Membership, error)
}

type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Lifecycle interface {
	Refresh(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
}

// Custodian forwards group costs and access cancellations to the backend.
type Custodian interface {
	PayService(ctx context.Context, group id.GroupRef, payer id.PrincipalID, cost money.Money) error
	CancelAccess(ctx context.Context, group id.GroupRef, principal id.PrincipalID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Subscription is a membership together with its group as of the call.
type Subscription struct {
	Membership   *models.Membership        `json:"membership"`
	Group        *models.SubscriptionGroup `json:"group"`
	CreatedGroup bool                      `json:"created_group"`
}

type Service struct {
	store          Store
	tx             Serializer
	lifecycle      Lifecycle
	custodian      Custodian
	selector       Selector
	duration       time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSelector replaces the default round-robin group selection.
func WithSelector(sel Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithSubscriptionDuration sets how long a payment keeps a group active.
func WithSubscriptionDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.duration = d
		}
	}
}

func New(store Store, serializer Serializer, lifecycle Lifecycle, custodian Custodian, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("membership store is required")
	case serializer == nil:
		return nil, errors.New("serializer is required")
	case lifecycle == nil:
		return nil, errors.New("lifecycle manager is required")
	case custodian == nil:
		return nil, errors.New("custodian is required")
	}
	s := &Service{
		store:     store,
		tx:        serializer,
		lifecycle: lifecycle,
		custodian: custodian,
		selector:  NewRoundRobin(),
		duration:  30 * 24 * time.Hour,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe places principal into a group of serviceID for one credit.
func (s *Service) Subscribe(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*Subscription, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSubscribe(time.Since(start).Seconds()) }()

	var out *Subscription
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)

		svc, err := s.findService(ctx, serviceID)
		if err != nil {
			return err
		}
		if err := s.requireNoMembership(ctx, principal, serviceID); err != nil {
			return err
		}
		if err := s.requireCredit(ctx, principal); err != nil {
			return err
		}

		group, created, err := s.placement(ctx, svc, now)
		if err != nil {
			return err
		}
		ref := group.Ref()

		if _, err := s.store.Debit(ctx, principal, MembershipFee); err != nil {
			s.dropNewGroup(ctx, ref, created)
			return translateDebitErr(err)
		}
		membership, err := s.store.AddMember(ctx, ref, principal, svc.Capacity, now)
		if err != nil {
			s.refund(ctx, principal)
			s.dropNewGroup(ctx, ref, created)
			return translateAdmitErr(err)
		}

		if created {
			if err := s.custodian.PayService(ctx, ref, principal, svc.TotalCost); err != nil {
				s.undoAdmission(ctx, ref, principal)
				s.dropNewGroup(ctx, ref, true)
				s.metrics.IncrementCompensation()
				return err
			}
		}

		group, err = s.store.FindGroup(ctx, ref)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload group")
		}
		out = &Subscription{Membership: membership, Group: group, CreatedGroup: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ref := out.Group.Ref()
	if out.CreatedGroup {
		s.logAudit(ctx, audit.EventGroupCreated, audit.Event{
			PrincipalID: principal,
			ServiceID:   ref.ServiceID,
			GroupID:     ref.GroupID,
		})
	}
	s.logAudit(ctx, audit.EventMemberAdded, audit.Event{
		PrincipalID: principal,
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
		MemberCount: out.Group.MemberCount(),
	})
	s.metrics.IncrementSubscription(out.CreatedGroup)
	return out, nil
}

// RenewSubscription charges one credit, pays the service cost again and
// extends the member's group to now plus the subscription duration. It also
// revives a group that has already expired.
func (s *Service) RenewSubscription(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*models.SubscriptionGroup, error) {
	var out *models.SubscriptionGroup
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)

		membership, err := s.findMembership(ctx, principal, serviceID)
		if err != nil {
			return err
		}
		svc, err := s.findService(ctx, serviceID)
		if err != nil {
			return err
		}
		if err := s.requireCredit(ctx, principal); err != nil {
			return err
		}
		ref := membership.GroupRef()
		prior, err := s.store.FindGroup(ctx, ref)
		if err != nil {
			return translateGroupErr(err)
		}

		if _, err := s.store.Debit(ctx, principal, MembershipFee); err != nil {
			return translateDebitErr(err)
		}
		renewed, err := s.store.ExecuteGroup(ctx, ref, noCheck, func(g *models.SubscriptionGroup) {
			g.ApplyRenewal(now, s.duration)
		})
		if err != nil {
			s.refund(ctx, principal)
			return translateGroupErr(err)
		}

		if err := s.custodian.PayService(ctx, ref, principal, svc.TotalCost); err != nil {
			s.restoreGroup(ctx, prior)
			s.refund(ctx, principal)
			s.metrics.IncrementCompensation()
			return err
		}
		out = renewed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventSubscriptionRenewed, audit.Event{
		PrincipalID: principal,
		ServiceID:   out.ServiceID,
		GroupID:     out.ID,
		MemberCount: out.MemberCount(),
		Detail:      out.ExpiresAt.UTC().Format(time.RFC3339),
	})
	s.metrics.IncrementRenewal()
	return out, nil
}

// CancelSubscription removes principal from its group for serviceID. The
// credit is not refunded.
func (s *Service) CancelSubscription(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) error {
	var ref id.GroupRef
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		membership, err := s.findMembership(ctx, principal, serviceID)
		if err != nil {
			return err
		}
		ref = membership.GroupRef()
		return s.remove(ctx, ref, principal)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventSubscriptionCancelled, audit.Event{
		PrincipalID: principal,
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
	})
	s.metrics.IncrementRemoval("cancelled")
	return nil
}

// RemoveMember drops principal from group, deleting its membership record
// and vault entry, and tells the backend to cancel its access. It is the
// entry point governance execution uses; callers authorize.
func (s *Service) RemoveMember(ctx context.Context, group id.GroupRef, principal id.PrincipalID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.remove(ctx, group, principal)
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementRemoval("kicked")
	return nil
}

// GetGroup returns the group with its activity refreshed.
func (s *Service) GetGroup(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error) {
	return s.lifecycle.Refresh(ctx, ref)
}

// ListGroups returns every group of serviceID, refreshed.
func (s *Service) ListGroups(ctx context.Context, serviceID id.ServiceID) ([]*models.SubscriptionGroup, error) {
	groups, err := s.store.ListGroups(ctx, serviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeServiceNotFound, "service not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groups")
	}
	now := requestcontext.Now(ctx)
	for i, g := range groups {
		if !g.IsStale(now) {
			continue
		}
		fresh, err := s.lifecycle.Refresh(ctx, g.Ref())
		if err != nil {
			return nil, err
		}
		groups[i] = fresh
	}
	return groups, nil
}

// GetMembership returns principal's membership for serviceID and its group,
// whether or not the group is still active.
func (s *Service) GetMembership(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*Subscription, error) {
	membership, err := s.findMembership(ctx, principal, serviceID)
	if err != nil {
		return nil, err
	}
	group, err := s.lifecycle.Refresh(ctx, membership.GroupRef())
	if err != nil {
		return nil, err
	}
	return &Subscription{Membership: membership, Group: group}, nil
}

func (s *Service) ListMemberships(ctx context.Context, principal id.PrincipalID) ([]*models.Membership, error) {
	out, err := s.store.ListMemberships(ctx, principal)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memberships")
	}
	return out, nil
}

// placement returns an admitting group, creating one when none has room.
func (s *Service) placement(ctx context.Context, svc *models.ServiceOffering, now time.Time) (*models.SubscriptionGroup, bool, error) {
	groups, err := s.store.ListGroups(ctx, svc.ID)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groups")
	}
	var candidates []*models.SubscriptionGroup
	for _, g := range groups {
		if g.IsStale(now) {
			if _, err := s.lifecycle.Refresh(ctx, g.Ref()); err != nil {
				return nil, false, err
			}
			continue
		}
		if g.CanAdmit(svc.Capacity, now) {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) > 0 {
		return s.selector.Select(svc.ID, candidates), false, nil
	}

	g, err := s.store.CreateGroup(ctx, svc.ID, now, s.duration)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create group")
	}
	return g, true, nil
}

func (s *Service) remove(ctx context.Context, ref id.GroupRef, principal id.PrincipalID) error {
	if err := s.store.RemoveMember(ctx, ref, principal); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotMember, "principal is not a member of this group")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove member")
	}
	// Access revocation is a notification; the removal stands if it fails.
	if err := s.custodian.CancelAccess(ctx, ref, principal); err != nil {
		s.logger.WarnContext(ctx, "backend access cancellation failed",
			"group", ref.String(),
			"principal_id", principal.String(),
			"error", err,
		)
	}
	return nil
}

func (s *Service) findService(ctx context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error) {
	svc, err := s.store.FindService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeServiceNotFound, "service not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service")
	}
	return svc, nil
}

func (s *Service) findMembership(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*models.Membership, error) {
	m, err := s.store.FindMembership(ctx, principal, serviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotSubscribed, "not subscribed to this service")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m, nil
}

// requireNoMembership also rejects an expired membership: the record is kept
// on expiry and the member renews instead of subscribing again.
func (s *Service) requireNoMembership(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) error {
	_, err := s.store.FindMembership(ctx, principal, serviceID)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeAlreadySubscribed, "already subscribed to this service")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
}

func (s *Service) requireCredit(ctx context.Context, principal id.PrincipalID) error {
	p, err := s.store.FindPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient credit balance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return p.CanDebit(MembershipFee)
}

func (s *Service) refund(ctx context.Context, principal id.PrincipalID) {
	if _, err := s.store.Credit(ctx, principal, MembershipFee); err != nil {
		s.logger.ErrorContext(ctx, "failed to refund membership fee", "principal_id", principal.String(), "error", err)
	}
}

func (s *Service) undoAdmission(ctx context.Context, ref id.GroupRef, principal id.PrincipalID) {
	if err := s.store.RemoveMember(ctx, ref, principal); err != nil {
		s.logger.ErrorContext(ctx, "failed to undo admission", "group", ref.String(), "error", err)
	}
	s.refund(ctx, principal)
}

func (s *Service) dropNewGroup(ctx context.Context, ref id.GroupRef, created bool) {
	if !created {
		return
	}
	if err := s.store.DeleteGroup(ctx, ref); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete unpaid group", "group", ref.String(), "error", err)
	}
}

func (s *Service) restoreGroup(ctx context.Context, prior *models.SubscriptionGroup) {
	_, err := s.store.ExecuteGroup(ctx, prior.Ref(), noCheck, func(g *models.SubscriptionGroup) {
		g.ExpiresAt = prior.ExpiresAt
		g.Active = prior.Active
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to restore group after failed renewal", "group", prior.Ref().String(), "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	_ = audit.LogAudit(ctx, s.logger, s.auditPublisher, action, event)
}

func noCheck(*models.SubscriptionGroup) error { return nil }

func translateDebitErr(err error) error {
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient credit balance")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit balance")
}

func translateAdmitErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadySubscribed, "already subscribed to this service")
	case errors.Is(err, sentinel.ErrCapacity):
		return dErrors.New(dErrors.CodeConflict, "group is full")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add member")
	}
}

func translateGroupErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "group not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
}
