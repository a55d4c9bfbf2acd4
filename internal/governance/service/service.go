// Package service is the governance engine: members of a group propose to
// remove another member, the group votes within a fixed period, and anyone
// may execute the proposal once the period has closed.
//
// Proposal state is derived from the clock: open until EndsAt, expired after,
// executed once Execute has run. Execution is single-shot. A proposal that
// fails the majority check, or whose target has already left, still executes
// and records the outcome.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"poolshare/internal/governance/metrics"
	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/authz"
	"poolshare/pkg/platform/sentinel"
	"poolshare/pkg/requestcontext"
)

// DefaultVotingPeriod is how long a proposal accepts votes.
const DefaultVotingPeriod = 24 * time.Hour

type Store interface {
	FindGroup(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
	CreateProposal(ctx context.Context, p *models.Proposal) (*models.Proposal, error)
	FindProposal(ctx context.Context, ref id.ProposalRef) (*models.Proposal, error)
	ListProposals(ctx context.Context, group id.GroupRef) ([]*models.Proposal, error)
	ExecuteProposal(ctx context.Context, ref id.ProposalRef, validate func(*models.Proposal) error, mutate func(*models.Proposal)) (*models.Proposal, error)
}

type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Lifecycle interface {
	Refresh(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
}

// Remover takes a member out of a group, deleting its membership and vault
// entry and cancelling its backend access.
type Remover interface {
	RemoveMember(ctx context.Context, group id.GroupRef, principal id.PrincipalID) error
}

// CooldownStore limits each proposer to one proposal per window.
type CooldownStore interface {
	Acquire(ctx context.Context, proposer id.PrincipalID, now time.Time) error
	Release(ctx context.Context, proposer id.PrincipalID, now time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ProposalView is a proposal with its addressing and derived status.
type ProposalView struct {
	*models.Proposal
	ServiceID     id.ServiceID          `json:"service_id"`
	GroupID       id.GroupID            `json:"group_id"`
	ID            id.ProposalID         `json:"id"`
	Status        models.ProposalStatus `json:"status"`
	RequiredVotes uint                  `json:"required_votes"`
}

type Service struct {
	store          Store
	tx             Serializer
	lifecycle      Lifecycle
	remover        Remover
	cooldown       CooldownStore
	votingPeriod   time.Duration
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

func WithVotingPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.votingPeriod = d
		}
	}
}

func New(store Store, serializer Serializer, lifecycle Lifecycle, remover Remover, cooldown CooldownStore, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("governance store is required")
	case serializer == nil:
		return nil, errors.New("serializer is required")
	case lifecycle == nil:
		return nil, errors.New("lifecycle manager is required")
	case remover == nil:
		return nil, errors.New("member remover is required")
	case cooldown == nil:
		return nil, errors.New("cooldown store is required")
	}
	s := &Service{
		store:        store,
		tx:           serializer,
		lifecycle:    lifecycle,
		remover:      remover,
		cooldown:     cooldown,
		votingPeriod: DefaultVotingPeriod,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProposeToKickUser opens a vote to remove target from group. Proposer and
// target must both be members of the active group.
func (s *Service) ProposeToKickUser(ctx context.Context, proposer id.PrincipalID, group id.GroupRef, target id.PrincipalID) (*ProposalView, error) {
	if err := authz.RequireCaller(proposer); err != nil {
		return nil, err
	}
	var out *models.Proposal
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		g, err := s.activeGroup(ctx, group, now)
		if err != nil {
			return err
		}
		if !g.HasMember(proposer) {
			return dErrors.New(dErrors.CodeNotMember, "proposer is not a member of this group")
		}
		if !g.HasMember(target) {
			return dErrors.New(dErrors.CodeNotMember, "target is not a member of this group")
		}
		p, err := models.NewProposal(group, proposer, target, now, s.votingPeriod)
		if err != nil {
			return err
		}

		if err := s.cooldown.Acquire(ctx, proposer, now); err != nil {
			if dErrors.HasCode(err, dErrors.CodeCooldownActive) {
				s.metrics.IncrementCooldownRejection()
			}
			return err
		}
		out, err = s.store.CreateProposal(ctx, p)
		if err != nil {
			if rerr := s.cooldown.Release(ctx, proposer, now); rerr != nil {
				s.logger.ErrorContext(ctx, "failed to release proposal cooldown", "principal_id", proposer.String(), "error", rerr)
			}
			return translateProposalErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventProposalCreated, audit.Event{
		PrincipalID: target,
		ActorID:     proposer.String(),
		ServiceID:   group.ServiceID,
		GroupID:     group.GroupID,
		ProposalID:  out.Ref.ProposalID,
	})
	s.metrics.IncrementProposals()
	return s.view(ctx, out, nil), nil
}

// VoteOnProposal records one vote from a current member other than the target.
func (s *Service) VoteOnProposal(ctx context.Context, voter id.PrincipalID, ref id.ProposalRef, yes bool) (*ProposalView, error) {
	if err := authz.RequireCaller(voter); err != nil {
		return nil, err
	}
	var out *models.Proposal
	var members int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		if _, err := s.findProposal(ctx, ref); err != nil {
			return err
		}
		g, err := s.activeGroup(ctx, ref.GroupRef, now)
		if err != nil {
			return err
		}
		if !g.HasMember(voter) {
			return dErrors.New(dErrors.CodeNotMember, "voter is not a member of this group")
		}
		members = g.MemberCount()
		out, err = s.store.ExecuteProposal(ctx, ref,
			func(p *models.Proposal) error { return p.CanVote(voter, now) },
			func(p *models.Proposal) { p.ApplyVote(voter, yes) },
		)
		if err != nil {
			return translateProposalErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail := "no"
	if yes {
		detail = "yes"
	}
	s.logAudit(ctx, audit.EventVoteCast, audit.Event{
		PrincipalID: voter,
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
		ProposalID:  ref.ProposalID,
		Detail:      detail,
	})
	s.metrics.IncrementVote(yes)
	return s.view(ctx, out, &members), nil
}

// ExecuteProposal finalizes a closed proposal. The majority is computed over
// the group's membership at this moment. The target is removed only if the
// majority holds and it is still a member; otherwise the proposal is marked
// executed with no removal. Groups with fewer than two members are refused
// and the proposal stays executable.
func (s *Service) ExecuteProposal(ctx context.Context, caller id.PrincipalID, ref id.ProposalRef) (*ProposalView, error) {
	if err := authz.RequireCaller(caller); err != nil {
		return nil, err
	}
	var out *models.Proposal
	var members int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		p, err := s.findProposal(ctx, ref)
		if err != nil {
			return err
		}
		if err := p.CanExecute(now); err != nil {
			return err
		}
		g, err := s.store.FindGroup(ctx, ref.GroupRef)
		if err != nil {
			return translateProposalErr(err)
		}
		members = g.MemberCount()
		if members < 2 {
			return dErrors.New(dErrors.CodeInvariantViolation, "group needs at least two members to execute a proposal")
		}

		outcome := models.OutcomeRejected
		switch {
		case !g.HasMember(p.Target):
			outcome = models.OutcomeTargetLeft
		case p.Passes(members):
			outcome = models.OutcomeKicked
		}
		if outcome == models.OutcomeKicked {
			if err := s.remover.RemoveMember(ctx, ref.GroupRef, p.Target); err != nil {
				return err
			}
		}

		out, err = s.store.ExecuteProposal(ctx, ref,
			func(p *models.Proposal) error { return p.CanExecute(now) },
			func(p *models.Proposal) { p.ApplyExecution(outcome, now) },
		)
		if err != nil {
			return translateProposalErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := audit.Event{
		PrincipalID: out.Target,
		ActorID:     caller.String(),
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
		ProposalID:  ref.ProposalID,
		MemberCount: members,
		Detail:      string(out.Outcome),
	}
	s.logAudit(ctx, audit.EventProposalExecuted, event)
	if out.Outcome == models.OutcomeKicked {
		s.logAudit(ctx, audit.EventMemberKicked, event)
	}
	s.metrics.IncrementExecution(string(out.Outcome))
	return s.view(ctx, out, &members), nil
}

func (s *Service) GetProposal(ctx context.Context, ref id.ProposalRef) (*ProposalView, error) {
	p, err := s.findProposal(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p, s.memberCount(ctx, ref.GroupRef)), nil
}

// ListProposals returns every proposal of group, oldest first.
func (s *Service) ListProposals(ctx context.Context, group id.GroupRef) ([]*ProposalView, error) {
	if _, err := s.store.FindGroup(ctx, group); err != nil {
		return nil, translateProposalErr(err)
	}
	list, err := s.store.ListProposals(ctx, group)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proposals")
	}
	members := s.memberCount(ctx, group)
	out := make([]*ProposalView, 0, len(list))
	for _, p := range list {
		out = append(out, s.view(ctx, p, members))
	}
	return out, nil
}

// activeGroup refreshes group and rejects it once expired.
func (s *Service) activeGroup(ctx context.Context, ref id.GroupRef, now time.Time) (*models.SubscriptionGroup, error) {
	g, err := s.lifecycle.Refresh(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !g.IsActiveAt(now) {
		return nil, dErrors.New(dErrors.CodeSubscriptionExpired, "group subscription has expired")
	}
	return g, nil
}

func (s *Service) findProposal(ctx context.Context, ref id.ProposalRef) (*models.Proposal, error) {
	p, err := s.store.FindProposal(ctx, ref)
	if err != nil {
		return nil, translateProposalErr(err)
	}
	return p, nil
}

func (s *Service) memberCount(ctx context.Context, ref id.GroupRef) *int {
	g, err := s.store.FindGroup(ctx, ref)
	if err != nil {
		return nil
	}
	n := g.MemberCount()
	return &n
}

func (s *Service) view(ctx context.Context, p *models.Proposal, members *int) *ProposalView {
	v := &ProposalView{
		Proposal:  p,
		ServiceID: p.Ref.ServiceID,
		GroupID:   p.Ref.GroupID,
		ID:        p.Ref.ProposalID,
		Status:    p.Status(requestcontext.Now(ctx)),
	}
	if members != nil && *members >= 2 {
		v.RequiredVotes = models.RequiredVotes(*members)
	}
	return v
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	_ = audit.LogAudit(ctx, s.logger, s.auditPublisher, action, event)
}

func translateProposalErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "proposal or group not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "governance store failure")
}
