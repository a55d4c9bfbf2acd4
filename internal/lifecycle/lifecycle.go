// Package lifecycle decides whether a subscription group is currently valid.
//
// Activity is recomputed from the stored expiry on every read; the stored
// flag is only a cache that Refresh demotes once expiry has been observed.
// There is no background sweep. Expired membership records are kept: the
// group is demoted and a renewal revives it.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/sentinel"
	"poolshare/pkg/platform/tx"
	"poolshare/pkg/requestcontext"
)

// Store is the slice of the ledger the manager reads and demotes.
type Store interface {
	FindGroup(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
	ExecuteGroup(ctx context.Context, ref id.GroupRef, validate func(*models.SubscriptionGroup) error, mutate func(*models.SubscriptionGroup)) (*models.SubscriptionGroup, error)
	FindMembership(ctx context.Context, principalID id.PrincipalID, serviceID id.ServiceID) (*models.Membership, error)
}

type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Manager answers "is this group valid right now".
type Manager struct {
	store          Store
	tx             Serializer
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(m *Manager) {
		m.auditPublisher = publisher
	}
}

func New(store Store, serializer Serializer, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("lifecycle store is required")
	}
	if serializer == nil {
		return nil, errors.New("serializer is required")
	}
	m := &Manager{store: store, tx: serializer}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

var errFresh = errors.New("group flag already current")

// IsActive recomputes activity without writing anything.
func (m *Manager) IsActive(ctx context.Context, ref id.GroupRef) (bool, error) {
	g, err := m.store.FindGroup(ctx, ref)
	if err != nil {
		return false, translateGroupErr(err)
	}
	return g.IsActiveAt(requestcontext.Now(ctx)), nil
}

// Refresh returns the group after persisting a demotion if its stored active
// flag has gone stale. The first observation of an expiry emits
// subscription_expired.
func (m *Manager) Refresh(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error) {
	var out *models.SubscriptionGroup
	err := m.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		g, err := m.store.ExecuteGroup(ctx, ref,
			func(g *models.SubscriptionGroup) error {
				if !g.IsStale(now) {
					return errFresh
				}
				return nil
			},
			func(g *models.SubscriptionGroup) { g.ApplyExpiry() },
		)
		if errors.Is(err, errFresh) {
			out, err = m.store.FindGroup(ctx, ref)
			if err != nil {
				return translateGroupErr(err)
			}
			return nil
		}
		if err != nil {
			return translateGroupErr(err)
		}
		out = g
		m.logAudit(ctx, audit.Event{
			ServiceID:   ref.ServiceID,
			GroupID:     ref.GroupID,
			MemberCount: g.MemberCount(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveMembership returns the caller's membership for serviceID together
// with its refreshed group. CodeNotSubscribed without a membership,
// CodeSubscriptionExpired when the group is no longer active.
func (m *Manager) ActiveMembership(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*models.Membership, *models.SubscriptionGroup, error) {
	membership, err := m.store.FindMembership(ctx, principal, serviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotSubscribed, "not subscribed to this service")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	g, err := m.Refresh(ctx, membership.GroupRef())
	if err != nil {
		return nil, nil, err
	}
	if !g.IsActiveAt(requestcontext.Now(ctx)) {
		return membership, g, dErrors.New(dErrors.CodeSubscriptionExpired, "subscription has expired")
	}
	return membership, g, nil
}

func (m *Manager) logAudit(ctx context.Context, event audit.Event) {
	// Non-funds events never fail the caller.
	_ = audit.LogAudit(ctx, m.logger, m.auditPublisher, audit.EventSubscriptionExpired, event)
}

func translateGroupErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "group not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group")
}

var _ Serializer = (*tx.Serializer)(nil)
