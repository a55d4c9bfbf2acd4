// Package service is the credential vault: one encrypted blob per member per
// group, sealed off-ledger to the member's registered public key.
//
// Writes come only from the administrator and only for members whose group is
// active and who have registered a key. Reads come only from the member
// themself and re-check the group's lifecycle first.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/authz"
	"poolshare/pkg/platform/sentinel"
	"poolshare/pkg/requestcontext"
)

// MaxCredentialSize bounds a stored blob.
const MaxCredentialSize = 64 << 10

type Store interface {
	FindPrincipal(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	SetPublicKey(ctx context.Context, principalID id.PrincipalID, key string) error
	PutCredential(ctx context.Context, ref id.GroupRef, principalID id.PrincipalID, blob []byte, now time.Time) error
	FindCredential(ctx context.Context, ref id.GroupRef, principalID id.PrincipalID) (*models.Credential, error)
}

type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Lifecycle interface {
	ActiveMembership(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*models.Membership, *models.SubscriptionGroup, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Credentials is what a member reads back. Blob is empty when nothing has
// been stored yet.
type Credentials struct {
	ServiceID id.ServiceID `json:"service_id"`
	GroupID   id.GroupID   `json:"group_id"`
	Blob      []byte       `json:"blob"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

type Service struct {
	store          Store
	tx             Serializer
	lifecycle      Lifecycle
	admin          id.PrincipalID
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

func New(store Store, serializer Serializer, lifecycle Lifecycle, admin id.PrincipalID, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("vault store is required")
	case serializer == nil:
		return nil, errors.New("serializer is required")
	case lifecycle == nil:
		return nil, errors.New("lifecycle manager is required")
	}
	s := &Service{store: store, tx: serializer, lifecycle: lifecycle, admin: admin}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterPublicKey sets the caller's key, replacing any earlier one.
func (s *Service) RegisterPublicKey(ctx context.Context, caller id.PrincipalID, key string) error {
	if err := authz.RequireCaller(caller); err != nil {
		return err
	}
	key, err := models.ValidatePublicKey(key)
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SetPublicKey(ctx, caller, key); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store public key")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventPublicKeyRegistered, audit.Event{PrincipalID: caller})
	return nil
}

// PublicKey returns principal's registered key so the administrator can seal
// credentials to it.
func (s *Service) PublicKey(ctx context.Context, principal id.PrincipalID) (string, error) {
	p, err := s.store.FindPrincipal(ctx, principal)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	if p == nil || !p.HasPublicKey() {
		return "", dErrors.New(dErrors.CodeMissingPublicKey, "principal has no registered public key")
	}
	return p.PublicKey, nil
}

// StoreCredentials saves blob for principal's group of serviceID.
func (s *Service) StoreCredentials(ctx context.Context, operator, principal id.PrincipalID, serviceID id.ServiceID, blob []byte) error {
	if err := authz.RequireAdmin(operator, s.admin); err != nil {
		return err
	}
	if len(blob) > MaxCredentialSize {
		return dErrors.New(dErrors.CodeValidation, "credential blob is too large")
	}

	var ref id.GroupRef
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		membership, _, err := s.lifecycle.ActiveMembership(ctx, principal, serviceID)
		if err != nil {
			return err
		}
		if _, err := s.PublicKey(ctx, principal); err != nil {
			return err
		}
		ref = membership.GroupRef()
		if err := s.store.PutCredential(ctx, ref, principal, blob, requestcontext.Now(ctx)); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeNotSubscribed, "principal is not an active member")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credentials")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, audit.EventCredentialsUpdated, audit.Event{
		PrincipalID: principal,
		ActorID:     operator.String(),
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
	})
	return nil
}

// GetCredentials returns the caller's own blob for serviceID. An expired
// group is demoted on the way and the read is refused.
func (s *Service) GetCredentials(ctx context.Context, caller, principal id.PrincipalID, serviceID id.ServiceID) (*Credentials, error) {
	if err := authz.RequireSelf(caller, principal); err != nil {
		return nil, err
	}
	membership, _, err := s.lifecycle.ActiveMembership(ctx, principal, serviceID)
	if err != nil {
		return nil, err
	}
	ref := membership.GroupRef()
	out := &Credentials{ServiceID: ref.ServiceID, GroupID: ref.GroupID, Blob: []byte{}}

	c, err := s.store.FindCredential(ctx, ref, principal)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return out, nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credentials")
	}
	out.Blob = c.Blob
	out.UpdatedAt = &c.UpdatedAt
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	_ = audit.LogAudit(ctx, s.logger, s.auditPublisher, action, event)
}
