// Package service manages the administrator-owned catalog of subscribable
// services. Offerings are never deleted; cost and capacity changes apply to
// future payments and admissions only.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"poolshare/internal/catalog/metrics"
	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/authz"
	"poolshare/pkg/platform/sentinel"
	"poolshare/pkg/requestcontext"
)

type Store interface {
	CreateService(ctx context.Context, svc *models.ServiceOffering) error
	FindService(ctx context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error)
	ListServices(ctx context.Context) ([]*models.ServiceOffering, error)
	ExecuteService(ctx context.Context, serviceID id.ServiceID, validate func(*models.ServiceOffering) error, mutate func(*models.ServiceOffering)) (*models.ServiceOffering, error)
}

type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AddServiceRequest describes a new offering. TotalCost is in minimal units
// of the ledger currency; Capacity zero means the configured default.
type AddServiceRequest struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	TotalCost int64  `json:"total_cost"`
	Capacity  int    `json:"capacity"`
}

func (r *AddServiceRequest) Normalize() {
	r.ID = strings.ToLower(strings.TrimSpace(r.ID))
	r.Symbol = strings.TrimSpace(r.Symbol)
}

type Service struct {
	store           Store
	tx              Serializer
	admin           id.PrincipalID
	currency        string
	defaultCapacity int
	logger          *slog.Logger
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
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

// WithDefaultCapacity sets the capacity used when a request leaves it zero.
func WithDefaultCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultCapacity = n
		}
	}
}

// WithCurrency sets the ledger currency costs are denominated in.
func WithCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.currency = strings.ToLower(currency)
		}
	}
}

func New(store Store, serializer Serializer, admin id.PrincipalID, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	if serializer == nil {
		return nil, errors.New("serializer is required")
	}
	s := &Service{
		store:           store,
		tx:              serializer,
		admin:           admin,
		currency:        "usd",
		defaultCapacity: models.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddService registers a new offering. Administrator only.
func (s *Service) AddService(ctx context.Context, caller id.PrincipalID, req AddServiceRequest) (*models.ServiceOffering, error) {
	if err := authz.RequireAdmin(caller, s.admin); err != nil {
		return nil, err
	}
	req.Normalize()
	serviceID, err := id.ParseServiceID(req.ID)
	if err != nil {
		return nil, err
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = s.defaultCapacity
	}

	var out *models.ServiceOffering
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		svc, err := models.NewServiceOffering(serviceID, req.Symbol, money.New(req.TotalCost, s.currency), capacity, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.store.CreateService(ctx, svc); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "service already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create service")
		}
		out = svc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventServiceAdded, caller, out)
	s.metrics.IncrementServicesAdded()
	return out, nil
}

// UpdateServiceCost replaces the total recurring cost. Administrator only.
func (s *Service) UpdateServiceCost(ctx context.Context, caller id.PrincipalID, serviceID id.ServiceID, totalCost int64) (*models.ServiceOffering, error) {
	if err := authz.RequireAdmin(caller, s.admin); err != nil {
		return nil, err
	}
	cost := money.New(totalCost, s.currency)
	if err := models.ValidateCost(cost); err != nil {
		return nil, err
	}
	out, err := s.execute(ctx, serviceID, func(svc *models.ServiceOffering) {
		svc.ApplyCost(cost, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventServiceCostUpdated, caller, out)
	s.metrics.IncrementUpdate("cost")
	return out, nil
}

// UpdateCapacity changes how many members future admissions allow per group.
// Administrator only.
func (s *Service) UpdateCapacity(ctx context.Context, caller id.PrincipalID, serviceID id.ServiceID, capacity int) (*models.ServiceOffering, error) {
	if err := authz.RequireAdmin(caller, s.admin); err != nil {
		return nil, err
	}
	if err := models.ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	out, err := s.execute(ctx, serviceID, func(svc *models.ServiceOffering) {
		svc.ApplyCapacity(capacity, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventCapacityUpdated, caller, out)
	s.metrics.IncrementUpdate("capacity")
	return out, nil
}

func (s *Service) GetService(ctx context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error) {
	svc, err := s.store.FindService(ctx, serviceID)
	if err != nil {
		return nil, translateServiceErr(err)
	}
	return svc, nil
}

func (s *Service) ListServices(ctx context.Context) ([]*models.ServiceOffering, error) {
	svcs, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list services")
	}
	return svcs, nil
}

func (s *Service) execute(ctx context.Context, serviceID id.ServiceID, mutate func(*models.ServiceOffering)) (*models.ServiceOffering, error) {
	var out *models.ServiceOffering
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		svc, err := s.store.ExecuteService(ctx, serviceID, func(*models.ServiceOffering) error { return nil }, mutate)
		if err != nil {
			return translateServiceErr(err)
		}
		out = svc
		return nil
	})
	return out, err
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, caller id.PrincipalID, svc *models.ServiceOffering) {
	_ = audit.LogAudit(ctx, s.logger, s.auditPublisher, action, audit.Event{
		PrincipalID: caller,
		ServiceID:   svc.ID,
		Amount:      svc.TotalCost.Amount,
		MemberCount: svc.Capacity,
	})
}

func translateServiceErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeServiceNotFound, "service not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service")
}
