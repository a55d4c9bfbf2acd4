// Package service is the fund custodian: it mints credits against payment,
// forwards group costs to the service backend and pays out the treasury.
//
// Every fund-moving entry point runs through the serializer's guarded mode,
// so a collaborator that calls back into any of them with the context it was
// handed is rejected with CodeReentrantCall. Ledger effects are committed
// before the external call is made; when the call fails the effects are
// undone explicitly rather than retried.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"poolshare/internal/backend"
	"poolshare/internal/custody/metrics"
	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/authz"
	"poolshare/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=../mocks/mocks.go -package=mocks Backend,Transferer

type Store interface {
	FindPrincipal(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	Credit(ctx context.Context, principalID id.PrincipalID, amount uint64) (uint64, error)
	Debit(ctx context.Context, principalID id.PrincipalID, amount uint64) (uint64, error)
	Treasury(ctx context.Context) (money.Money, error)
	AddToTreasury(ctx context.Context, amount money.Money) (money.Money, error)
	DrainTreasury(ctx context.Context) (money.Money, error)
	TakeFromTreasury(ctx context.Context, amount money.Money) (money.Money, error)
}

type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	RunGuarded(ctx context.Context, fn func(ctx context.Context) error) error
}

// Backend is the upstream service provider.
type Backend interface {
	PayService(ctx context.Context, p backend.Payment) error
	CancelAccess(ctx context.Context, c backend.Cancellation) error
}

// Transferer moves value out of custody to a principal.
type Transferer interface {
	Transfer(ctx context.Context, to id.PrincipalID, amount money.Money) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the economic policy.
type Config struct {
	Admin     id.PrincipalID
	UnitPrice money.Money
}

// Purchase is the outcome of BuyCredits.
type Purchase struct {
	Credits uint64      `json:"credits"`
	Balance uint64      `json:"balance"`
	Price   money.Money `json:"price"`
	Refund  money.Money `json:"refund"`
}

type Service struct {
	store          Store
	tx             Serializer
	backend        Backend
	transferer     Transferer
	cfg            Config
	tracer         trace.Tracer
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

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(store Store, serializer Serializer, be Backend, transferer Transferer, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("custody store is required")
	case serializer == nil:
		return nil, errors.New("serializer is required")
	case be == nil:
		return nil, errors.New("service backend is required")
	case transferer == nil:
		return nil, errors.New("transferer is required")
	case cfg.UnitPrice.Amount <= 0 || cfg.UnitPrice.Currency == "":
		return nil, errors.New("credit unit price must be positive")
	}
	s := &Service{
		store:      store,
		tx:         serializer,
		backend:    be,
		transferer: transferer,
		cfg:        cfg,
		tracer:     otel.Tracer("poolshare/custody"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UnitPrice is the price of one credit.
func (s *Service) UnitPrice() money.Money {
	return s.cfg.UnitPrice
}

// BuyCredits mints amount credits for principal. payment must cover
// amount*UnitPrice; the treasury keeps exactly the price and any excess is
// refunded to the principal once the credits and treasury are committed. A
// failed refund reverts the purchase.
func (s *Service) BuyCredits(ctx context.Context, principal id.PrincipalID, amount uint64, payment money.Money) (*Purchase, error) {
	ctx, span := s.tracer.Start(ctx, "custody.BuyCredits", trace.WithAttributes(
		attribute.String("principal_id", principal.String()),
		attribute.Int64("credits", int64(min(amount, math.MaxInt64))),
		attribute.Int64("payment", payment.Amount),
	))
	defer span.End()

	price, err := s.price(principal, amount, payment)
	if err != nil {
		return nil, s.fail(span, err)
	}
	refund := payment.Subtract(price)

	var out *Purchase
	err = s.tx.RunGuarded(ctx, func(ctx context.Context) error {
		balance, err := s.store.Credit(ctx, principal, amount)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit balance")
		}
		treasury, err := s.store.AddToTreasury(ctx, price)
		if err != nil {
			s.undoCredit(ctx, principal, amount)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deposit payment")
		}

		if err := audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventCreditsPurchased, audit.Event{
			PrincipalID: principal,
			Amount:      price.Amount,
			Detail:      fmt.Sprintf("%d credits", amount),
		}); err != nil {
			s.undoPurchase(ctx, principal, amount, price)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record purchase")
		}

		if !refund.IsZero() {
			if err := s.transferer.Transfer(ctx, principal, refund); err != nil {
				s.undoPurchase(ctx, principal, amount, price)
				if dErrors.HasCode(err, dErrors.CodeReentrantCall) {
					return err
				}
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "refund failed; purchase reverted")
			}
			_ = audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRefundIssued, audit.Event{
				PrincipalID: principal,
				Amount:      refund.Amount,
			})
		}

		s.metrics.SetTreasury(treasury.Amount)
		out = &Purchase{Credits: amount, Balance: balance, Price: price, Refund: refund}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.ObservePurchase(amount, price.Amount)
	return out, nil
}

// Withdraw pays the whole treasury to the administrator. The treasury is
// zeroed before the transfer is issued.
func (s *Service) Withdraw(ctx context.Context, caller id.PrincipalID) (money.Money, error) {
	ctx, span := s.tracer.Start(ctx, "custody.Withdraw")
	defer span.End()

	if err := authz.RequireAdmin(caller, s.cfg.Admin); err != nil {
		return money.Money{}, s.fail(span, err)
	}

	var out money.Money
	err := s.tx.RunGuarded(ctx, func(ctx context.Context) error {
		prior, err := s.store.DrainTreasury(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to drain treasury")
		}
		out = prior
		if prior.IsZero() {
			return nil
		}

		if err := audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventWithdrawal, audit.Event{
			PrincipalID: caller,
			Amount:      prior.Amount,
		}); err != nil {
			s.restoreTreasury(ctx, prior, "withdraw")
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record withdrawal")
		}

		if err := s.transferer.Transfer(ctx, caller, prior); err != nil {
			s.restoreTreasury(ctx, prior, "withdraw")
			if dErrors.HasCode(err, dErrors.CodeReentrantCall) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "withdrawal transfer failed; treasury restored")
		}
		s.metrics.SetTreasury(0)
		return nil
	})
	if err != nil {
		return money.Money{}, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("amount", out.Amount))
	s.metrics.IncrementWithdrawals()
	return out, nil
}

// PayService forwards a group's full recurring cost from the treasury to the
// backend on behalf of payer. The cost leaves the treasury before the backend
// is called and is put back if the call fails. The caller has already
// committed the group change the payment is for and undoes it if this
// returns an error.
func (s *Service) PayService(ctx context.Context, group id.GroupRef, payer id.PrincipalID, cost money.Money) error {
	ctx, span := s.tracer.Start(ctx, "custody.PayService", trace.WithAttributes(
		attribute.String("group", group.String()),
		attribute.Int64("amount", cost.Amount),
	))
	defer span.End()

	err := s.tx.RunGuarded(ctx, func(ctx context.Context) error {
		if cost.IsZero() {
			return nil
		}
		remaining, err := s.store.TakeFromTreasury(ctx, cost)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.Newf(dErrors.CodeInsufficientBalance, "treasury cannot cover service cost of %s", cost)
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.Newf(dErrors.CodeValidation, "service cost must be in %s", s.cfg.UnitPrice.Currency)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit treasury")
		}
		if err := audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventServicePaid, audit.Event{
			PrincipalID: payer,
			ServiceID:   group.ServiceID,
			GroupID:     group.GroupID,
			Amount:      cost.Amount,
		}); err != nil {
			s.restoreTreasury(ctx, cost, "pay_service")
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record service payment")
		}
		if err := s.backend.PayService(ctx, backend.Payment{Group: group, Payer: payer, Amount: cost}); err != nil {
			s.restoreTreasury(ctx, cost, "pay_service")
			if dErrors.CodeOf(err) == dErrors.CodeInternal {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "service backend payment failed")
			}
			return err
		}
		s.metrics.SetTreasury(remaining.Amount)
		return nil
	})
	if err != nil {
		return s.fail(span, err)
	}
	s.metrics.IncrementServicePayments()
	return nil
}

// CancelAccess tells the backend that principal no longer belongs to group.
// It moves no funds and is not guarded.
func (s *Service) CancelAccess(ctx context.Context, group id.GroupRef, principal id.PrincipalID) error {
	ctx, span := s.tracer.Start(ctx, "custody.CancelAccess", trace.WithAttributes(
		attribute.String("group", group.String()),
	))
	defer span.End()

	if err := s.backend.CancelAccess(ctx, backend.Cancellation{Group: group, Principal: principal}); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// Balance returns principal's credits; unknown principals hold zero.
func (s *Service) Balance(ctx context.Context, principal id.PrincipalID) (uint64, error) {
	p, err := s.store.FindPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return p.Balance, nil
}

// Treasury returns the custodian's holdings. Administrator only.
func (s *Service) Treasury(ctx context.Context, caller id.PrincipalID) (money.Money, error) {
	if err := authz.RequireAdmin(caller, s.cfg.Admin); err != nil {
		return money.Money{}, err
	}
	t, err := s.store.Treasury(ctx)
	if err != nil {
		return money.Money{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load treasury")
	}
	return t, nil
}

func (s *Service) price(principal id.PrincipalID, amount uint64, payment money.Money) (money.Money, error) {
	if err := authz.RequireCaller(principal); err != nil {
		return money.Money{}, err
	}
	if amount == 0 {
		return money.Money{}, dErrors.New(dErrors.CodeValidation, "amount must be at least 1 credit")
	}
	if amount > uint64(math.MaxInt64/s.cfg.UnitPrice.Amount) {
		return money.Money{}, dErrors.New(dErrors.CodeValidation, "amount is too large")
	}
	if payment.IsNegative() {
		return money.Money{}, dErrors.New(dErrors.CodeValidation, "payment cannot be negative")
	}
	if !payment.SameCurrency(s.cfg.UnitPrice) {
		return money.Money{}, dErrors.Newf(dErrors.CodeValidation, "payment must be in %s", s.cfg.UnitPrice.Currency)
	}
	price := s.cfg.UnitPrice.Multiply(int64(amount))
	if payment.LessThan(price) {
		return money.Money{}, dErrors.Newf(dErrors.CodeInsufficientPayment, "payment of %s does not cover %s", payment, price)
	}
	return price, nil
}

func (s *Service) undoPurchase(ctx context.Context, principal id.PrincipalID, amount uint64, price money.Money) {
	s.undoCredit(ctx, principal, amount)
	if _, err := s.store.TakeFromTreasury(ctx, price); err != nil {
		s.logger.ErrorContext(ctx, "failed to reverse treasury deposit", "amount", price.Amount, "error", err)
	}
	s.metrics.IncrementCompensation("buy_credits")
}

// undoCredit can fail when a nested unguarded operation already spent the
// credits; the shortfall is logged for reconciliation.
func (s *Service) undoCredit(ctx context.Context, principal id.PrincipalID, amount uint64) {
	if _, err := s.store.Debit(ctx, principal, amount); err != nil {
		s.logger.ErrorContext(ctx, "failed to reverse credit",
			"principal_id", principal.String(),
			"credits", amount,
			"error", err,
		)
	}
}

func (s *Service) restoreTreasury(ctx context.Context, amount money.Money, op string) {
	if _, err := s.store.AddToTreasury(ctx, amount); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore treasury", "amount", amount.Amount, "error", err)
	}
	s.metrics.IncrementCompensation(op)
}

func (s *Service) fail(span trace.Span, err error) error {
	if dErrors.HasCode(err, dErrors.CodeReentrantCall) {
		s.metrics.IncrementReentryRejected()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}
