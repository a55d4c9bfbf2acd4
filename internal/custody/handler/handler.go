package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	custodyService "poolshare/internal/custody/service"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	BuyCredits(ctx context.Context, principal id.PrincipalID, amount uint64, payment money.Money) (*custodyService.Purchase, error)
	Withdraw(ctx context.Context, caller id.PrincipalID) (money.Money, error)
	Balance(ctx context.Context, principal id.PrincipalID) (uint64, error)
	Treasury(ctx context.Context, caller id.PrincipalID) (money.Money, error)
	UnitPrice() money.Money
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/credits", h.handleBuyCredits)
	r.Get("/credits/balance", h.handleBalance)
	r.Get("/admin/treasury", h.handleTreasury)
	r.Post("/admin/withdraw", h.handleWithdraw)
}

// buyCreditsRequest carries the payment in minimal units of the ledger
// currency; the currency defaults to the unit price's.
type buyCreditsRequest struct {
	Amount   uint64 `json:"amount"`
	Payment  int64  `json:"payment"`
	Currency string `json:"currency,omitempty"`
}

type balanceResponse struct {
	PrincipalID id.PrincipalID `json:"principal_id"`
	Balance     uint64         `json:"balance"`
	UnitPrice   money.Money    `json:"unit_price"`
}

type amountResponse struct {
	Amount money.Money `json:"amount"`
}

func (h *Handler) handleBuyCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req buyCreditsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.service.UnitPrice().Currency
	}
	purchase, err := h.service.BuyCredits(ctx, requestcontext.PrincipalID(ctx), req.Amount, money.New(req.Payment, currency))
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "buy credits", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, purchase)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.PrincipalID(ctx)
	if principal.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	balance, err := h.service.Balance(ctx, principal)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		PrincipalID: principal,
		Balance:     balance,
		UnitPrice:   h.service.UnitPrice(),
	})
}

func (h *Handler) handleTreasury(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.service.Treasury(ctx, requestcontext.PrincipalID(ctx))
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "treasury", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: t})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	amount, err := h.service.Withdraw(ctx, requestcontext.PrincipalID(ctx))
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "withdraw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{Amount: amount})
}
