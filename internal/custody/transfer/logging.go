// Package transfer provides value-transfer implementations for the custodian.
package transfer

import (
	"context"
	"log/slog"
	"sync"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
)

// Logging records transfers and logs them instead of moving real money. It
// backs development deployments where payouts are settled out of band.
type Logging struct {
	mu     sync.Mutex
	logger *slog.Logger
	sent   map[id.PrincipalID]money.Money
}

func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger, sent: make(map[id.PrincipalID]money.Money)}
}

func (l *Logging) Transfer(ctx context.Context, to id.PrincipalID, amount money.Money) error {
	if amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "transfer amount cannot be negative")
	}
	l.mu.Lock()
	total, ok := l.sent[to]
	if !ok {
		total = money.Zero(amount.Currency)
	}
	if !total.SameCurrency(amount) {
		l.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "recipient already paid in another currency")
	}
	l.sent[to] = total.Add(amount)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "transfer settled out of band",
		"recipient", to.String(),
		"amount", amount.Amount,
		"currency", amount.Currency,
	)
	return nil
}

// Sent returns the total transferred to principal.
func (l *Logging) Sent(principal id.PrincipalID) money.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent[principal]
}
