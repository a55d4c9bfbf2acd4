package models

import (
	"strings"
	"time"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
)

const (
	DefaultCapacity = 5
	MaxCapacity     = 1000
	maxSymbolLength = 16
)

// ServiceOffering is a subscribable service. Cost and capacity are mutable by
// the administrator; offerings are never deleted.
//
// Invariants:
//   - Symbol is non-empty and at most 16 characters
//   - TotalCost is non-negative
//   - 1 <= Capacity <= MaxCapacity
//   - GroupCount only grows; group ids are never reused
type ServiceOffering struct {
	ID         id.ServiceID `json:"id"`
	Symbol     string       `json:"symbol"`
	TotalCost  money.Money  `json:"total_cost"`
	Capacity   int          `json:"capacity"`
	GroupCount uint64       `json:"group_count"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func NewServiceOffering(serviceID id.ServiceID, symbol string, totalCost money.Money, capacity int, now time.Time) (*ServiceOffering, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "symbol cannot be empty")
	}
	if len(symbol) > maxSymbolLength {
		return nil, dErrors.New(dErrors.CodeValidation, "symbol must be 16 characters or less")
	}
	if err := ValidateCost(totalCost); err != nil {
		return nil, err
	}
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	return &ServiceOffering{
		ID:        serviceID,
		Symbol:    symbol,
		TotalCost: totalCost,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func ValidateCost(cost money.Money) error {
	if cost.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "total cost cannot be negative")
	}
	if cost.Currency == "" {
		return dErrors.New(dErrors.CodeValidation, "currency is required")
	}
	return nil
}

func ValidateCapacity(capacity int) error {
	if capacity < 1 || capacity > MaxCapacity {
		return dErrors.Newf(dErrors.CodeValidation, "capacity must be between 1 and %d", MaxCapacity)
	}
	return nil
}

// NextGroupID reserves the next group id.
func (s *ServiceOffering) NextGroupID() id.GroupID {
	s.GroupCount++
	return id.GroupID(s.GroupCount)
}

func (s *ServiceOffering) ApplyCost(cost money.Money, now time.Time) {
	s.TotalCost = cost
	s.UpdatedAt = now
}

// ApplyCapacity changes the bound for future admissions. Groups already above
// a lowered capacity keep their members but admit nobody new.
func (s *ServiceOffering) ApplyCapacity(capacity int, now time.Time) {
	s.Capacity = capacity
	s.UpdatedAt = now
}
