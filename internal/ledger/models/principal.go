// Package models holds the ledger entities and the invariants each enforces
// on itself. Cross-entity invariants (one membership per service, vault
// gating) are enforced by the store.
package models

import (
	"strings"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
)

// MaxPublicKeyLength bounds registered keys.
const MaxPublicKeyLength = 4096

// Principal is an account holding credit. Created implicitly on first
// credit purchase or key registration; never deleted.
type Principal struct {
	ID        id.PrincipalID `json:"id"`
	Balance   uint64         `json:"balance"`
	PublicKey string         `json:"public_key,omitempty"`
}

func (p *Principal) HasPublicKey() bool {
	return p.PublicKey != ""
}

// CanDebit reports whether amount credits can be spent.
func (p *Principal) CanDebit(amount uint64) error {
	if p.Balance < amount {
		return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient credit balance")
	}
	return nil
}

// ValidatePublicKey trims and checks a key for registration.
func ValidatePublicKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", dErrors.New(dErrors.CodeValidation, "public key cannot be empty")
	}
	if len(key) > MaxPublicKeyLength {
		return "", dErrors.New(dErrors.CodeValidation, "public key is too long")
	}
	return key, nil
}
