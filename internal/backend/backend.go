// Package backend talks to the upstream service provider that is paid for
// each group and told when a member loses access.
package backend

import (
	id "poolshare/pkg/domain"
	"poolshare/pkg/money"
)

// Payment forwards a group's full recurring cost to the provider.
type Payment struct {
	Group  id.GroupRef    `json:"-"`
	Payer  id.PrincipalID `json:"payer"`
	Amount money.Money    `json:"amount"`
}

// Cancellation revokes one member's access to a group's account.
type Cancellation struct {
	Group     id.GroupRef    `json:"-"`
	Principal id.PrincipalID `json:"principal_id"`
}

type paymentBody struct {
	ServiceID string `json:"service_id"`
	GroupID   uint64 `json:"group_id"`
	Payment
}

type cancellationBody struct {
	ServiceID string `json:"service_id"`
	GroupID   uint64 `json:"group_id"`
	Cancellation
}
