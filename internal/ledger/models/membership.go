package models

import (
	"time"

	id "poolshare/pkg/domain"
)

// Membership points a principal at its group for one service. At most one
// exists per (principal, service).
type Membership struct {
	PrincipalID id.PrincipalID `json:"principal_id"`
	ServiceID   id.ServiceID   `json:"service_id"`
	GroupID     id.GroupID     `json:"group_id"`
	JoinedAt    time.Time      `json:"joined_at"`
}

func (m *Membership) GroupRef() id.GroupRef {
	return id.GroupRef{ServiceID: m.ServiceID, GroupID: m.GroupID}
}

// Credential is an encrypted blob sealed to the member's public key. The
// ledger never inspects it.
type Credential struct {
	Group       id.GroupRef    `json:"-"`
	PrincipalID id.PrincipalID `json:"principal_id"`
	Blob        []byte         `json:"blob"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
