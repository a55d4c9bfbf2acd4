package models

import (
	"slices"
	"time"

	id "poolshare/pkg/domain"
)

// SubscriptionGroup is a shared account for one service.
//
// Invariants:
//   - Members holds no duplicates and preserves join order
//   - len(Members) <= capacity at admission time
//   - Active is only trusted together with ExpiresAt; see IsActiveAt
type SubscriptionGroup struct {
	ServiceID id.ServiceID     `json:"service_id"`
	ID        id.GroupID       `json:"id"`
	Active    bool             `json:"active"`
	ExpiresAt time.Time        `json:"expires_at"`
	Members   []id.PrincipalID `json:"members"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewSubscriptionGroup(serviceID id.ServiceID, groupID id.GroupID, now time.Time, duration time.Duration) *SubscriptionGroup {
	return &SubscriptionGroup{
		ServiceID: serviceID,
		ID:        groupID,
		Active:    true,
		ExpiresAt: now.Add(duration),
		CreatedAt: now,
	}
}

func (g *SubscriptionGroup) Ref() id.GroupRef {
	return id.GroupRef{ServiceID: g.ServiceID, GroupID: g.ID}
}

// IsActiveAt recomputes activity. The stored flag alone is never trusted.
func (g *SubscriptionGroup) IsActiveAt(now time.Time) bool {
	return g.Active && !now.After(g.ExpiresAt)
}

// IsStale reports a stored active flag that the clock has already invalidated.
func (g *SubscriptionGroup) IsStale(now time.Time) bool {
	return g.Active && now.After(g.ExpiresAt)
}

func (g *SubscriptionGroup) MemberCount() int {
	return len(g.Members)
}

func (g *SubscriptionGroup) HasMember(p id.PrincipalID) bool {
	return slices.Contains(g.Members, p)
}

// CanAdmit reports whether a new member fits right now.
func (g *SubscriptionGroup) CanAdmit(capacity int, now time.Time) bool {
	return g.IsActiveAt(now) && len(g.Members) < capacity
}

func (g *SubscriptionGroup) ApplyAdd(p id.PrincipalID) {
	g.Members = append(g.Members, p)
}

// ApplyRemove drops p and reports whether it was present.
func (g *SubscriptionGroup) ApplyRemove(p id.PrincipalID) bool {
	i := slices.Index(g.Members, p)
	if i < 0 {
		return false
	}
	g.Members = slices.Delete(g.Members, i, i+1)
	return true
}

// ApplyRenewal extends the group from now and forces it active.
func (g *SubscriptionGroup) ApplyRenewal(now time.Time, duration time.Duration) {
	g.ExpiresAt = now.Add(duration)
	g.Active = true
}

// ApplyExpiry persists an observed expiry.
func (g *SubscriptionGroup) ApplyExpiry() {
	g.Active = false
}

// Clone returns a deep copy.
func (g *SubscriptionGroup) Clone() *SubscriptionGroup {
	c := *g
	c.Members = slices.Clone(g.Members)
	return &c
}
