// Package store is the single owned instance of ledger state.
//
// Every read returns a copy and every write goes through a method that
// enforces the cross-entity invariants: one membership per (principal,
// service), group capacity at admission, and vault entries only for members
// with a registered key. Services wrap calls in the serializer so a sequence
// of store calls is atomic with respect to other operations.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/sentinel"
)

type membershipKey struct {
	principal id.PrincipalID
	service   id.ServiceID
}

type credentialKey struct {
	group     id.GroupRef
	principal id.PrincipalID
}

// InMemory holds the ledger.
type InMemory struct {
	mu sync.RWMutex

	principals  map[id.PrincipalID]*models.Principal
	services    map[id.ServiceID]*models.ServiceOffering
	groups      map[id.GroupRef]*models.SubscriptionGroup
	groupOrder  map[id.ServiceID][]id.GroupID
	memberships map[membershipKey]*models.Membership
	credentials map[credentialKey]*models.Credential
	proposals   map[id.ProposalRef]*models.Proposal
	proposalSeq map[id.GroupRef]uint64
	treasury    money.Money
}

// New creates an empty ledger whose treasury is held in currency.
func New(currency string) *InMemory {
	return &InMemory{
		principals:  make(map[id.PrincipalID]*models.Principal),
		services:    make(map[id.ServiceID]*models.ServiceOffering),
		groups:      make(map[id.GroupRef]*models.SubscriptionGroup),
		groupOrder:  make(map[id.ServiceID][]id.GroupID),
		memberships: make(map[membershipKey]*models.Membership),
		credentials: make(map[credentialKey]*models.Credential),
		proposals:   make(map[id.ProposalRef]*models.Proposal),
		proposalSeq: make(map[id.GroupRef]uint64),
		treasury:    money.Zero(currency),
	}
}

// -----------------------------------------------------------------------------
// Principals
// -----------------------------------------------------------------------------

func (s *InMemory) FindPrincipal(_ context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, fmt.Errorf("principal %s: %w", principalID, sentinel.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *InMemory) principalLocked(principalID id.PrincipalID) *models.Principal {
	p, ok := s.principals[principalID]
	if !ok {
		p = &models.Principal{ID: principalID}
		s.principals[principalID] = p
	}
	return p
}

// Credit adds amount to the balance, creating the principal if needed.
func (s *InMemory) Credit(_ context.Context, principalID id.PrincipalID, amount uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.principalLocked(principalID)
	p.Balance += amount
	return p.Balance, nil
}

// Debit removes amount from the balance. ErrInvalidState when it would go negative.
func (s *InMemory) Debit(_ context.Context, principalID id.PrincipalID, amount uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok || p.Balance < amount {
		return 0, fmt.Errorf("debit %d from %s: %w", amount, principalID, sentinel.ErrInvalidState)
	}
	p.Balance -= amount
	return p.Balance, nil
}

// SetPublicKey overwrites any prior key, creating the principal if needed.
func (s *InMemory) SetPublicKey(_ context.Context, principalID id.PrincipalID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principalLocked(principalID).PublicKey = key
	return nil
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

func (s *InMemory) CreateService(_ context.Context, svc *models.ServiceOffering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.services[svc.ID]; exists {
		return fmt.Errorf("service %s: %w", svc.ID, sentinel.ErrAlreadyUsed)
	}
	c := *svc
	s.services[svc.ID] = &c
	return nil
}

func (s *InMemory) FindService(_ context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", serviceID, sentinel.ErrNotFound)
	}
	c := *svc
	return &c, nil
}

// ListServices returns every offering ordered by id.
func (s *InMemory) ListServices(_ context.Context) ([]*models.ServiceOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ServiceOffering, 0, len(s.services))
	for _, svc := range s.services {
		c := *svc
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *models.ServiceOffering) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out, nil
}

// ExecuteService runs validate then mutate on the stored offering under the
// write lock and returns the updated copy.
func (s *InMemory) ExecuteService(_ context.Context, serviceID id.ServiceID, validate func(*models.ServiceOffering) error, mutate func(*models.ServiceOffering)) (*models.ServiceOffering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", serviceID, sentinel.ErrNotFound)
	}
	if err := validate(svc); err != nil {
		return nil, err
	}
	mutate(svc)
	c := *svc
	return &c, nil
}

// -----------------------------------------------------------------------------
// Groups and memberships
// -----------------------------------------------------------------------------

// CreateGroup allocates the next group id for the service and stores an
// empty active group expiring after duration.
func (s *InMemory) CreateGroup(_ context.Context, serviceID id.ServiceID, now time.Time, duration time.Duration) (*models.SubscriptionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", serviceID, sentinel.ErrNotFound)
	}
	g := models.NewSubscriptionGroup(serviceID, svc.NextGroupID(), now, duration)
	s.groups[g.Ref()] = g
	s.groupOrder[serviceID] = append(s.groupOrder[serviceID], g.ID)
	return g.Clone(), nil
}

// DeleteGroup removes an empty group. Used to undo a creation whose upfront
// payment failed. The id is not reused.
func (s *InMemory) DeleteGroup(_ context.Context, ref id.GroupRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[ref]
	if !ok {
		return fmt.Errorf("group %s: %w", ref, sentinel.ErrNotFound)
	}
	if len(g.Members) > 0 {
		return fmt.Errorf("group %s has members: %w", ref, sentinel.ErrInvalidState)
	}
	delete(s.groups, ref)
	order := s.groupOrder[ref.ServiceID]
	if i := slices.Index(order, ref.GroupID); i >= 0 {
		s.groupOrder[ref.ServiceID] = slices.Delete(order, i, i+1)
	}
	return nil
}

func (s *InMemory) FindGroup(_ context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[ref]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", ref, sentinel.ErrNotFound)
	}
	return g.Clone(), nil
}

// ListGroups returns the service's groups in creation order.
func (s *InMemory) ListGroups(_ context.Context, serviceID id.ServiceID) ([]*models.SubscriptionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.services[serviceID]; !ok {
		return nil, fmt.Errorf("service %s: %w", serviceID, sentinel.ErrNotFound)
	}
	order := s.groupOrder[serviceID]
	out := make([]*models.SubscriptionGroup, 0, len(order))
	for _, gid := range order {
		out = append(out, s.groups[id.GroupRef{ServiceID: serviceID, GroupID: gid}].Clone())
	}
	return out, nil
}

// ExecuteGroup runs validate then mutate on the stored group under the write lock.
func (s *InMemory) ExecuteGroup(_ context.Context, ref id.GroupRef, validate func(*models.SubscriptionGroup) error, mutate func(*models.SubscriptionGroup)) (*models.SubscriptionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[ref]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", ref, sentinel.ErrNotFound)
	}
	if err := validate(g); err != nil {
		return nil, err
	}
	mutate(g)
	return g.Clone(), nil
}

// AddMember admits principal into the group and records its membership.
// ErrAlreadyUsed if the principal already holds a membership for the service;
// ErrCapacity if the group is full.
func (s *InMemory) AddMember(_ context.Context, ref id.GroupRef, principalID id.PrincipalID, capacity int, now time.Time) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[ref]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", ref, sentinel.ErrNotFound)
	}
	key := membershipKey{principal: principalID, service: ref.ServiceID}
	if _, exists := s.memberships[key]; exists {
		return nil, fmt.Errorf("membership %s/%s: %w", principalID, ref.ServiceID, sentinel.ErrAlreadyUsed)
	}
	if g.MemberCount() >= capacity {
		return nil, fmt.Errorf("group %s: %w", ref, sentinel.ErrCapacity)
	}
	g.ApplyAdd(principalID)
	m := &models.Membership{
		PrincipalID: principalID,
		ServiceID:   ref.ServiceID,
		GroupID:     ref.GroupID,
		JoinedAt:    now,
	}
	s.memberships[key] = m
	c := *m
	return &c, nil
}

// RemoveMember drops principal from the group, deleting its membership record
// and vault entry.
func (s *InMemory) RemoveMember(_ context.Context, ref id.GroupRef, principalID id.PrincipalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[ref]
	if !ok {
		return fmt.Errorf("group %s: %w", ref, sentinel.ErrNotFound)
	}
	if !g.ApplyRemove(principalID) {
		return fmt.Errorf("member %s of %s: %w", principalID, ref, sentinel.ErrNotFound)
	}
	key := membershipKey{principal: principalID, service: ref.ServiceID}
	if m, ok := s.memberships[key]; ok && m.GroupID == ref.GroupID {
		delete(s.memberships, key)
	}
	delete(s.credentials, credentialKey{group: ref, principal: principalID})
	return nil
}

func (s *InMemory) FindMembership(_ context.Context, principalID id.PrincipalID, serviceID id.ServiceID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[membershipKey{principal: principalID, service: serviceID}]
	if !ok {
		return nil, fmt.Errorf("membership %s/%s: %w", principalID, serviceID, sentinel.ErrNotFound)
	}
	c := *m
	return &c, nil
}

// ListMemberships returns every membership the principal holds, ordered by service.
func (s *InMemory) ListMemberships(_ context.Context, principalID id.PrincipalID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Membership
	for key, m := range s.memberships {
		if key.principal == principalID {
			c := *m
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Membership) int {
		return strings.Compare(string(a.ServiceID), string(b.ServiceID))
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Credential vault
// -----------------------------------------------------------------------------

// PutCredential stores blob for a member. ErrInvalidState unless the
// principal's membership points at ref, the group is active at now and the
// principal has a registered public key.
func (s *InMemory) PutCredential(_ context.Context, ref id.GroupRef, principalID id.PrincipalID, blob []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey{principal: principalID, service: ref.ServiceID}]
	if !ok || m.GroupID != ref.GroupID {
		return fmt.Errorf("credential for %s in %s: no membership: %w", principalID, ref, sentinel.ErrInvalidState)
	}
	g, ok := s.groups[ref]
	if !ok || !g.IsActiveAt(now) || !g.HasMember(principalID) {
		return fmt.Errorf("credential for %s in %s: group inactive: %w", principalID, ref, sentinel.ErrInvalidState)
	}
	p, ok := s.principals[principalID]
	if !ok || !p.HasPublicKey() {
		return fmt.Errorf("credential for %s: no public key: %w", principalID, sentinel.ErrInvalidState)
	}
	s.credentials[credentialKey{group: ref, principal: principalID}] = &models.Credential{
		Group:       ref,
		PrincipalID: principalID,
		Blob:        slices.Clone(blob),
		UpdatedAt:   now,
	}
	return nil
}

func (s *InMemory) FindCredential(_ context.Context, ref id.GroupRef, principalID id.PrincipalID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[credentialKey{group: ref, principal: principalID}]
	if !ok {
		return nil, fmt.Errorf("credential for %s in %s: %w", principalID, ref, sentinel.ErrNotFound)
	}
	out := *c
	out.Blob = slices.Clone(c.Blob)
	return &out, nil
}

// -----------------------------------------------------------------------------
// Proposals
// -----------------------------------------------------------------------------

// CreateProposal assigns the next proposal id within the group and stores p.
func (s *InMemory) CreateProposal(_ context.Context, p *models.Proposal) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := p.Ref.GroupRef
	if _, ok := s.groups[group]; !ok {
		return nil, fmt.Errorf("group %s: %w", group, sentinel.ErrNotFound)
	}
	s.proposalSeq[group]++
	stored := p.Clone()
	stored.Ref.ProposalID = id.ProposalID(s.proposalSeq[group])
	s.proposals[stored.Ref] = stored
	return stored.Clone(), nil
}

func (s *InMemory) FindProposal(_ context.Context, ref id.ProposalRef) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[ref]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", ref, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

// ListProposals returns the group's proposals in id order.
func (s *InMemory) ListProposals(_ context.Context, group id.GroupRef) ([]*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Proposal
	for n := uint64(1); n <= s.proposalSeq[group]; n++ {
		if p, ok := s.proposals[id.ProposalRef{GroupRef: group, ProposalID: id.ProposalID(n)}]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// ExecuteProposal runs validate then mutate on the stored proposal under the write lock.
func (s *InMemory) ExecuteProposal(_ context.Context, ref id.ProposalRef, validate func(*models.Proposal) error, mutate func(*models.Proposal)) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[ref]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", ref, sentinel.ErrNotFound)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	return p.Clone(), nil
}

// -----------------------------------------------------------------------------
// Treasury
// -----------------------------------------------------------------------------

func (s *InMemory) Treasury(_ context.Context) (money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury, nil
}

// AddToTreasury deposits amount. ErrConflict on a currency mismatch.
func (s *InMemory) AddToTreasury(_ context.Context, amount money.Money) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.treasury.SameCurrency(amount) {
		return s.treasury, fmt.Errorf("treasury holds %s, got %s: %w", s.treasury.Currency, amount.Currency, sentinel.ErrConflict)
	}
	s.treasury = s.treasury.Add(amount)
	return s.treasury, nil
}

// DrainTreasury zeroes the treasury and returns what it held.
func (s *InMemory) DrainTreasury(_ context.Context) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.treasury
	s.treasury = money.Zero(prior.Currency)
	return prior, nil
}

// TakeFromTreasury removes amount. ErrInvalidState if the treasury is short.
func (s *InMemory) TakeFromTreasury(_ context.Context, amount money.Money) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.treasury.SameCurrency(amount) {
		return s.treasury, fmt.Errorf("treasury holds %s, got %s: %w", s.treasury.Currency, amount.Currency, sentinel.ErrConflict)
	}
	if s.treasury.LessThan(amount) {
		return s.treasury, fmt.Errorf("treasury short of %s: %w", amount, sentinel.ErrInvalidState)
	}
	s.treasury = s.treasury.Subtract(amount)
	return s.treasury, nil
}
