package service

import (
	"math/rand/v2"
	"sync"

	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
)

// Selector picks the group a new subscriber joins among those with room.
// Candidates are non-empty and in creation order. Selection balances load; it
// is not a security boundary.
type Selector interface {
	Select(serviceID id.ServiceID, candidates []*models.SubscriptionGroup) *models.SubscriptionGroup
}

// RoundRobin cycles through the candidates per service so every eligible
// group keeps receiving members.
type RoundRobin struct {
	mu     sync.Mutex
	cursor map[id.ServiceID]uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{cursor: make(map[id.ServiceID]uint64)}
}

func (r *RoundRobin) Select(serviceID id.ServiceID, candidates []*models.SubscriptionGroup) *models.SubscriptionGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.cursor[serviceID]
	r.cursor[serviceID] = n + 1
	return candidates[n%uint64(len(candidates))]
}

// Random picks uniformly with a PCG generator. A fixed seed makes the
// sequence reproducible; seed 0 draws a random seed.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) Select(_ id.ServiceID, candidates []*models.SubscriptionGroup) *models.SubscriptionGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return candidates[r.rng.IntN(len(candidates))]
}
