// Package cooldown rate-limits proposal creation per proposer, across every
// service and group. A proposer may propose again only once the clock is
// strictly past the previous proposal time plus the window.
package cooldown

import (
	"context"
	"sync"
	"time"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
)

// DefaultWindow is the rolling cooldown between proposals.
const DefaultWindow = 12 * time.Hour

// InMemoryStore keeps the last proposal time per proposer.
type InMemoryStore struct {
	mu     sync.Mutex
	window time.Duration
	last   map[id.PrincipalID]time.Time
}

func NewInMemoryStore(window time.Duration) *InMemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemoryStore{window: window, last: make(map[id.PrincipalID]time.Time)}
}

// Acquire records now as the proposer's last proposal time, or returns
// CodeCooldownActive if the window has not yet passed.
func (s *InMemoryStore) Acquire(_ context.Context, proposer id.PrincipalID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[proposer]; ok {
		if err := check(last, now, s.window); err != nil {
			return err
		}
	}
	s.last[proposer] = now
	return nil
}

// Release undoes an Acquire made at now, leaving any later one alone.
func (s *InMemoryStore) Release(_ context.Context, proposer id.PrincipalID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[proposer]; ok && last.Equal(now) {
		delete(s.last, proposer)
	}
	return nil
}

func check(last, now time.Time, window time.Duration) error {
	until := last.Add(window)
	if now.After(until) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeCooldownActive, "proposal cooldown active until %s", until.UTC().Format(time.RFC3339))
}
