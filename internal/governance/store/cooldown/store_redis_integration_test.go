//go:build integration

package cooldown_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"poolshare/internal/governance/store/cooldown"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *cooldown.RedisStore
	t0    time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = cooldown.NewRedisStore(s.redis.Client, 12*time.Hour)
	s.t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestStrictWindow() {
	ctx := context.Background()
	p := id.NewPrincipalID()

	s.Require().NoError(s.store.Acquire(ctx, p, s.t0))
	err := s.store.Acquire(ctx, p, s.t0.Add(12*time.Hour))
	s.True(dErrors.HasCode(err, dErrors.CodeCooldownActive))
	s.NoError(s.store.Acquire(ctx, p, s.t0.Add(12*time.Hour+time.Nanosecond)))
}

func (s *RedisStoreSuite) TestReleaseMatchesAcquire() {
	ctx := context.Background()
	p := id.NewPrincipalID()

	s.Require().NoError(s.store.Acquire(ctx, p, s.t0))
	s.Require().NoError(s.store.Release(ctx, p, s.t0.Add(time.Second)))
	s.Error(s.store.Acquire(ctx, p, s.t0.Add(time.Minute)))

	s.Require().NoError(s.store.Release(ctx, p, s.t0))
	s.NoError(s.store.Acquire(ctx, p, s.t0.Add(time.Minute)))
}

func (s *RedisStoreSuite) TestSharedAcrossInstances() {
	ctx := context.Background()
	p := id.NewPrincipalID()
	other := cooldown.NewRedisStore(s.redis.Client, 12*time.Hour)

	s.Require().NoError(s.store.Acquire(ctx, p, s.t0))
	err := other.Acquire(ctx, p, s.t0.Add(time.Hour))
	s.True(dErrors.HasCode(err, dErrors.CodeCooldownActive))
}

func (s *RedisStoreSuite) TestConcurrentReplicasAdmitOneProposal() {
	ctx := context.Background()
	p := id.NewPrincipalID()
	s.Require().NoError(s.store.Acquire(ctx, p, s.t0))

	// Every replica sees the first window as passed; only one may start the next.
	next := s.t0.Add(12*time.Hour + time.Minute)
	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := range 16 {
		replica := cooldown.NewRedisStore(s.redis.Client, 12*time.Hour)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := replica.Acquire(ctx, p, next.Add(time.Duration(i)*time.Millisecond))
			switch {
			case err == nil:
				admitted.Add(1)
			case dErrors.HasCode(err, dErrors.CodeCooldownActive):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), admitted.Load())
	s.Equal(int32(15), rejected.Load())
}
