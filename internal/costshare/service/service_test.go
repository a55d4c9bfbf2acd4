package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"poolshare/internal/ledger/models"
	"poolshare/internal/ledger/store"
	"poolshare/internal/lifecycle"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/audit/publisher"
	auditmemory "poolshare/pkg/platform/audit/store/memory"
	"poolshare/pkg/platform/tx"
	"poolshare/pkg/testutil"
)

func TestDivide(t *testing.T) {
	t.Run("ten over three truncates", func(t *testing.T) {
		per, rem, err := Divide(money.New(10, "usd"), 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), per.Amount)
		assert.Equal(t, int64(1), rem.Amount)
	})

	t.Run("rounding loss is bounded by member count", func(t *testing.T) {
		for _, total := range []int64{0, 1, 7, 1499, 1500, 99991} {
			for members := 1; members <= 7; members++ {
				per, rem, err := Divide(money.New(total, "usd"), members)
				require.NoError(t, err)
				diff := total - per.Amount*int64(members)
				assert.Equal(t, rem.Amount, diff)
				assert.LessOrEqual(t, diff, int64(members-1))
				assert.GreaterOrEqual(t, diff, int64(0))
			}
		}
	})

	t.Run("empty group is an invariant violation", func(t *testing.T) {
		_, _, err := Divide(money.New(10, "usd"), 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("negative total is rejected", func(t *testing.T) {
		_, _, err := Divide(money.New(-1, "usd"), 2)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// CostPerMember
// =============================================================================

type CostShareSuite struct {
	suite.Suite
	store   *store.InMemory
	events  *auditmemory.InMemoryStore
	service *Service
	t0      time.Time
	group   id.GroupRef
}

func TestCostShareSuite(t *testing.T) {
	suite.Run(t, new(CostShareSuite))
}

func (s *CostShareSuite) SetupTest() {
	s.t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.store = store.New("usd")
	s.events = auditmemory.NewInMemoryStore()
	lc, err := lifecycle.New(s.store, tx.NewSerializer())
	s.Require().NoError(err)
	s.service, err = New(s.store, lc, WithAuditPublisher(publisher.NewPublisher(s.events)))
	s.Require().NoError(err)

	ctx := context.Background()
	svc, err := models.NewServiceOffering("gym", "GYM", money.New(10, "usd"), 5, s.t0)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateService(ctx, svc))
	g, err := s.store.CreateGroup(ctx, "gym", s.t0, 24*time.Hour)
	s.Require().NoError(err)
	s.group = g.Ref()
}

func (s *CostShareSuite) join(n int) {
	for range n {
		_, err := s.store.AddMember(context.Background(), s.group, id.NewPrincipalID(), 5, s.t0)
		s.Require().NoError(err)
	}
}

func (s *CostShareSuite) TestSplitsAndNotifies() {
	s.join(3)
	share, err := s.service.CostPerMember(testutil.CallerContext(id.NewPrincipalID(), s.t0), s.group)
	s.Require().NoError(err)
	s.Equal(int64(3), share.PerMember.Amount)
	s.Equal(int64(1), share.Remainder.Amount)
	s.Equal(3, share.MemberCount)

	events := s.events.ListByAction(context.Background(), audit.EventCostUpdated)
	s.Require().Len(events, 1)
	s.Equal(int64(3), events[0].Amount)
	s.Equal(3, events[0].MemberCount)
}

func (s *CostShareSuite) TestRejections() {
	ctx := testutil.CallerContext(id.NewPrincipalID(), s.t0)

	s.Run("empty group", func() {
		_, err := s.service.CostPerMember(ctx, s.group)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("unknown service", func() {
		_, err := s.service.CostPerMember(ctx, id.GroupRef{ServiceID: "nope", GroupID: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeServiceNotFound))
	})

	s.Run("unknown group", func() {
		_, err := s.service.CostPerMember(ctx, id.GroupRef{ServiceID: "gym", GroupID: 7})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("expired group", func() {
		s.join(1)
		_, err := s.service.CostPerMember(testutil.At(ctx, s.t0.Add(48*time.Hour)), s.group)
		s.True(dErrors.HasCode(err, dErrors.CodeSubscriptionExpired))
	})
}
