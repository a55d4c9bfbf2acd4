package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"poolshare/internal/backend"
	"poolshare/internal/custody/mocks"
	"poolshare/internal/ledger/store"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/audit/publisher"
	auditmemory "poolshare/pkg/platform/audit/store/memory"
	"poolshare/pkg/platform/tx"
	"poolshare/pkg/testutil"
)

// =============================================================================
// Custody Service Test Suite
// =============================================================================
// Collaborators are gomock doubles so each case can script what the external
// side does while a fund operation is in flight, including calling back in.

type CustodyServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	backend    *mocks.MockBackend
	transferer *mocks.MockTransferer
	store      *store.InMemory
	events     *auditmemory.InMemoryStore
	service    *Service
	admin      id.PrincipalID
	buyer      id.PrincipalID
	now        time.Time
}

func TestCustodyServiceSuite(t *testing.T) {
	suite.Run(t, new(CustodyServiceSuite))
}

func (s *CustodyServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mocks.NewMockBackend(s.ctrl)
	s.transferer = mocks.NewMockTransferer(s.ctrl)
	s.store = store.New("usd")
	s.events = auditmemory.NewInMemoryStore()
	s.admin = id.NewPrincipalID()
	s.buyer = id.NewPrincipalID()
	s.now = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.store, tx.NewSerializer(), s.backend, s.transferer,
		Config{Admin: s.admin, UnitPrice: money.New(100, "usd")},
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	)
	s.Require().NoError(err)
}

func (s *CustodyServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CustodyServiceSuite) ctx(p id.PrincipalID) context.Context {
	return testutil.CallerContext(p, s.now)
}

func (s *CustodyServiceSuite) usd(n int64) money.Money {
	return money.New(n, "usd")
}

func (s *CustodyServiceSuite) balance(p id.PrincipalID) uint64 {
	b, err := s.service.Balance(context.Background(), p)
	s.Require().NoError(err)
	return b
}

func (s *CustodyServiceSuite) treasury() money.Money {
	t, err := s.service.Treasury(context.Background(), s.admin)
	s.Require().NoError(err)
	return t
}

func (s *CustodyServiceSuite) TestNew() {
	s.Run("rejects missing collaborators", func() {
		_, err := New(nil, tx.NewSerializer(), s.backend, s.transferer, Config{UnitPrice: s.usd(1)})
		s.Error(err)
		_, err = New(s.store, tx.NewSerializer(), nil, s.transferer, Config{UnitPrice: s.usd(1)})
		s.Error(err)
	})
	s.Run("rejects non-positive unit price", func() {
		_, err := New(s.store, tx.NewSerializer(), s.backend, s.transferer, Config{UnitPrice: s.usd(0)})
		s.Error(err)
	})
}

// =============================================================================
// BuyCredits
// =============================================================================

func (s *CustodyServiceSuite) TestBuyCredits() {
	s.Run("exact payment credits the balance", func() {
		p, err := s.service.BuyCredits(s.ctx(s.buyer), s.buyer, 5, s.usd(500))
		s.Require().NoError(err)
		s.Equal(uint64(5), p.Balance)
		s.True(p.Refund.IsZero())
		s.Equal(uint64(5), s.balance(s.buyer))
		s.Equal(s.usd(500), s.treasury())
		s.Len(s.events.ListByAction(context.Background(), audit.EventCreditsPurchased), 1)
	})

	s.Run("insufficient payment leaves the balance unchanged", func() {
		_, err := s.service.BuyCredits(s.ctx(s.buyer), s.buyer, 5, s.usd(499))
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))
		s.Equal(uint64(5), s.balance(s.buyer))
		s.Equal(s.usd(500), s.treasury())
	})

	s.Run("overpayment is refunded after the credit is committed", func() {
		s.transferer.EXPECT().Transfer(gomock.Any(), s.buyer, s.usd(30)).
			DoAndReturn(func(ctx context.Context, _ id.PrincipalID, _ money.Money) error {
				s.Equal(uint64(6), s.balance(s.buyer), "credit is visible to the refund recipient")
				return nil
			})

		p, err := s.service.BuyCredits(s.ctx(s.buyer), s.buyer, 1, s.usd(130))
		s.Require().NoError(err)
		s.Equal(s.usd(30), p.Refund)
		s.Equal(s.usd(600), s.treasury())
		s.Len(s.events.ListByAction(context.Background(), audit.EventRefundIssued), 1)
	})

	s.Run("failed refund reverts the purchase", func() {
		s.transferer.EXPECT().Transfer(gomock.Any(), s.buyer, s.usd(1)).Return(errors.New("bank offline"))

		_, err := s.service.BuyCredits(s.ctx(s.buyer), s.buyer, 2, s.usd(201))
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(uint64(6), s.balance(s.buyer))
		s.Equal(s.usd(600), s.treasury())
	})

	s.Run("invalid requests", func() {
		_, err := s.service.BuyCredits(s.ctx(s.buyer), s.buyer, 0, s.usd(100))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.BuyCredits(s.ctx(s.buyer), s.buyer, 1, money.New(100, "eur"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.BuyCredits(s.ctx(s.buyer), id.PrincipalID{}, 1, s.usd(100))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, err = s.service.BuyCredits(s.ctx(s.buyer), s.buyer, ^uint64(0), s.usd(100))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// The refund recipient is attacker-controlled. It tries to buy again from
// inside the refund with the same context and an overpayment of its own so it
// would be refunded (and could re-enter) again. Only the original purchase may
// mint credits.
func (s *CustodyServiceSuite) TestBuyCredits_ReentrantRefundCannotMint() {
	attacker := id.NewPrincipalID()
	attempts := 0
	var nestedErr error

	s.transferer.EXPECT().Transfer(gomock.Any(), attacker, s.usd(50)).
		DoAndReturn(func(ctx context.Context, _ id.PrincipalID, _ money.Money) error {
			attempts++
			_, nestedErr = s.service.BuyCredits(ctx, attacker, 1, s.usd(150))
			return nil
		}).Times(1)

	_, err := s.service.BuyCredits(s.ctx(attacker), attacker, 1, s.usd(150))
	s.Require().NoError(err)

	stolenCredits := s.balance(attacker)
	s.Equal(uint64(1), stolenCredits)
	s.LessOrEqual(attempts, 1)
	s.True(dErrors.HasCode(nestedErr, dErrors.CodeReentrantCall))
	s.Equal(s.usd(100), s.treasury())
}

// =============================================================================
// Withdraw
// =============================================================================

func (s *CustodyServiceSuite) fundTreasury(credits uint64) {
	_, err := s.service.BuyCredits(s.ctx(s.buyer), s.buyer, credits, s.usd(int64(credits)*100))
	s.Require().NoError(err)
}

func (s *CustodyServiceSuite) TestWithdraw() {
	s.Run("non-admin is forbidden", func() {
		_, err := s.service.Withdraw(s.ctx(s.buyer), s.buyer)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("empty treasury transfers nothing", func() {
		got, err := s.service.Withdraw(s.ctx(s.admin), s.admin)
		s.Require().NoError(err)
		s.True(got.IsZero())
	})

	s.Run("transfers exactly the prior balance and leaves zero", func() {
		s.fundTreasury(7)
		prior := s.treasury()

		s.transferer.EXPECT().Transfer(gomock.Any(), s.admin, prior).
			DoAndReturn(func(ctx context.Context, _ id.PrincipalID, _ money.Money) error {
				s.True(s.treasury().IsZero(), "treasury is zeroed before the transfer")
				return nil
			})

		got, err := s.service.Withdraw(s.ctx(s.admin), s.admin)
		s.Require().NoError(err)
		s.Equal(prior, got)
		s.Equal(int64(0), s.treasury().Amount)
	})

	s.Run("failed transfer restores the treasury", func() {
		s.fundTreasury(2)
		s.transferer.EXPECT().Transfer(gomock.Any(), s.admin, s.usd(200)).Return(errors.New("rejected"))

		_, err := s.service.Withdraw(s.ctx(s.admin), s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(s.usd(200), s.treasury())
	})
}

func (s *CustodyServiceSuite) TestWithdraw_ReentrantDoubleWithdrawRejected() {
	s.fundTreasury(3)
	var nestedErr error
	paid := money.Zero("usd")

	s.transferer.EXPECT().Transfer(gomock.Any(), s.admin, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ id.PrincipalID, amount money.Money) error {
			paid = paid.Add(amount)
			_, nestedErr = s.service.Withdraw(ctx, s.admin)
			return nil
		}).Times(1)

	got, err := s.service.Withdraw(s.ctx(s.admin), s.admin)
	s.Require().NoError(err)
	s.Equal(s.usd(300), got)
	s.Equal(s.usd(300), paid)
	s.True(dErrors.HasCode(nestedErr, dErrors.CodeReentrantCall))
	s.True(s.treasury().IsZero())
}

// =============================================================================
// Service backend
// =============================================================================

func (s *CustodyServiceSuite) TestPayService() {
	ref := id.GroupRef{ServiceID: "netflix", GroupID: 1}

	s.Run("forwards the group cost out of the treasury", func() {
		s.fundTreasury(5)
		s.backend.EXPECT().PayService(gomock.Any(), backend.Payment{Group: ref, Payer: s.buyer, Amount: s.usd(300)}).
			DoAndReturn(func(ctx context.Context, _ backend.Payment) error {
				s.Equal(s.usd(200), s.treasury(), "cost leaves the treasury before the backend is called")
				return nil
			})
		s.Require().NoError(s.service.PayService(s.ctx(s.buyer), ref, s.buyer, s.usd(300)))
		s.Equal(s.usd(200), s.treasury())
		s.Len(s.events.ListByAction(context.Background(), audit.EventServicePaid), 1)
	})

	s.Run("zero cost skips the backend", func() {
		before := s.treasury()
		s.Require().NoError(s.service.PayService(s.ctx(s.buyer), ref, s.buyer, s.usd(0)))
		s.Equal(before, s.treasury())
	})

	s.Run("short treasury is rejected before the backend is called", func() {
		before := s.treasury()
		err := s.service.PayService(s.ctx(s.buyer), ref, s.buyer, before.Add(s.usd(1)))
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		s.Equal(before, s.treasury())
		s.Len(s.events.ListByAction(context.Background(), audit.EventServicePaid), 1, "no payment recorded")
	})

	s.Run("backend failure restores the treasury", func() {
		s.fundTreasury(3)
		before := s.treasury()
		s.backend.EXPECT().PayService(gomock.Any(), gomock.Any()).Return(errors.New("boom"))
		err := s.service.PayService(s.ctx(s.buyer), ref, s.buyer, s.usd(300))
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(before, s.treasury())
	})

	s.Run("backend calling back into a guarded operation is rejected", func() {
		s.fundTreasury(3)
		before := s.treasury()
		var nestedErr error
		s.backend.EXPECT().PayService(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ backend.Payment) error {
				_, nestedErr = s.service.BuyCredits(ctx, s.buyer, 1, s.usd(100))
				return nil
			})
		s.Require().NoError(s.service.PayService(s.ctx(s.buyer), ref, s.buyer, s.usd(300)))
		s.True(dErrors.HasCode(nestedErr, dErrors.CodeReentrantCall))
		s.Equal(before.Subtract(s.usd(300)), s.treasury())
	})
}

func (s *CustodyServiceSuite) TestWithdraw_AfterServicePayment() {
	ref := id.GroupRef{ServiceID: "netflix", GroupID: 1}
	s.fundTreasury(4)
	s.backend.EXPECT().PayService(gomock.Any(), gomock.Any()).Return(nil)
	s.Require().NoError(s.service.PayService(s.ctx(s.buyer), ref, s.buyer, s.usd(300)))

	s.transferer.EXPECT().Transfer(gomock.Any(), s.admin, s.usd(100)).Return(nil)
	got, err := s.service.Withdraw(s.ctx(s.admin), s.admin)
	s.Require().NoError(err)
	s.Equal(s.usd(100), got, "only what the backend was not paid leaves custody")
	s.True(s.treasury().IsZero())
}

func (s *CustodyServiceSuite) TestCancelAccess() {
	ref := id.GroupRef{ServiceID: "netflix", GroupID: 1}
	s.backend.EXPECT().CancelAccess(gomock.Any(), backend.Cancellation{Group: ref, Principal: s.buyer}).Return(nil)
	s.NoError(s.service.CancelAccess(s.ctx(s.admin), ref, s.buyer))
}

func (s *CustodyServiceSuite) TestReads() {
	s.Equal(uint64(0), s.balance(id.NewPrincipalID()), "unknown principals hold nothing")

	_, err := s.service.Treasury(context.Background(), s.buyer)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
