package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"poolshare/internal/ledger/store"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/audit/publisher"
	auditmemory "poolshare/pkg/platform/audit/store/memory"
	"poolshare/pkg/platform/tx"
	"poolshare/pkg/testutil"
)

// =============================================================================
// Catalog Service Test Suite
// =============================================================================

type CatalogServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	events  *auditmemory.InMemoryStore
	service *Service
	admin   id.PrincipalID
	ctx     context.Context
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.store = store.New("usd")
	s.events = auditmemory.NewInMemoryStore()
	s.admin = id.NewPrincipalID()
	s.ctx = testutil.CallerContext(s.admin, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	var err error
	s.service, err = New(s.store, tx.NewSerializer(), s.admin,
		WithAuditPublisher(publisher.NewPublisher(s.events)),
		WithDefaultCapacity(4),
	)
	s.Require().NoError(err)
}

func (s *CatalogServiceSuite) addNetflix() {
	_, err := s.service.AddService(s.ctx, s.admin, AddServiceRequest{ID: "netflix", Symbol: "NFLX", TotalCost: 1599, Capacity: 5})
	s.Require().NoError(err)
}

// =============================================================================
// AddService
// =============================================================================

func (s *CatalogServiceSuite) TestAddService() {
	s.Run("administrator adds a service", func() {
		svc, err := s.service.AddService(s.ctx, s.admin, AddServiceRequest{ID: " Spotify ", Symbol: "SPOT", TotalCost: 1099})
		s.Require().NoError(err)
		s.Equal(id.ServiceID("spotify"), svc.ID)
		s.Equal(4, svc.Capacity, "zero capacity takes the default")
		s.Equal(int64(1099), svc.TotalCost.Amount)
		s.Len(s.events.ListByAction(s.ctx, audit.EventServiceAdded), 1)
	})

	s.Run("non-admin is forbidden", func() {
		_, err := s.service.AddService(s.ctx, id.NewPrincipalID(), AddServiceRequest{ID: "hulu", Symbol: "HULU", TotalCost: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("duplicate is a conflict", func() {
		_, err := s.service.AddService(s.ctx, s.admin, AddServiceRequest{ID: "spotify", Symbol: "SPOT", TotalCost: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid input", func() {
		_, err := s.service.AddService(s.ctx, s.admin, AddServiceRequest{ID: "bad id!", Symbol: "X", TotalCost: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.AddService(s.ctx, s.admin, AddServiceRequest{ID: "neg", Symbol: "X", TotalCost: -5})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.AddService(s.ctx, s.admin, AddServiceRequest{ID: "cap", Symbol: "X", TotalCost: 5, Capacity: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Updates
// =============================================================================

func (s *CatalogServiceSuite) TestUpdates() {
	s.addNetflix()

	s.Run("cost update", func() {
		svc, err := s.service.UpdateServiceCost(s.ctx, s.admin, "netflix", 1799)
		s.Require().NoError(err)
		s.Equal(int64(1799), svc.TotalCost.Amount)
	})

	s.Run("capacity update", func() {
		svc, err := s.service.UpdateCapacity(s.ctx, s.admin, "netflix", 3)
		s.Require().NoError(err)
		s.Equal(3, svc.Capacity)
	})

	s.Run("unknown service", func() {
		_, err := s.service.UpdateServiceCost(s.ctx, s.admin, "nope", 1)
		s.True(dErrors.HasCode(err, dErrors.CodeServiceNotFound))
		_, err = s.service.UpdateCapacity(s.ctx, s.admin, "nope", 2)
		s.True(dErrors.HasCode(err, dErrors.CodeServiceNotFound))
	})

	s.Run("non-admin", func() {
		_, err := s.service.UpdateCapacity(s.ctx, id.NewPrincipalID(), "netflix", 2)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("invalid values", func() {
		_, err := s.service.UpdateServiceCost(s.ctx, s.admin, "netflix", -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.UpdateCapacity(s.ctx, s.admin, "netflix", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Reads
// =============================================================================

func (s *CatalogServiceSuite) TestReads() {
	s.addNetflix()

	svc, err := s.service.GetService(s.ctx, "netflix")
	s.Require().NoError(err)
	s.Equal("NFLX", svc.Symbol)

	_, err = s.service.GetService(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeServiceNotFound))

	all, err := s.service.ListServices(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}
