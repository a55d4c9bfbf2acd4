package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	catalogService "poolshare/internal/catalog/service"
	"poolshare/internal/ledger/store"
	id "poolshare/pkg/domain"
	"poolshare/pkg/platform/tx"
	"poolshare/pkg/requestcontext"
	"poolshare/pkg/testutil"
)

type CatalogHandlerSuite struct {
	suite.Suite
	router http.Handler
	admin  id.PrincipalID
}

func TestCatalogHandlerSuite(t *testing.T) {
	suite.Run(t, new(CatalogHandlerSuite))
}

func (s *CatalogHandlerSuite) SetupTest() {
	s.admin = id.NewPrincipalID()
	svc, err := catalogService.New(store.New("usd"), tx.NewSerializer(), s.admin)
	require.NoError(s.T(), err)

	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *CatalogHandlerSuite) as(req *http.Request, principal id.PrincipalID) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return testutil.WithPrincipal(req.WithContext(ctx), principal.String())
}

func (s *CatalogHandlerSuite) TestAddAndRead() {
	t := s.T()

	s.Run("admin creates a service", func() {
		req := s.as(testutil.NewJSONRequest(t, http.MethodPost, "/admin/services",
			map[string]any{"id": "netflix", "symbol": "NFLX", "total_cost": 1500, "capacity": 3}), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "id", "netflix")
	})

	s.Run("duplicate is a conflict", func() {
		req := s.as(testutil.NewJSONRequest(t, http.MethodPost, "/admin/services",
			map[string]any{"id": "netflix", "symbol": "NFLX", "total_cost": 1500}), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	s.Run("member cannot administer", func() {
		req := s.as(testutil.NewJSONRequest(t, http.MethodPut, "/admin/services/netflix/cost",
			map[string]any{"total_cost": 1}), id.NewPrincipalID())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	s.Run("unknown fields are rejected", func() {
		req := s.as(testutil.NewRequestWithBody(t, http.MethodPut, "/admin/services/netflix/capacity",
			`{"capacity":4,"surprise":true}`), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("capacity update", func() {
		req := s.as(testutil.NewJSONRequest(t, http.MethodPut, "/admin/services/netflix/capacity",
			map[string]any{"capacity": 4}), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "capacity", float64(4))
	})

	s.Run("get and list", func() {
		rr := testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/services/netflix"), s.admin))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "symbol", "NFLX")

		rr = testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/services"), s.admin))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONHasKey(t, rr, "services")

		rr = testutil.DoRequest(s.router, s.as(testutil.NewRequest(t, http.MethodGet, "/services/absent"), s.admin))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "service_not_found")
	})
}
