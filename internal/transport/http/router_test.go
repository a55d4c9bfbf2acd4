package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "poolshare/internal/jwt_token"
	id "poolshare/pkg/domain"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
	"poolshare/pkg/testutil"
)

// whoami echoes the authenticated principal.
type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"principal_id": requestcontext.PrincipalID(r.Context()).String(),
		})
	})
}

type RouterSuite struct {
	suite.Suite
	jwt       *jwttoken.JWTService
	redisDown bool
	router    http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.jwt = jwttoken.NewJWTService("router-test-key", "poolshare", "poolshare-api")
	s.redisDown = false
	s.router = NewRouter(Config{
		Logger:     logger,
		Validator:  jwttoken.NewJWTServiceAdapter(s.jwt),
		AdminToken: "operator-secret",
		Tokens:     NewAuthHandler(s.jwt, time.Hour, logger),
		Checks: map[string]HealthCheck{
			"redis": func(context.Context) error {
				if s.redisDown {
					return errors.New("connection refused")
				}
				return nil
			},
		},
	}, whoami{})
}

func (s *RouterSuite) TestHealth() {
	t := s.T()

	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	s.redisDown = true
	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rr, "status", "degraded")
}

func (s *RouterSuite) TestMetricsArePublic() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *RouterSuite) TestDomainRoutesRequireBearer() {
	t := s.T()
	principal := id.NewPrincipalID()

	s.Run("missing token", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("garbage token", func() {
		req := testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("valid token carries the principal", func() {
		token, err := s.jwt.GenerateAccessToken(principal, time.Hour)
		s.Require().NoError(err)
		req := testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "principal_id", principal.String())
	})
}

func (s *RouterSuite) TestTokenMintingFlow() {
	t := s.T()
	principal := id.NewPrincipalID()

	s.Run("admin token required", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens",
			map[string]any{"principal_id": principal.String()}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("minted token authenticates", func() {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens",
			map[string]any{"principal_id": principal.String()})
		req.Header.Set("X-Admin-Token", "operator-secret")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		minted := testutil.UnmarshalResponse[mintTokenResponse](t, rr)

		req = testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer "+minted.AccessToken)
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "principal_id", principal.String())
	})
}
