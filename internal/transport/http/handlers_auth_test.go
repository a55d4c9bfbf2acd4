package httptransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"poolshare/internal/transport/http/mocks"
	id "poolshare/pkg/domain"
	"poolshare/pkg/testutil"
)

type AuthHandlerSuite struct {
	suite.Suite
	issuer *mocks.MockTokenIssuer
	router chi.Router
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.issuer = mocks.NewMockTokenIssuer(ctrl)
	s.router = chi.NewRouter()
	NewAuthHandler(s.issuer, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *AuthHandlerSuite) TestMintToken() {
	t := s.T()
	principal := id.NewPrincipalID()

	s.Run("mints a bearer token - 201", func() {
		s.issuer.EXPECT().GenerateAccessToken(principal, time.Hour).Return("signed-token", nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens",
			map[string]any{"principal_id": principal.String()}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[mintTokenResponse](t, rr)
		s.Equal("signed-token", got.AccessToken)
		s.Equal("Bearer", got.TokenType)
		s.Equal(int64(3600), got.ExpiresIn)
	})

	s.Run("missing principal - 400", func() {
		s.issuer.EXPECT().GenerateAccessToken(gomock.Any(), gomock.Any()).Times(0)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed principal - 400", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens",
			map[string]any{"principal_id": "someone"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("signing failure does not leak - 500", func() {
		s.issuer.EXPECT().GenerateAccessToken(principal, time.Hour).Return("", errors.New("key unavailable"))
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens",
			map[string]any{"principal_id": principal.String()}))
		testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
		s.NotContains(rr.Body.String(), "key unavailable")
	})
}
