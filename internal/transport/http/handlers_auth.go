package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/httputil"
)

//go:generate mockgen -source=handlers_auth.go -destination=mocks/auth-mocks.go -package=mocks TokenIssuer

// TokenIssuer signs bearer tokens for a principal.
type TokenIssuer interface {
	GenerateAccessToken(principal id.PrincipalID, expiresIn time.Duration) (string, error)
}

/*
AuthHandler mints access tokens for operators.

Principals are identified out of band, so there is no login flow: an operator
holding the admin API token asks for a bearer token on behalf of a principal
and hands it over.

	POST /admin/tokens {"principal_id": "..."}

	{
	  "access_token": "eyJ...",
	  "token_type": "Bearer",
	  "expires_in": 3600
	}
*/
type AuthHandler struct {
	issuer TokenIssuer
	ttl    time.Duration
	logger *slog.Logger
}

func NewAuthHandler(issuer TokenIssuer, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{issuer: issuer, ttl: ttl, logger: logger}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/admin/tokens", h.handleMintToken)
}

type mintTokenRequest struct {
	PrincipalID string `json:"principal_id"`
}

type mintTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *AuthHandler) handleMintToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req mintTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.PrincipalID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "principal_id is required"))
		return
	}
	principal, err := id.ParsePrincipalID(req.PrincipalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	token, err := h.issuer.GenerateAccessToken(principal, h.ttl)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "mint token", err)
		return
	}
	h.logger.InfoContext(ctx, "access token minted", "principal_id", principal.String())
	httputil.WriteJSON(w, http.StatusCreated, mintTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.ttl.Seconds()),
	})
}
