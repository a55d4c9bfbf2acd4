package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	vaultService "poolshare/internal/vault/service"
	id "poolshare/pkg/domain"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
)

type Service interface {
	RegisterPublicKey(ctx context.Context, caller id.PrincipalID, key string) error
	PublicKey(ctx context.Context, principal id.PrincipalID) (string, error)
	StoreCredentials(ctx context.Context, operator, principal id.PrincipalID, serviceID id.ServiceID, blob []byte) error
	GetCredentials(ctx context.Context, caller, principal id.PrincipalID, serviceID id.ServiceID) (*vaultService.Credentials, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Put("/keys", h.handleRegisterKey)
	r.Get("/keys/{principalID}", h.handleGetKey)
	r.Get("/credentials/{serviceID}", h.handleGetCredentials)
	r.Put("/admin/credentials/{principalID}/{serviceID}", h.handleStoreCredentials)
}

type keyRequest struct {
	PublicKey string `json:"public_key"`
}

type keyResponse struct {
	PrincipalID id.PrincipalID `json:"principal_id"`
	PublicKey   string         `json:"public_key"`
}

// credentialsRequest carries the sealed blob; JSON encodes it as base64.
type credentialsRequest struct {
	Blob []byte `json:"blob"`
}

func (h *Handler) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req keyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	caller := requestcontext.PrincipalID(ctx)
	if err := h.service.RegisterPublicKey(ctx, caller, req.PublicKey); err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "register public key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	key, err := h.service.PublicKey(ctx, principal)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "get public key", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, keyResponse{PrincipalID: principal, PublicKey: key})
}

// handleGetCredentials reads for the caller unless ?principal_id names
// someone else, which the service refuses.
func (h *Handler) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	caller := requestcontext.PrincipalID(ctx)
	subject := caller
	if raw := r.URL.Query().Get("principal_id"); raw != "" {
		if subject, err = id.ParsePrincipalID(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	creds, err := h.service.GetCredentials(ctx, caller, subject, serviceID)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "get credentials", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, creds)
}

func (h *Handler) handleStoreCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req credentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.StoreCredentials(ctx, requestcontext.PrincipalID(ctx), principal, serviceID, req.Blob); err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "store credentials", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
