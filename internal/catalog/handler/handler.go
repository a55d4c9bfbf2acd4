package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalogService "poolshare/internal/catalog/service"
	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
)

// Service defines the catalog operations the handler needs.
type Service interface {
	AddService(ctx context.Context, caller id.PrincipalID, req catalogService.AddServiceRequest) (*models.ServiceOffering, error)
	UpdateServiceCost(ctx context.Context, caller id.PrincipalID, serviceID id.ServiceID, totalCost int64) (*models.ServiceOffering, error)
	UpdateCapacity(ctx context.Context, caller id.PrincipalID, serviceID id.ServiceID, capacity int) (*models.ServiceOffering, error)
	GetService(ctx context.Context, serviceID id.ServiceID) (*models.ServiceOffering, error)
	ListServices(ctx context.Context) ([]*models.ServiceOffering, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the catalog routes. Callers must already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Get("/services", h.handleList)
	r.Get("/services/{serviceID}", h.handleGet)
	r.Post("/admin/services", h.handleAdd)
	r.Put("/admin/services/{serviceID}/cost", h.handleUpdateCost)
	r.Put("/admin/services/{serviceID}/capacity", h.handleUpdateCapacity)
}

type costRequest struct {
	TotalCost int64 `json:"total_cost"`
}

type capacityRequest struct {
	Capacity int `json:"capacity"`
}

type listResponse struct {
	Services []*models.ServiceOffering `json:"services"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	svcs, err := h.service.ListServices(r.Context())
	if err != nil {
		h.fail(w, r, "list services", err)
		return
	}
	if svcs == nil {
		svcs = []*models.ServiceOffering{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Services: svcs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	svc, err := h.service.GetService(r.Context(), serviceID)
	if err != nil {
		h.fail(w, r, "get service", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, svc)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req catalogService.AddServiceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	svc, err := h.service.AddService(r.Context(), requestcontext.PrincipalID(r.Context()), req)
	if err != nil {
		h.fail(w, r, "add service", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, svc)
}

func (h *Handler) handleUpdateCost(w http.ResponseWriter, r *http.Request) {
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req costRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	svc, err := h.service.UpdateServiceCost(r.Context(), requestcontext.PrincipalID(r.Context()), serviceID, req.TotalCost)
	if err != nil {
		h.fail(w, r, "update service cost", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, svc)
}

func (h *Handler) handleUpdateCapacity(w http.ResponseWriter, r *http.Request) {
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req capacityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	svc, err := h.service.UpdateCapacity(r.Context(), requestcontext.PrincipalID(r.Context()), serviceID, req.Capacity)
	if err != nil {
		h.fail(w, r, "update capacity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, svc)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	httputil.WriteFailure(r.Context(), h.logger, w, op, err)
}
