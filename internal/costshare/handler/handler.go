package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	costService "poolshare/internal/costshare/service"
	id "poolshare/pkg/domain"
	"poolshare/pkg/platform/httputil"
)

type Service interface {
	CostPerMember(ctx context.Context, ref id.GroupRef) (*costService.Share, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/services/{serviceID}/groups/{groupID}/cost", h.handleCostPerMember)
}

func (h *Handler) handleCostPerMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	share, err := h.service.CostPerMember(ctx, id.GroupRef{ServiceID: serviceID, GroupID: groupID})
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "cost per member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, share)
}
