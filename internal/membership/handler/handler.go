package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"poolshare/internal/ledger/models"
	membershipService "poolshare/internal/membership/service"
	id "poolshare/pkg/domain"
	"poolshare/pkg/platform/authz"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
)

// Service defines the membership operations the handler needs.
type Service interface {
	Subscribe(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*membershipService.Subscription, error)
	RenewSubscription(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*models.SubscriptionGroup, error)
	CancelSubscription(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) error
	GetMembership(ctx context.Context, principal id.PrincipalID, serviceID id.ServiceID) (*membershipService.Subscription, error)
	ListMemberships(ctx context.Context, principal id.PrincipalID) ([]*models.Membership, error)
	GetGroup(ctx context.Context, ref id.GroupRef) (*models.SubscriptionGroup, error)
	ListGroups(ctx context.Context, serviceID id.ServiceID) ([]*models.SubscriptionGroup, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/subscriptions", h.handleSubscribe)
	r.Get("/subscriptions", h.handleListMemberships)
	r.Get("/subscriptions/{serviceID}", h.handleGetMembership)
	r.Post("/subscriptions/{serviceID}/renew", h.handleRenew)
	r.Delete("/subscriptions/{serviceID}", h.handleCancel)
	r.Get("/services/{serviceID}/groups", h.handleListGroups)
	r.Get("/services/{serviceID}/groups/{groupID}", h.handleGetGroup)
}

type subscribeRequest struct {
	ServiceID string `json:"service_id"`
}

type subscriptionResponse struct {
	Membership   *models.Membership        `json:"membership"`
	Group        *models.SubscriptionGroup `json:"group"`
	Active       bool                      `json:"active"`
	CreatedGroup bool                      `json:"created_group,omitempty"`
}

type membershipsResponse struct {
	Memberships []*models.Membership `json:"memberships"`
}

type groupsResponse struct {
	Groups []*models.SubscriptionGroup `json:"groups"`
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req subscribeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	serviceID, err := id.ParseServiceID(req.ServiceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Subscribe(ctx, caller, serviceID)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "subscribe", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(ctx, sub))
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	serviceID, ok := serviceParam(w, r)
	if !ok {
		return
	}
	group, err := h.service.RenewSubscription(ctx, caller, serviceID)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "renew subscription", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	serviceID, ok := serviceParam(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelSubscription(ctx, caller, serviceID); err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "cancel subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	serviceID, ok := serviceParam(w, r)
	if !ok {
		return
	}
	sub, err := h.service.GetMembership(ctx, caller, serviceID)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "get membership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(ctx, sub))
}

func (h *Handler) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListMemberships(ctx, caller)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "list memberships", err)
		return
	}
	if list == nil {
		list = []*models.Membership{}
	}
	httputil.WriteJSON(w, http.StatusOK, membershipsResponse{Memberships: list})
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID, ok := serviceParam(w, r)
	if !ok {
		return
	}
	groups, err := h.service.ListGroups(ctx, serviceID)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "list groups", err)
		return
	}
	if groups == nil {
		groups = []*models.SubscriptionGroup{}
	}
	httputil.WriteJSON(w, http.StatusOK, groupsResponse{Groups: groups})
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID, ok := serviceParam(w, r)
	if !ok {
		return
	}
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	group, err := h.service.GetGroup(ctx, id.GroupRef{ServiceID: serviceID, GroupID: groupID})
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "get group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.PrincipalID, bool) {
	caller := requestcontext.PrincipalID(r.Context())
	if err := authz.RequireCaller(caller); err != nil {
		httputil.WriteError(w, err)
		return caller, false
	}
	return caller, true
}

func serviceParam(w http.ResponseWriter, r *http.Request) (id.ServiceID, bool) {
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return serviceID, true
}

func toResponse(ctx context.Context, sub *membershipService.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Membership:   sub.Membership,
		Group:        sub.Group,
		Active:       sub.Group.IsActiveAt(requestcontext.Now(ctx)),
		CreatedGroup: sub.CreatedGroup,
	}
}
