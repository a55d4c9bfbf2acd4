package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	govService "poolshare/internal/governance/service"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	ProposeToKickUser(ctx context.Context, proposer id.PrincipalID, group id.GroupRef, target id.PrincipalID) (*govService.ProposalView, error)
	VoteOnProposal(ctx context.Context, voter id.PrincipalID, ref id.ProposalRef, yes bool) (*govService.ProposalView, error)
	ExecuteProposal(ctx context.Context, caller id.PrincipalID, ref id.ProposalRef) (*govService.ProposalView, error)
	GetProposal(ctx context.Context, ref id.ProposalRef) (*govService.ProposalView, error)
	ListProposals(ctx context.Context, group id.GroupRef) ([]*govService.ProposalView, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/services/{serviceID}/groups/{groupID}/proposals", func(r chi.Router) {
		r.Post("/", h.handlePropose)
		r.Get("/", h.handleList)
		r.Get("/{proposalID}", h.handleGet)
		r.Post("/{proposalID}/votes", h.handleVote)
		r.Post("/{proposalID}/execute", h.handleExecute)
	})
}

type proposeRequest struct {
	Target string `json:"target"`
}

// voteRequest uses a pointer so a missing vote is rejected rather than
// counted as "no".
type voteRequest struct {
	Yes *bool `json:"yes"`
}

type listResponse struct {
	Proposals []*govService.ProposalView `json:"proposals"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group, err := groupRef(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req proposeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := id.ParsePrincipalID(req.Target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.ProposeToKickUser(ctx, requestcontext.PrincipalID(ctx), group, target)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "propose", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group, err := groupRef(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListProposals(ctx, group)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "list proposals", err)
		return
	}
	if list == nil {
		list = []*govService.ProposalView{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Proposals: list})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := proposalRef(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.GetProposal(ctx, ref)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "get proposal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := proposalRef(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req voteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Yes == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "yes is required"))
		return
	}
	v, err := h.service.VoteOnProposal(ctx, requestcontext.PrincipalID(ctx), ref, *req.Yes)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "vote", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := proposalRef(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.ExecuteProposal(ctx, requestcontext.PrincipalID(ctx), ref)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "execute proposal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func groupRef(r *http.Request) (id.GroupRef, error) {
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "serviceID"))
	if err != nil {
		return id.GroupRef{}, err
	}
	groupID, err := id.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		return id.GroupRef{}, err
	}
	return id.GroupRef{ServiceID: serviceID, GroupID: groupID}, nil
}

func proposalRef(r *http.Request) (id.ProposalRef, error) {
	group, err := groupRef(r)
	if err != nil {
		return id.ProposalRef{}, err
	}
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "proposalID"))
	if err != nil {
		return id.ProposalRef{}, err
	}
	return id.ProposalRef{GroupRef: group, ProposalID: proposalID}, nil
}
