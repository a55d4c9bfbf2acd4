package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"poolshare/internal/governance/handler/mocks"
	govService "poolshare/internal/governance/service"
	"poolshare/internal/ledger/models"
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/testutil"
)

type GovernanceHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	caller  id.PrincipalID
	group   id.GroupRef
}

func TestGovernanceHandlerSuite(t *testing.T) {
	suite.Run(t, new(GovernanceHandlerSuite))
}

func (s *GovernanceHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.caller = id.NewPrincipalID()
	s.group = id.GroupRef{ServiceID: "netflix", GroupID: 1}

	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *GovernanceHandlerSuite) view(executed bool) *govService.ProposalView {
	p := &models.Proposal{
		Ref:      id.ProposalRef{GroupRef: s.group, ProposalID: 1},
		Proposer: s.caller,
		Target:   id.NewPrincipalID(),
		EndsAt:   time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC),
		Executed: executed,
	}
	status := models.ProposalOpen
	if executed {
		status = models.ProposalExecuted
	}
	return &govService.ProposalView{Proposal: p, ServiceID: "netflix", GroupID: 1, ID: 1, Status: status}
}

func (s *GovernanceHandlerSuite) TestPropose() {
	t := s.T()
	target := id.NewPrincipalID()

	s.Run("creates", func() {
		s.service.EXPECT().ProposeToKickUser(gomock.Any(), s.caller, s.group, target).Return(s.view(false), nil)
		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/",
			map[string]any{"target": target.String()}), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "status", "open")
		testutil.AssertJSONContains(t, rr, "id", float64(1))
	})

	s.Run("cooldown maps to 429", func() {
		s.service.EXPECT().ProposeToKickUser(gomock.Any(), s.caller, s.group, target).
			Return(nil, dErrors.New(dErrors.CodeCooldownActive, "proposal cooldown active"))
		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/",
			map[string]any{"target": target.String()}), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "cooldown_active")
	})

	s.Run("malformed target", func() {
		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/",
			map[string]any{"target": "nobody"}), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *GovernanceHandlerSuite) TestVote() {
	t := s.T()
	ref := id.ProposalRef{GroupRef: s.group, ProposalID: 1}

	s.Run("records a no vote", func() {
		s.service.EXPECT().VoteOnProposal(gomock.Any(), s.caller, ref, false).Return(s.view(false), nil)
		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/1/votes",
			map[string]any{"yes": false}), s.caller.String())
		testutil.AssertStatusOK(t, testutil.DoRequest(s.router, req))
	})

	s.Run("missing vote is rejected", func() {
		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/1/votes",
			map[string]any{}), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("double vote maps to 409", func() {
		s.service.EXPECT().VoteOnProposal(gomock.Any(), s.caller, ref, true).
			Return(nil, dErrors.New(dErrors.CodeAlreadyVoted, "principal has already voted"))
		req := testutil.WithPrincipal(testutil.NewJSONRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/1/votes",
			map[string]any{"yes": true}), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "already_voted")
	})
}

func (s *GovernanceHandlerSuite) TestExecute() {
	t := s.T()
	ref := id.ProposalRef{GroupRef: s.group, ProposalID: 1}

	s.Run("executes", func() {
		s.service.EXPECT().ExecuteProposal(gomock.Any(), s.caller, ref).Return(s.view(true), nil)
		req := testutil.WithPrincipal(testutil.NewRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/1/execute"), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "executed", true)
	})

	s.Run("too few members maps to 422", func() {
		s.service.EXPECT().ExecuteProposal(gomock.Any(), s.caller, ref).
			Return(nil, dErrors.New(dErrors.CodeInvariantViolation, "group needs at least two members"))
		req := testutil.WithPrincipal(testutil.NewRequest(t, http.MethodPost, "/services/netflix/groups/1/proposals/1/execute"), s.caller.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invariant_violation")
	})
}

func (s *GovernanceHandlerSuite) TestReads() {
	t := s.T()

	s.service.EXPECT().ListProposals(gomock.Any(), s.group).Return(nil, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/services/netflix/groups/1/proposals/"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONHasKey(t, rr, "proposals")

	s.service.EXPECT().GetProposal(gomock.Any(), id.ProposalRef{GroupRef: s.group, ProposalID: 1}).Return(s.view(false), nil)
	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/services/netflix/groups/1/proposals/1"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/services/netflix/groups/1/proposals/0"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}
