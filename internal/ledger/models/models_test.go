package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/money"
	"poolshare/pkg/testutil"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSubscriptionGroup_Activity(t *testing.T) {
	g := NewSubscriptionGroup("netflix", 1, t0, 30*24*time.Hour)

	assert.True(t, g.IsActiveAt(t0))
	assert.True(t, g.IsActiveAt(g.ExpiresAt), "expiry instant is still active")
	assert.False(t, g.IsActiveAt(g.ExpiresAt.Add(time.Nanosecond)))
	assert.True(t, g.IsStale(g.ExpiresAt.Add(time.Second)))

	g.ApplyExpiry()
	assert.False(t, g.IsActiveAt(t0), "demoted flag wins even before the deadline")

	g.ApplyRenewal(t0.Add(10*24*time.Hour), 30*24*time.Hour)
	assert.True(t, g.IsActiveAt(t0.Add(39*24*time.Hour)))
}

func TestSubscriptionGroup_Members(t *testing.T) {
	g := NewSubscriptionGroup("netflix", 1, t0, time.Hour)
	a, b := id.NewPrincipalID(), id.NewPrincipalID()

	g.ApplyAdd(a)
	g.ApplyAdd(b)
	assert.Equal(t, 2, g.MemberCount())
	assert.True(t, g.CanAdmit(3, t0))
	assert.False(t, g.CanAdmit(2, t0))
	assert.False(t, g.CanAdmit(3, t0.Add(2*time.Hour)))

	clone := g.Clone()
	assert.True(t, g.ApplyRemove(a))
	assert.False(t, g.ApplyRemove(a))
	assert.Equal(t, []id.PrincipalID{b}, g.Members)
	assert.Len(t, clone.Members, 2, "clone is independent")
}

func TestProposal_Voting(t *testing.T) {
	ref := id.GroupRef{ServiceID: "netflix", GroupID: 1}
	proposer, target, voter := id.NewPrincipalID(), id.NewPrincipalID(), id.NewPrincipalID()

	_, err := NewProposal(ref, proposer, proposer, t0, 24*time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	p, err := NewProposal(ref, proposer, target, t0, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ProposalOpen, p.Status(t0))

	require.NoError(t, p.CanVote(voter, t0))
	p.ApplyVote(voter, true)
	assert.True(t, dErrors.HasCode(p.CanVote(voter, t0), dErrors.CodeAlreadyVoted))
	assert.True(t, dErrors.HasCode(p.CanVote(target, t0), dErrors.CodeForbidden))
	assert.True(t, dErrors.HasCode(p.CanVote(proposer, p.EndsAt.Add(time.Second)), dErrors.CodeVotingClosed))
	require.NoError(t, p.CanVote(proposer, p.EndsAt), "the deadline itself is inclusive")
	assert.Equal(t, uint(1), p.YesVotes)
}

func TestProposal_Execution(t *testing.T) {
	ref := id.GroupRef{ServiceID: "netflix", GroupID: 1}
	p, err := NewProposal(ref, id.NewPrincipalID(), id.NewPrincipalID(), t0, time.Hour)
	require.NoError(t, err)

	assert.True(t, dErrors.HasCode(p.CanExecute(p.EndsAt), dErrors.CodeVotingOpen))
	after := p.EndsAt.Add(time.Second)
	require.NoError(t, p.CanExecute(after))
	assert.Equal(t, ProposalExpired, p.Status(after))

	p.ApplyExecution(OutcomeRejected, after)
	assert.Equal(t, ProposalExecuted, p.Status(after))
	assert.True(t, dErrors.HasCode(p.CanExecute(after), dErrors.CodeAlreadyExecuted))
}

func TestProposal_MajorityFollowsLiveMembership(t *testing.T) {
	ref := id.GroupRef{ServiceID: "netflix", GroupID: 1}

	testutil.Given(t, "a five member group with two yes votes", func(t *testing.T) {
		p, err := NewProposal(ref, id.NewPrincipalID(), id.NewPrincipalID(), t0, time.Hour)
		require.NoError(t, err)
		p.ApplyVote(id.NewPrincipalID(), true)
		p.ApplyVote(id.NewPrincipalID(), true)

		testutil.When(t, "nobody leaves", func(t *testing.T) {
			testutil.Then(t, "three votes are needed and the proposal fails", func(t *testing.T) {
				assert.Equal(t, uint(3), RequiredVotes(5))
				assert.False(t, p.Passes(5))
			})
		})

		testutil.When(t, "a member leaves before execution", func(t *testing.T) {
			testutil.Then(t, "two votes carry it", func(t *testing.T) {
				assert.True(t, p.Passes(4))
			})
			testutil.And(t, "the target can still not vote for itself", func(t *testing.T) {
				assert.Error(t, p.CanVote(p.Target, t0.Add(time.Minute)))
			})
		})
	})
}

func TestRequiredVotes(t *testing.T) {
	cases := map[int]uint{2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 4}
	for members, want := range cases {
		assert.Equal(t, want, RequiredVotes(members), "members=%d", members)
	}
}

func TestServiceOffering(t *testing.T) {
	_, err := NewServiceOffering("netflix", " ", money.New(100, "usd"), 5, t0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewServiceOffering("netflix", "NFLX", money.New(-1, "usd"), 5, t0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewServiceOffering("netflix", "NFLX", money.New(100, "usd"), 0, t0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	s, err := NewServiceOffering("netflix", "NFLX", money.New(1599, "usd"), 5, t0)
	require.NoError(t, err)
	assert.Equal(t, id.GroupID(1), s.NextGroupID())
	assert.Equal(t, id.GroupID(2), s.NextGroupID())
}

func TestPrincipal(t *testing.T) {
	p := &Principal{Balance: 1}
	require.NoError(t, p.CanDebit(1))
	assert.True(t, dErrors.HasCode(p.CanDebit(2), dErrors.CodeInsufficientBalance))

	_, err := ValidatePublicKey("   ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	key, err := ValidatePublicKey(" age1xyz ")
	require.NoError(t, err)
	assert.Equal(t, "age1xyz", key)
}
