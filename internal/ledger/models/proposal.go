package models

import (
	"time"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
)

// ProposalStatus is derived from the clock and the executed flag; it is not stored.
type ProposalStatus string

const (
	ProposalOpen     ProposalStatus = "open"
	ProposalExpired  ProposalStatus = "expired"
	ProposalExecuted ProposalStatus = "executed"
)

// ExecutionOutcome records what an execution did.
type ExecutionOutcome string

const (
	OutcomeNone       ExecutionOutcome = ""
	OutcomeKicked     ExecutionOutcome = "kicked"
	OutcomeRejected   ExecutionOutcome = "rejected"
	OutcomeTargetLeft ExecutionOutcome = "target_left"
)

// Proposal is a time-boxed vote to remove Target from a group.
//
// Invariants:
//   - Proposer != Target
//   - each principal votes at most once; Target never votes
//   - votes are accepted only while now <= EndsAt
//   - Executed transitions false -> true exactly once
type Proposal struct {
	Ref        id.ProposalRef              `json:"-"`
	Proposer   id.PrincipalID              `json:"proposer"`
	Target     id.PrincipalID              `json:"target"`
	YesVotes   uint                        `json:"yes_votes"`
	NoVotes    uint                        `json:"no_votes"`
	EndsAt     time.Time                   `json:"ends_at"`
	Executed   bool                        `json:"executed"`
	Outcome    ExecutionOutcome            `json:"outcome,omitempty"`
	Voters     map[id.PrincipalID]struct{} `json:"-"`
	CreatedAt  time.Time                   `json:"created_at"`
	ExecutedAt time.Time                   `json:"executed_at,omitzero"`
}

func NewProposal(group id.GroupRef, proposer, target id.PrincipalID, now time.Time, votingPeriod time.Duration) (*Proposal, error) {
	if proposer == target {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot propose to kick yourself")
	}
	return &Proposal{
		Ref:       id.ProposalRef{GroupRef: group},
		Proposer:  proposer,
		Target:    target,
		EndsAt:    now.Add(votingPeriod),
		Voters:    make(map[id.PrincipalID]struct{}),
		CreatedAt: now,
	}, nil
}

func (p *Proposal) Status(now time.Time) ProposalStatus {
	switch {
	case p.Executed:
		return ProposalExecuted
	case now.After(p.EndsAt):
		return ProposalExpired
	default:
		return ProposalOpen
	}
}

func (p *Proposal) HasVoted(voter id.PrincipalID) bool {
	_, ok := p.Voters[voter]
	return ok
}

// CanVote checks the per-proposal vote rules. Membership of the voter is
// checked by the caller against the live group.
func (p *Proposal) CanVote(voter id.PrincipalID, now time.Time) error {
	if voter == p.Target {
		return dErrors.New(dErrors.CodeForbidden, "the target cannot vote on its own proposal")
	}
	if now.After(p.EndsAt) {
		return dErrors.New(dErrors.CodeVotingClosed, "voting period has ended")
	}
	if p.HasVoted(voter) {
		return dErrors.New(dErrors.CodeAlreadyVoted, "principal has already voted")
	}
	return nil
}

func (p *Proposal) ApplyVote(voter id.PrincipalID, yes bool) {
	if p.Voters == nil {
		p.Voters = make(map[id.PrincipalID]struct{})
	}
	p.Voters[voter] = struct{}{}
	if yes {
		p.YesVotes++
	} else {
		p.NoVotes++
	}
}

// CanExecute checks the clock and the single-shot flag.
func (p *Proposal) CanExecute(now time.Time) error {
	if p.Executed {
		return dErrors.New(dErrors.CodeAlreadyExecuted, "proposal has already been executed")
	}
	if !now.After(p.EndsAt) {
		return dErrors.New(dErrors.CodeVotingOpen, "voting period is still open")
	}
	return nil
}

// RequiredVotes is the strict majority of the members other than the target:
// floor((members-1)/2) + 1. Callers must reject members < 2 first.
func RequiredVotes(members int) uint {
	return uint((members-1)/2 + 1)
}

// Passes reports whether the tally meets the majority for the given live
// membership count.
func (p *Proposal) Passes(members int) bool {
	return p.YesVotes >= RequiredVotes(members)
}

func (p *Proposal) ApplyExecution(outcome ExecutionOutcome, now time.Time) {
	p.Executed = true
	p.Outcome = outcome
	p.ExecutedAt = now
}

// Clone returns a deep copy.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.Voters = make(map[id.PrincipalID]struct{}, len(p.Voters))
	for k := range p.Voters {
		c.Voters[k] = struct{}{}
	}
	return &c
}
