package governance

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context governance steps use.
type TestContext interface {
	POST(path string, body any) error
	ActAs(name string) error
	Principal(name string) string
	Service(name string) string
	Proposal() string
	SetProposal(p string)
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers proposal, vote and execution steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &governanceSteps{tc: tc}

	ctx.Step(`^"([^"]*)" proposes to kick "([^"]*)" from group (\d+) of "([^"]*)"$`, steps.propose)
	ctx.Step(`^"([^"]*)" votes (yes|no) in group (\d+) of "([^"]*)"$`, steps.vote)
	ctx.Step(`^"([^"]*)" executes the proposal in group (\d+) of "([^"]*)"$`, steps.execute)
}

type governanceSteps struct {
	tc TestContext
}

func (s *governanceSteps) base(group int, service string) string {
	return fmt.Sprintf("/services/%s/groups/%d/proposals", s.tc.Service(service), group)
}

func (s *governanceSteps) propose(ctx context.Context, who, target string, group int, service string) error {
	if err := s.tc.ActAs(who); err != nil {
		return err
	}
	if err := s.tc.POST(s.base(group, service)+"/", map[string]any{"target": s.tc.Principal(target)}); err != nil {
		return err
	}
	if raw, err := s.tc.GetResponseField("id"); err == nil {
		s.tc.SetProposal(fmt.Sprint(raw))
	}
	return nil
}

func (s *governanceSteps) vote(ctx context.Context, who, choice string, group int, service string) error {
	if s.tc.Proposal() == "" {
		return fmt.Errorf("no proposal has been created in this scenario")
	}
	if err := s.tc.ActAs(who); err != nil {
		return err
	}
	return s.tc.POST(s.base(group, service)+"/"+s.tc.Proposal()+"/votes", map[string]any{"yes": choice == "yes"})
}

func (s *governanceSteps) execute(ctx context.Context, who string, group int, service string) error {
	if s.tc.Proposal() == "" {
		return fmt.Errorf("no proposal has been created in this scenario")
	}
	if err := s.tc.ActAs(who); err != nil {
		return err
	}
	return s.tc.POST(s.base(group, service)+"/"+s.tc.Proposal()+"/execute", nil)
}
