package subscription

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context subscription steps use.
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	GET(path string, headers map[string]string) error
	DELETE(path string) error
	ActAs(name string) error
	Principal(name string) string
	Service(name string) string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers catalog, credit, membership, cost and vault steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &subscriptionSteps{tc: tc}

	ctx.Step(`^the admin lists service "([^"]*)" costing (\d+) for (\d+) members$`, steps.adminListsService)
	ctx.Step(`^"([^"]*)" buys (\d+) credits for (\d+)$`, steps.buyCredits)
	ctx.Step(`^"([^"]*)" subscribes to "([^"]*)"$`, steps.subscribe)
	ctx.Step(`^I subscribe to "([^"]*)"$`, steps.subscribeSelf)
	ctx.Step(`^I renew "([^"]*)"$`, steps.renew)
	ctx.Step(`^I cancel "([^"]*)"$`, steps.cancel)
	ctx.Step(`^I ask for the cost of group (\d+) of "([^"]*)"$`, steps.costOfGroup)
	ctx.Step(`^I look at group (\d+) of "([^"]*)"$`, steps.lookAtGroup)
	ctx.Step(`^I register public key "([^"]*)"$`, steps.registerKey)
	ctx.Step(`^the admin stores credentials "([^"]*)" for "([^"]*)" on "([^"]*)"$`, steps.adminStoresCredentials)
	ctx.Step(`^I fetch my credentials for "([^"]*)"$`, steps.fetchCredentials)
}

type subscriptionSteps struct {
	tc TestContext
}

func (s *subscriptionSteps) adminListsService(ctx context.Context, name string, cost, capacity int) error {
	if err := s.tc.ActAs("admin"); err != nil {
		return err
	}
	body := map[string]any{
		"id":         s.tc.Service(name),
		"symbol":     name,
		"total_cost": cost,
		"capacity":   capacity,
	}
	if err := s.tc.POST("/admin/services", body); err != nil {
		return err
	}
	return s.expect(201)
}

func (s *subscriptionSteps) buyCredits(ctx context.Context, who string, credits, payment int) error {
	if err := s.tc.ActAs(who); err != nil {
		return err
	}
	if err := s.tc.POST("/credits", map[string]any{"amount": credits, "payment": payment}); err != nil {
		return err
	}
	return s.expect(200)
}

func (s *subscriptionSteps) subscribe(ctx context.Context, who, service string) error {
	if err := s.tc.ActAs(who); err != nil {
		return err
	}
	return s.subscribeSelf(ctx, service)
}

func (s *subscriptionSteps) subscribeSelf(ctx context.Context, service string) error {
	return s.tc.POST("/subscriptions", map[string]any{"service_id": s.tc.Service(service)})
}

func (s *subscriptionSteps) renew(ctx context.Context, service string) error {
	return s.tc.POST("/subscriptions/"+s.tc.Service(service)+"/renew", nil)
}

func (s *subscriptionSteps) cancel(ctx context.Context, service string) error {
	return s.tc.DELETE("/subscriptions/" + s.tc.Service(service))
}

func (s *subscriptionSteps) costOfGroup(ctx context.Context, group int, service string) error {
	return s.tc.GET(fmt.Sprintf("/services/%s/groups/%d/cost", s.tc.Service(service), group), nil)
}

func (s *subscriptionSteps) lookAtGroup(ctx context.Context, group int, service string) error {
	return s.tc.GET(fmt.Sprintf("/services/%s/groups/%d", s.tc.Service(service), group), nil)
}

func (s *subscriptionSteps) registerKey(ctx context.Context, key string) error {
	return s.tc.PUT("/keys", map[string]any{"public_key": key})
}

func (s *subscriptionSteps) adminStoresCredentials(ctx context.Context, blob, who, service string) error {
	if err := s.tc.ActAs("admin"); err != nil {
		return err
	}
	path := fmt.Sprintf("/admin/credentials/%s/%s", s.tc.Principal(who), s.tc.Service(service))
	return s.tc.PUT(path, map[string]any{"blob": blob})
}

func (s *subscriptionSteps) fetchCredentials(ctx context.Context, service string) error {
	return s.tc.GET("/credentials/"+s.tc.Service(service), nil)
}

func (s *subscriptionSteps) expect(status int) error {
	if got := s.tc.GetLastResponseStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, s.tc.GetLastResponseBody())
	}
	return nil
}
