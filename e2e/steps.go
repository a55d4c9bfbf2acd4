package e2e

import (
	"github.com/cucumber/godog"

	"poolshare/e2e/steps/common"
	"poolshare/e2e/steps/governance"
	"poolshare/e2e/steps/subscription"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	subscription.RegisterSteps(ctx, tc)
	governance.RegisterSteps(ctx, tc)
}
