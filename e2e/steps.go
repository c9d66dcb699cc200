package e2e

import (
	"github.com/cucumber/godog"

	"disha/e2e/steps/common"
	"disha/e2e/steps/lifecycle"
	"disha/e2e/steps/sos"
)

// RegisterSteps registers all step definitions from the modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	lifecycle.RegisterSteps(ctx, tc)
	sos.RegisterSteps(ctx, tc)
}
