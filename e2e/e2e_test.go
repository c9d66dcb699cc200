package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// The suite targets an already-running server. Defaults match the dev
// configuration of cmd/server.
const (
	defaultBaseURL    = "http://localhost:8080"
	defaultSigningKey = "dev-secret-change-in-production"
)

func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("DISHA_E2E_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	signingKey := os.Getenv("DISHA_E2E_SIGNING_KEY")
	if signingKey == "" {
		signingKey = defaultSigningKey
	}

	tc := NewTestContext(baseURL, []byte(signingKey))

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("end-to-end suite failed")
	}
}
