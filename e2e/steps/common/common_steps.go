// Package common holds step definitions shared by every feature: raw
// requests, status assertions, and response-field checks.
package common

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	GET(path, role string) error
	LastStatus() int
	Field(path string) (any, error)
}

// RegisterSteps wires the shared step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the response status should be (\d+)$`, steps.assertStatus)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.assertField)
	ctx.Step(`^the response reasons should include "([^"]*)"$`, steps.assertReason)
	ctx.Step(`^I GET "([^"]*)" as "([^"]*)"$`, steps.get)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) assertStatus(expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) assertField(path, expected string) error {
	value, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != expected {
		return fmt.Errorf("expected field %q to be %q, got %v", path, expected, value)
	}
	return nil
}

func (s *commonSteps) assertReason(expected string) error {
	value, err := s.tc.Field("reasons")
	if err != nil {
		return err
	}
	reasons, ok := value.([]any)
	if !ok {
		return fmt.Errorf("reasons is not a list: %v", value)
	}
	for _, r := range reasons {
		if fmt.Sprintf("%v", r) == expected {
			return nil
		}
	}
	return fmt.Errorf("reason %q not found in %v", expected, reasons)
}

func (s *commonSteps) get(path, role string) error {
	return s.tc.GET(path, role)
}
