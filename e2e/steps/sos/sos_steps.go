// Package sos holds step definitions for the SOS overlay: raising cases,
// working them, and checking the open-critical projection.
package sos

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// Projections lag the engine by design, so membership checks poll.
const (
	projectionWait = 20 * time.Second
	projectionPoll = 500 * time.Millisecond
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path, role string, body map[string]any) error
	PATCH(path, role string, body map[string]any) error
	GET(path, role string) error
	LastStatus() int
	Field(path string) (any, error)
	SetVar(name, value string)
	Var(name string) string
}

// RegisterSteps wires the SOS step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &sosSteps{tc: tc}

	ctx.Step(`^the candidate raises a "([^"]*)" SOS in category "([^"]*)"$`, steps.raise)
	ctx.Step(`^the POC resolves the SOS with note "([^"]*)"$`, steps.resolve)
	ctx.Step(`^the open-critical projection should include the candidate$`, steps.assertProjectionIncludes)
	ctx.Step(`^the open-critical projection should not include the candidate$`, steps.assertProjectionExcludes)
}

type sosSteps struct {
	tc TestContext
}

func (s *sosSteps) raise(priority, category string) error {
	err := s.tc.POST("/v1/sos", "mobilizer", map[string]any{
		"candidate_id": s.tc.Var("candidate_id"),
		"category":     category,
		"priority":     priority,
		"description":  "raised during end-to-end run",
	})
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("raising sos failed with status %d", s.tc.LastStatus())
	}
	caseID, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	version, err := s.tc.Field("version")
	if err != nil {
		return err
	}
	s.tc.SetVar("case_id", fmt.Sprintf("%v", caseID))
	s.tc.SetVar("case_version", fmt.Sprintf("%v", version))
	return nil
}

func (s *sosSteps) resolve(note string) error {
	version, err := strconv.ParseInt(s.tc.Var("case_version"), 10, 64)
	if err != nil {
		return fmt.Errorf("no case version captured: %w", err)
	}
	err = s.tc.PATCH("/v1/sos/"+s.tc.Var("case_id"), "poc", map[string]any{
		"status":           "resolved",
		"resolution_note":  note,
		"expected_version": version,
	})
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("resolving sos failed with status %d", s.tc.LastStatus())
	}
	return nil
}

func (s *sosSteps) assertProjectionIncludes() error {
	return s.pollProjection(true)
}

func (s *sosSteps) assertProjectionExcludes() error {
	return s.pollProjection(false)
}

func (s *sosSteps) pollProjection(wantMember bool) error {
	deadline := time.Now().Add(projectionWait)
	var last error
	for time.Now().Before(deadline) {
		member, err := s.projectionHasCandidate()
		if err == nil && member == wantMember {
			return nil
		}
		if err != nil {
			last = err
		} else {
			last = fmt.Errorf("candidate membership is %v, want %v", member, wantMember)
		}
		time.Sleep(projectionPoll)
	}
	return fmt.Errorf("projection did not converge: %w", last)
}

func (s *sosSteps) projectionHasCandidate() (bool, error) {
	if err := s.tc.GET("/v1/projections/open-critical-sos", ""); err != nil {
		return false, err
	}
	if s.tc.LastStatus() != 200 {
		return false, fmt.Errorf("projection read failed with status %d", s.tc.LastStatus())
	}
	entries, err := s.tc.Field("entries")
	if err != nil {
		return false, err
	}
	list, ok := entries.([]any)
	if !ok {
		// An empty view serializes without entries.
		return false, nil
	}
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", obj["candidate_id"]) == s.tc.Var("candidate_id") {
			return true, nil
		}
	}
	return false, nil
}
