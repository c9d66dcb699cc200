// Package lifecycle holds step definitions for the candidate pipeline:
// intake, guarded transitions, and audit history checks.
package lifecycle

import (
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
	"github.com/gofrs/uuid"
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

// RegisterSteps wires the lifecycle step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &lifecycleSteps{tc: tc}

	ctx.Step(`^a candidate "([^"]*)" from district "([^"]*)" is registered$`, steps.registerCandidate)
	ctx.Step(`^the "([^"]*)" advances "([^"]*)" to "([^"]*)"$`, steps.advance)
	ctx.Step(`^the "([^"]*)" advances "([^"]*)" to "([^"]*)" with reason "([^"]*)"$`, steps.advanceWithReason)
	ctx.Step(`^the "([^"]*)" requests "([^"]*)" to "([^"]*)"$`, steps.request)
	ctx.Step(`^the "([^"]*)" requests "([^"]*)" to "([^"]*)" with expected version (\d+)$`, steps.requestWithVersion)
	ctx.Step(`^the "([^"]*)" moves the pipeline to "([^"]*)" with a new batch$`, steps.advanceWithBatch)
	ctx.Step(`^the candidate is walked to pipeline stage "placed"$`, steps.walkToPlaced)
	ctx.Step(`^the candidate version should be (\d+)$`, steps.assertVersion)
	ctx.Step(`^the candidate pipeline stage should be "([^"]*)"$`, steps.assertPipelineStage)
	ctx.Step(`^the candidate history should contain (\d+) records$`, steps.assertHistoryLength)
}

type lifecycleSteps struct {
	tc TestContext
}

func (s *lifecycleSteps) registerCandidate(name, district string) error {
	err := s.tc.POST("/v1/candidates", "mobilizer", map[string]any{
		"name":     name,
		"phone":    "9800000001",
		"district": district,
	})
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("intake failed with status %d", s.tc.LastStatus())
	}
	candidateID, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.SetVar("candidate_id", fmt.Sprintf("%v", candidateID))
	s.tc.SetVar("version", "1")
	return nil
}

// request submits a transition without requiring it to succeed; the scenario
// asserts the outcome separately.
func (s *lifecycleSteps) request(role, axis, toState string) error {
	return s.transition(role, axis, toState, nil)
}

// requestWithVersion submits a transition with an explicit expected version,
// used to provoke optimistic-concurrency conflicts.
func (s *lifecycleSteps) requestWithVersion(role, axis, toState string, version int) error {
	body := map[string]any{
		"axis":             axis,
		"to_state":         toState,
		"expected_version": version,
	}
	return s.tc.POST("/v1/candidates/"+s.tc.Var("candidate_id")+"/transitions", role, body)
}

// advance submits a transition and requires it to be accepted.
func (s *lifecycleSteps) advance(role, axis, toState string) error {
	if err := s.transition(role, axis, toState, nil); err != nil {
		return err
	}
	return s.requireAccepted(axis, toState)
}

func (s *lifecycleSteps) advanceWithReason(role, axis, toState, reason string) error {
	if err := s.transition(role, axis, toState, map[string]string{"reason": reason}); err != nil {
		return err
	}
	return s.requireAccepted(axis, toState)
}

func (s *lifecycleSteps) advanceWithBatch(role, toState string) error {
	batchID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("generate batch id: %w", err)
	}
	s.tc.SetVar("batch_id", batchID.String())
	if err := s.transition(role, "pipeline", toState, map[string]string{"batch_id": batchID.String()}); err != nil {
		return err
	}
	return s.requireAccepted("pipeline", toState)
}

func (s *lifecycleSteps) transition(role, axis, toState string, payload map[string]string) error {
	version, err := strconv.ParseInt(s.tc.Var("version"), 10, 64)
	if err != nil {
		return fmt.Errorf("no candidate version captured: %w", err)
	}
	body := map[string]any{
		"axis":             axis,
		"to_state":         toState,
		"expected_version": version,
	}
	if len(payload) > 0 {
		body["payload"] = payload
	}
	path := "/v1/candidates/" + s.tc.Var("candidate_id") + "/transitions"
	if err := s.tc.POST(path, role, body); err != nil {
		return err
	}
	if s.tc.LastStatus() == 200 {
		newVersion, err := s.tc.Field("candidate.version")
		if err != nil {
			return err
		}
		s.tc.SetVar("version", fmt.Sprintf("%v", newVersion))
	}
	return nil
}

func (s *lifecycleSteps) requireAccepted(axis, toState string) error {
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("transition %s -> %s rejected with status %d", axis, toState, s.tc.LastStatus())
	}
	return nil
}

// walkToPlaced drives the full accepted path so overlay scenarios can start
// from a late pipeline stage without restating every edge.
func (s *lifecycleSteps) walkToPlaced() error {
	type step struct {
		role    string
		axis    string
		toState string
		batch   bool
	}
	walk := []step{
		{role: "counsellor", axis: "counselling", toState: "stage_1"},
		{role: "counsellor", axis: "counselling", toState: "stage_2"},
		{role: "counsellor", axis: "counselling", toState: "stage_3"},
		{role: "counsellor", axis: "counselling", toState: "completed"},
		{role: "counsellor", axis: "consent", toState: "obtained"},
		{role: "mobilizer", axis: "pipeline", toState: "ready_for_migration", batch: true},
		{role: "mobilizer", axis: "pipeline", toState: "migrated"},
		{role: "mis", axis: "documents", toState: "complete"},
		{role: "mis", axis: "pipeline", toState: "enrolled"},
		{role: "center_manager", axis: "pipeline", toState: "in_training"},
		{role: "center_manager", axis: "pipeline", toState: "trained"},
		{role: "company_hr", axis: "pipeline", toState: "placed"},
	}
	for _, st := range walk {
		var err error
		if st.batch {
			err = s.advanceWithBatch(st.role, st.toState)
		} else {
			err = s.advance(st.role, st.axis, st.toState)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *lifecycleSteps) assertVersion(expected int) error {
	if err := s.tc.GET("/v1/candidates/"+s.tc.Var("candidate_id"), "mis"); err != nil {
		return err
	}
	version, err := s.tc.Field("version")
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", version) != strconv.Itoa(expected) {
		return fmt.Errorf("expected version %d, got %v", expected, version)
	}
	return nil
}

func (s *lifecycleSteps) assertPipelineStage(expected string) error {
	if err := s.tc.GET("/v1/candidates/"+s.tc.Var("candidate_id"), "mis"); err != nil {
		return err
	}
	stage, err := s.tc.Field("state.pipeline")
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", stage) != expected {
		return fmt.Errorf("expected pipeline stage %q, got %v", expected, stage)
	}
	return nil
}

func (s *lifecycleSteps) assertHistoryLength(expected int) error {
	if err := s.tc.GET("/v1/candidates/"+s.tc.Var("candidate_id")+"/history", "mis"); err != nil {
		return err
	}
	records, err := s.tc.Field("records")
	if err != nil {
		return err
	}
	list, ok := records.([]any)
	if !ok {
		return fmt.Errorf("records is not a list: %v", records)
	}
	if len(list) != expected {
		return fmt.Errorf("expected %d history records, got %d", expected, len(list))
	}
	return nil
}
