// Package models defines the candidate aggregate and its composite lifecycle
// state. The state is a tuple over four independent axes, each a small state
// machine of its own; cross-axis ordering is enforced by guards in the
// transition engine, never by the UI.
package models

import dErrors "disha/pkg/domain-errors"

// Axis names one of the four sub-state-machines composing a candidate's
// lifecycle state.
type Axis string

const (
	AxisCounselling Axis = "counselling"
	AxisConsent     Axis = "consent"
	AxisDocuments   Axis = "documents"
	AxisPipeline    Axis = "pipeline"
)

var validAxes = map[Axis]bool{
	AxisCounselling: true,
	AxisConsent:     true,
	AxisDocuments:   true,
	AxisPipeline:    true,
}

// ParseAxis constructs an Axis from external input.
func ParseAxis(s string) (Axis, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "axis cannot be empty")
	}
	a := Axis(s)
	if !validAxes[a] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown axis: "+s)
	}
	return a, nil
}

func (a Axis) String() string { return string(a) }

// CounsellingStage tracks how far counselling has progressed.
type CounsellingStage string

const (
	CounsellingNotStarted CounsellingStage = "not_started"
	CounsellingStage1     CounsellingStage = "stage_1"
	CounsellingStage2     CounsellingStage = "stage_2"
	CounsellingStage3     CounsellingStage = "stage_3"
	CounsellingCompleted  CounsellingStage = "completed"
)

// ParentConsent tracks the guardian's decision.
type ParentConsent string

const (
	ConsentPending  ParentConsent = "pending"
	ConsentObtained ParentConsent = "obtained"
	ConsentRefused  ParentConsent = "refused"
)

// DocumentCompliance tracks whether the candidate's document set has been
// verified complete. The verification itself happens in an external document
// service; only the resulting fact lives here.
type DocumentCompliance string

const (
	DocumentsIncomplete DocumentCompliance = "incomplete"
	DocumentsComplete   DocumentCompliance = "complete"
)

// PipelineStage tracks the candidate's position in the placement pipeline.
type PipelineStage string

const (
	StageMobilized         PipelineStage = "mobilized"
	StageReadyForMigration PipelineStage = "ready_for_migration"
	StageMigrated          PipelineStage = "migrated"
	StageEnrolled          PipelineStage = "enrolled"
	StageInTraining        PipelineStage = "in_training"
	StageTrained           PipelineStage = "trained"
	StagePlaced            PipelineStage = "placed"
	StagePostPlacement     PipelineStage = "post_placement"
	StageDropped           PipelineStage = "dropped"
)

// LifecycleState is the composite state tuple. Zero value is not meaningful;
// use NewLifecycleState for the intake state.
type LifecycleState struct {
	Counselling CounsellingStage   `json:"counselling"`
	Consent     ParentConsent      `json:"consent"`
	Documents   DocumentCompliance `json:"documents"`
	Pipeline    PipelineStage      `json:"pipeline"`
}

// NewLifecycleState returns the state a candidate holds at mobilization
// intake.
func NewLifecycleState() LifecycleState {
	return LifecycleState{
		Counselling: CounsellingNotStarted,
		Consent:     ConsentPending,
		Documents:   DocumentsIncomplete,
		Pipeline:    StageMobilized,
	}
}

// Value returns the current value of the given axis as its wire string.
func (s LifecycleState) Value(axis Axis) string {
	switch axis {
	case AxisCounselling:
		return string(s.Counselling)
	case AxisConsent:
		return string(s.Consent)
	case AxisDocuments:
		return string(s.Documents)
	case AxisPipeline:
		return string(s.Pipeline)
	}
	return ""
}

// WithValue returns a copy of the state with the given axis set. The value
// must already have been validated against the registry's state set.
func (s LifecycleState) WithValue(axis Axis, value string) LifecycleState {
	switch axis {
	case AxisCounselling:
		s.Counselling = CounsellingStage(value)
	case AxisConsent:
		s.Consent = ParentConsent(value)
	case AxisDocuments:
		s.Documents = DocumentCompliance(value)
	case AxisPipeline:
		s.Pipeline = PipelineStage(value)
	}
	return s
}

// Dropped reports whether the candidate has left the pipeline for good.
func (s LifecycleState) Dropped() bool {
	return s.Pipeline == StageDropped
}
