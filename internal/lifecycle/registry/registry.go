// Package registry holds the static definition of lifecycle states and the
// transition table: which edges exist, which actor roles may drive them, and
// which guards they require. Pure data plus lookup; changing the table is a
// deployment, not a runtime operation.
package registry

import (
	"disha/internal/lifecycle/guard"
	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
)

// Edge is a single allowed transition on one axis. An empty Roles slice
// means any authenticated role may drive the edge.
type Edge struct {
	Axis   models.Axis
	From   string
	To     string
	Roles  []id.Role
	Guards []string
}

// RoleAllowed reports whether the given role may drive this edge.
func (e Edge) RoleAllowed(role id.Role) bool {
	if len(e.Roles) == 0 {
		return role.IsValid()
	}
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var counsellingEdges = []Edge{
	{Axis: models.AxisCounselling, From: string(models.CounsellingNotStarted), To: string(models.CounsellingStage1),
		Roles: []id.Role{id.RoleCounsellor}, Guards: []string{guard.CandidateActive}},
	{Axis: models.AxisCounselling, From: string(models.CounsellingStage1), To: string(models.CounsellingStage2),
		Roles: []id.Role{id.RoleCounsellor}, Guards: []string{guard.CandidateActive}},
	{Axis: models.AxisCounselling, From: string(models.CounsellingStage2), To: string(models.CounsellingStage3),
		Roles: []id.Role{id.RoleCounsellor}, Guards: []string{guard.CandidateActive}},
	{Axis: models.AxisCounselling, From: string(models.CounsellingStage3), To: string(models.CounsellingCompleted),
		Roles: []id.Role{id.RoleCounsellor}, Guards: []string{guard.CandidateActive}},
}

var consentEdges = []Edge{
	{Axis: models.AxisConsent, From: string(models.ConsentPending), To: string(models.ConsentObtained),
		Roles: []id.Role{id.RoleCounsellor, id.RoleMobilizer}, Guards: []string{guard.CandidateActive}},
	{Axis: models.AxisConsent, From: string(models.ConsentPending), To: string(models.ConsentRefused),
		Roles: []id.Role{id.RoleCounsellor, id.RoleMobilizer}, Guards: []string{guard.CandidateActive}},
	// Reversals are forward transitions with a mandatory reason, never edits
	// of history. Withdrawal is fenced off once the candidate has migrated.
	{Axis: models.AxisConsent, From: string(models.ConsentRefused), To: string(models.ConsentObtained),
		Roles: []id.Role{id.RoleCounsellor}, Guards: []string{guard.CandidateActive, guard.ReasonPresent}},
	{Axis: models.AxisConsent, From: string(models.ConsentObtained), To: string(models.ConsentRefused),
		Roles:  []id.Role{id.RoleCounsellor},
		Guards: []string{guard.CandidateActive, guard.ReasonPresent, guard.ConsentRevocable}},
}

var documentEdges = []Edge{
	{Axis: models.AxisDocuments, From: string(models.DocumentsIncomplete), To: string(models.DocumentsComplete),
		Roles: []id.Role{id.RoleMIS, id.RoleMobilizer}, Guards: []string{guard.CandidateActive}},
	// Reopening compliance is fenced off once the candidate is enrolled: an
	// enrolled candidate's documents stay complete.
	{Axis: models.AxisDocuments, From: string(models.DocumentsComplete), To: string(models.DocumentsIncomplete),
		Roles:  []id.Role{id.RoleMIS},
		Guards: []string{guard.CandidateActive, guard.ReasonPresent, guard.DocumentsRevocable}},
}

var pipelineEdges = []Edge{
	{Axis: models.AxisPipeline, From: string(models.StageMobilized), To: string(models.StageReadyForMigration),
		Roles:  []id.Role{id.RoleMobilizer, id.RoleCenterManager},
		Guards: []string{guard.CounsellingCompleted, guard.ConsentObtained, guard.BatchAssigned}},
	// Consent is re-checked at the migration gate: it may have been withdrawn
	// while the candidate waited at ready_for_migration.
	{Axis: models.AxisPipeline, From: string(models.StageReadyForMigration), To: string(models.StageMigrated),
		Roles: []id.Role{id.RoleMobilizer}, Guards: []string{guard.ConsentObtained, guard.BatchAssigned}},
	{Axis: models.AxisPipeline, From: string(models.StageMigrated), To: string(models.StageEnrolled),
		Roles: []id.Role{id.RoleMIS, id.RoleCenterManager}, Guards: []string{guard.DocumentsComplete}},
	{Axis: models.AxisPipeline, From: string(models.StageEnrolled), To: string(models.StageInTraining),
		Roles: []id.Role{id.RoleCenterManager}},
	{Axis: models.AxisPipeline, From: string(models.StageInTraining), To: string(models.StageTrained),
		Roles: []id.Role{id.RoleCenterManager}},
	{Axis: models.AxisPipeline, From: string(models.StageTrained), To: string(models.StagePlaced),
		Roles: []id.Role{id.RoleCompanyHR, id.RolePPCAdmin}},
	{Axis: models.AxisPipeline, From: string(models.StagePlaced), To: string(models.StagePostPlacement),
		Roles: []id.Role{id.RolePOC, id.RoleCompanyHR}},
}

// dropEdges: the escape hatch. Dropped is reachable from every non-terminal
// pipeline stage by any role, always requires a reason, and has no outgoing
// edges.
var dropEdges = buildDropEdges()

func buildDropEdges() []Edge {
	from := []models.PipelineStage{
		models.StageMobilized, models.StageReadyForMigration, models.StageMigrated,
		models.StageEnrolled, models.StageInTraining, models.StageTrained,
		models.StagePlaced, models.StagePostPlacement,
	}
	edges := make([]Edge, 0, len(from))
	for _, f := range from {
		edges = append(edges, Edge{
			Axis:   models.AxisPipeline,
			From:   string(f),
			To:     string(models.StageDropped),
			Guards: []string{guard.DropReasonPresent},
		})
	}
	return edges
}

var edgesByAxis = map[models.Axis][]Edge{
	models.AxisCounselling: counsellingEdges,
	models.AxisConsent:     consentEdges,
	models.AxisDocuments:   documentEdges,
	models.AxisPipeline:    append(append([]Edge{}, pipelineEdges...), dropEdges...),
}

// AllowedTransitions returns every edge leaving fromState on the given axis.
// The returned slice is a copy; callers may not mutate the table.
func AllowedTransitions(axis models.Axis, fromState string) []Edge {
	var out []Edge
	for _, e := range edgesByAxis[axis] {
		if e.From == fromState {
			out = append(out, e)
		}
	}
	return out
}

// Lookup finds the edge for (axis, from, to). Unknown combinations are
// rejected with CodeUnknownTransition.
func Lookup(axis models.Axis, fromState, toState string) (Edge, error) {
	for _, e := range edgesByAxis[axis] {
		if e.From == fromState && e.To == toState {
			return e, nil
		}
	}
	return Edge{}, dErrors.Newf(dErrors.CodeUnknownTransition,
		"no transition %s -> %s on axis %s", fromState, toState, axis)
}

var statesByAxis = map[models.Axis][]string{
	models.AxisCounselling: {
		string(models.CounsellingNotStarted), string(models.CounsellingStage1),
		string(models.CounsellingStage2), string(models.CounsellingStage3),
		string(models.CounsellingCompleted),
	},
	models.AxisConsent: {
		string(models.ConsentPending), string(models.ConsentObtained), string(models.ConsentRefused),
	},
	models.AxisDocuments: {
		string(models.DocumentsIncomplete), string(models.DocumentsComplete),
	},
	models.AxisPipeline: {
		string(models.StageMobilized), string(models.StageReadyForMigration),
		string(models.StageMigrated), string(models.StageEnrolled),
		string(models.StageInTraining), string(models.StageTrained),
		string(models.StagePlaced), string(models.StagePostPlacement),
		string(models.StageDropped),
	},
}

// ValidState reports whether value is a known state on the given axis.
func ValidState(axis models.Axis, value string) bool {
	for _, s := range statesByAxis[axis] {
		if s == value {
			return true
		}
	}
	return false
}
