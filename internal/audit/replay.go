package audit

import "disha/internal/lifecycle/models"

// Replay folds a candidate's ordered history into its lifecycle state and
// version. A corrupted or stale projection is repaired by replaying from an
// empty state; the engine's own tests use this to prove audit completeness.
//
// The intake record (FromState empty) establishes the initial state; every
// subsequent record moves exactly one axis. Version equals the number of
// applied records because the engine appends exactly one record per accepted
// transition.
func Replay(records []models.TransitionRecord) (models.LifecycleState, int64) {
	state := models.NewLifecycleState()
	var version int64
	for _, rec := range records {
		version++
		if rec.FromState == "" {
			// Intake: state already holds the mobilization defaults.
			continue
		}
		state = state.WithValue(rec.Axis, rec.ToState)
	}
	return state, version
}
