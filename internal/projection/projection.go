// Package projection derives role-specific read views from the transition,
// SOS and travel-letter event streams. Views are eventually consistent with
// the transition engine: each carries a monotonically increasing version so
// dashboards can detect staleness, and every view is rebuildable from scratch
// by replaying the audit log and the overlay stores.
package projection

import (
	"context"
	"encoding/json"
	"time"
)

// Named views. Adding a view is a deployment, not a runtime operation.
const (
	ViewReadyForMigration = "ready-for-migration"
	ViewOpenCriticalSOS   = "open-critical-sos"
	ViewBatchTravelStatus = "batch-travel-status"
)

// KnownView reports whether name is a served view.
func KnownView(name string) bool {
	switch name {
	case ViewReadyForMigration, ViewOpenCriticalSOS, ViewBatchTravelStatus:
		return true
	default:
		return false
	}
}

// MigrationEntry is one candidate currently waiting to migrate.
type MigrationEntry struct {
	CandidateID string    `json:"candidate_id"`
	BatchID     string    `json:"batch_id,omitempty"`
	Since       time.Time `json:"since"`
}

// SOSEntry is one open critical case. The view flags the candidate
// regardless of pipeline stage.
type SOSEntry struct {
	CaseID      string    `json:"case_id"`
	CandidateID string    `json:"candidate_id"`
	Priority    string    `json:"priority"`
	Escalated   bool      `json:"escalated"`
	Since       time.Time `json:"since"`
}

// TravelEntry is the travel-letter status of one batch.
type TravelEntry struct {
	BatchID   string    `json:"batch_id"`
	LetterID  string    `json:"letter_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is one view's full contents at a version. Entries are whole
// records applied in commit order; a reader never observes a half-applied
// update.
type Snapshot struct {
	View    string            `json:"view"`
	Version int64             `json:"version"`
	Entries []json.RawMessage `json:"entries"`
}

// ViewStore persists view entries keyed by entity id. Every mutation bumps
// the view's version, including Reset, so versions stay monotonic across
// rebuilds.
type ViewStore interface {
	Set(ctx context.Context, view, key string, value []byte) error
	Delete(ctx context.Context, view, key string) error
	Snapshot(ctx context.Context, view string) (Snapshot, error)
	// Reset drops all entries while preserving version monotonicity.
	Reset(ctx context.Context, view string) error
}
