package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"disha/internal/audit"
	lifecyclemodels "disha/internal/lifecycle/models"
	sosmodels "disha/internal/sos/models"
	sosstore "disha/internal/sos/store"
	travelstore "disha/internal/travel/store"
	dErrors "disha/pkg/domain-errors"
)

// rebuildPageSize bounds each audit page during replay.
const rebuildPageSize = 500

// Rebuilder repairs a corrupted or stale view by replaying from the sources
// of truth: the audit log for the pipeline view, the case and letter stores
// for the overlays. The view version keeps increasing through a rebuild, so
// clients watching it see progress, never a reset.
type Rebuilder struct {
	log     audit.Log
	cases   sosstore.Store
	letters travelstore.Store
	views   ViewStore
	logger  *slog.Logger
	metrics *Metrics
}

type RebuilderOption func(*Rebuilder)

func WithRebuildMetrics(m *Metrics) RebuilderOption {
	return func(r *Rebuilder) { r.metrics = m }
}

func NewRebuilder(log audit.Log, cases sosstore.Store, letters travelstore.Store, views ViewStore, logger *slog.Logger, opts ...RebuilderOption) *Rebuilder {
	r := &Rebuilder{
		log:     log,
		cases:   cases,
		letters: letters,
		views:   views,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rebuild replays the named view from scratch and returns the fresh
// snapshot.
//
// Errors: CodeNotFound for an unknown view name; CodeInternal when a source
// read or view write fails.
func (r *Rebuilder) Rebuild(ctx context.Context, view string) (Snapshot, error) {
	var err error
	switch view {
	case ViewReadyForMigration:
		err = r.rebuildReadyForMigration(ctx)
	case ViewOpenCriticalSOS:
		err = r.rebuildOpenCriticalSOS(ctx)
	case ViewBatchTravelStatus:
		err = r.rebuildBatchTravelStatus(ctx)
	default:
		return Snapshot{}, dErrors.Newf(dErrors.CodeNotFound, "unknown projection %q", view)
	}
	if err != nil {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "projection rebuild failed")
	}

	if r.metrics != nil {
		r.metrics.Rebuilds.WithLabelValues(view).Inc()
	}
	snap, err := r.views.Snapshot(ctx, view)
	if err != nil {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rebuilt projection")
	}
	r.logger.Info("projection rebuilt", "view", view, "entries", len(snap.Entries), "version", snap.Version)
	return snap, nil
}

// candidateFold is the per-candidate state accumulated during replay.
type candidateFold struct {
	pipeline string
	batchID  string
	since    time.Time
}

func (r *Rebuilder) rebuildReadyForMigration(ctx context.Context) error {
	if err := r.views.Reset(ctx, ViewReadyForMigration); err != nil {
		return err
	}

	folds := make(map[string]*candidateFold)
	var afterSeq int64
	for {
		records, err := r.log.All(ctx, afterSeq, rebuildPageSize)
		if err != nil {
			return fmt.Errorf("replay audit log after seq %d: %w", afterSeq, err)
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			afterSeq = rec.Seq
			candID := rec.CandidateID.String()
			fold, ok := folds[candID]
			if !ok {
				fold = &candidateFold{}
				folds[candID] = fold
			}
			if batch := rec.Payload.Get(lifecyclemodels.PayloadBatchID); batch != "" {
				fold.batchID = batch
			}
			if rec.Axis == lifecyclemodels.AxisPipeline {
				fold.pipeline = rec.ToState
				fold.since = rec.Timestamp
			}
		}
		if len(records) < rebuildPageSize {
			break
		}
	}

	for candID, fold := range folds {
		if fold.pipeline != string(lifecyclemodels.StageReadyForMigration) {
			continue
		}
		entry, err := json.Marshal(MigrationEntry{
			CandidateID: candID,
			BatchID:     fold.batchID,
			Since:       fold.since,
		})
		if err != nil {
			return fmt.Errorf("marshal migration entry: %w", err)
		}
		if err := r.views.Set(ctx, ViewReadyForMigration, candID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rebuilder) rebuildOpenCriticalSOS(ctx context.Context) error {
	if err := r.views.Reset(ctx, ViewOpenCriticalSOS); err != nil {
		return err
	}
	cases, err := r.cases.ListOpen(ctx, sosmodels.PriorityCritical)
	if err != nil {
		return fmt.Errorf("list open critical cases: %w", err)
	}
	for _, c := range cases {
		entry, err := json.Marshal(SOSEntry{
			CaseID:      c.ID.String(),
			CandidateID: c.CandidateID.String(),
			Priority:    string(c.Priority),
			Escalated:   c.Escalated,
			Since:       c.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal sos entry: %w", err)
		}
		if err := r.views.Set(ctx, ViewOpenCriticalSOS, c.ID.String(), entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rebuilder) rebuildBatchTravelStatus(ctx context.Context) error {
	if err := r.views.Reset(ctx, ViewBatchTravelStatus); err != nil {
		return err
	}
	letters, err := r.letters.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list travel letter requests: %w", err)
	}
	for _, letter := range letters {
		entry, err := json.Marshal(TravelEntry{
			BatchID:   letter.BatchID.String(),
			LetterID:  letter.ID.String(),
			Status:    string(letter.Status),
			UpdatedAt: letter.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal travel entry: %w", err)
		}
		if err := r.views.Set(ctx, ViewBatchTravelStatus, letter.BatchID.String(), entry); err != nil {
			return err
		}
	}
	return nil
}
