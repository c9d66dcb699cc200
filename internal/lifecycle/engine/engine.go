// Package engine applies lifecycle transitions. It is the only writer of
// candidate state: every mutation enters through RequestTransition (or
// Intake), passes the registry and guard checks, and commits the state
// change, the audit record, and the outbox event atomically.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"disha/internal/audit"
	"disha/internal/dispatch"
	"disha/internal/lifecycle/guard"
	lifecyclemetrics "disha/internal/lifecycle/metrics"
	"disha/internal/lifecycle/models"
	"disha/internal/lifecycle/registry"
	"disha/internal/lifecycle/store/candidate"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/sentinel"
)

// GuardError carries the full guard checklist for a rejected transition so
// field staff see every unmet precondition at once, not just the first.
type GuardError struct {
	Results []models.GuardResult
	Reasons []string
}

func (e *GuardError) Error() string {
	return "guard checks failed: " + strings.Join(e.Reasons, "; ")
}

// Engine coordinates transition requests against the candidate store, the
// audit log, and the side-effect outbox.
type Engine struct {
	candidates candidate.Store
	log        audit.Log
	outbox     dispatch.Outbox
	tx         StoreTx
	logger     *slog.Logger
	metrics    *lifecyclemetrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

type Option func(*Engine)

// WithTx overrides the commit boundary; production wiring passes the
// database-backed runner.
func WithTx(tx StoreTx) Option {
	return func(e *Engine) { e.tx = tx }
}

func WithMetrics(m *lifecyclemetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock fixes the engine's notion of now. Tests use this for
// deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(candidates candidate.Store, log audit.Log, outbox dispatch.Outbox, opts ...Option) *Engine {
	e := &Engine{
		candidates: candidates,
		log:        log,
		outbox:     outbox,
		tx:         NewShardedTx(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("disha/lifecycle/engine"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IntakeInput registers a new candidate at the mobilized stage.
type IntakeInput struct {
	Name      string
	Phone     string
	District  string
	ActorRole id.Role
	ActorID   string
	Device    string
}

// Intake creates the candidate with mobilization defaults and writes the
// intake audit record. The candidate starts at version 1: the intake record
// is record one of its history.
func (e *Engine) Intake(ctx context.Context, in IntakeInput) (models.Candidate, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Candidate{}, dErrors.New(dErrors.CodeValidation, "candidate name is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return models.Candidate{}, dErrors.New(dErrors.CodeValidation, "candidate phone is required")
	}
	if !in.ActorRole.IsValid() {
		return models.Candidate{}, dErrors.Newf(dErrors.CodeValidation, "unknown actor role %q", in.ActorRole)
	}

	now := e.now()
	cand := models.Candidate{
		ID:        id.NewCandidateID(),
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		District:  strings.TrimSpace(in.District),
		State:     models.NewLifecycleState(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	record := e.newRecord(cand, models.AxisPipeline, "", string(models.StageMobilized), in.ActorRole, in.ActorID, in.Device, nil, nil)

	ctx = withLockKey(ctx, cand.ID.String())
	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := e.candidates.Create(txCtx, &cand); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "candidate already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create candidate")
		}
		if err := e.log.Append(txCtx, &record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append intake record")
		}
		return e.enqueueEvent(txCtx, cand, record)
	})
	if err != nil {
		return models.Candidate{}, err
	}

	if e.metrics != nil {
		e.metrics.IntakesCreated.Inc()
	}
	e.logger.Info("candidate registered",
		"candidate_id", cand.ID, "district", cand.District, "actor_role", in.ActorRole)
	return cand, nil
}

// TransitionRequest asks to move one candidate one step along one axis.
// ExpectedVersion is mandatory: a request that does not know the candidate's
// current version has no business mutating it.
type TransitionRequest struct {
	CandidateID     id.CandidateID
	Axis            models.Axis
	ToState         string
	ActorRole       id.Role
	ActorID         string
	Device          string
	ExpectedVersion int64
	Payload         models.Payload
}

// RequestTransition validates and applies one transition. Checks run in a
// fixed order: existence, version, registry edge, actor role, guards.
// Nothing is persisted unless every check passes; on success the state
// change, the audit record, and the outbox event commit together.
func (e *Engine) RequestTransition(ctx context.Context, req TransitionRequest) (models.Candidate, models.TransitionRecord, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.RequestTransition", trace.WithAttributes(
		attribute.String("candidate.id", req.CandidateID.String()),
		attribute.String("transition.axis", string(req.Axis)),
		attribute.String("transition.to", req.ToState),
		attribute.String("actor.role", string(req.ActorRole)),
	))
	defer span.End()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveTransition(start)
		}
	}()

	if err := e.validateRequest(req); err != nil {
		e.reject(req, err)
		return models.Candidate{}, models.TransitionRecord{}, err
	}

	var (
		cand   models.Candidate
		record models.TransitionRecord
	)
	ctx = withLockKey(ctx, req.CandidateID.String())
	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		cand, record, err = e.apply(txCtx, req)
		return err
	})
	if err != nil {
		e.reject(req, err)
		return models.Candidate{}, models.TransitionRecord{}, err
	}

	if e.metrics != nil {
		e.metrics.TransitionsAccepted.WithLabelValues(string(req.Axis)).Inc()
	}
	e.logger.Info("transition applied",
		"candidate_id", cand.ID,
		"axis", req.Axis,
		"from", record.FromState,
		"to", record.ToState,
		"version", cand.Version,
		"actor_role", req.ActorRole,
		"correlation_id", record.CorrelationID)
	return cand, record, nil
}

func (e *Engine) validateRequest(req TransitionRequest) error {
	if req.CandidateID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "candidate id is required")
	}
	if !req.ActorRole.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown actor role %q", req.ActorRole)
	}
	if !registry.ValidState(req.Axis, req.ToState) {
		return dErrors.Newf(dErrors.CodeValidation, "unknown state %q on axis %q", req.ToState, req.Axis)
	}
	if req.ExpectedVersion < 1 {
		return dErrors.New(dErrors.CodeValidation, "expected version is required")
	}
	return nil
}

// apply runs inside the commit boundary with the candidate's shard held.
func (e *Engine) apply(ctx context.Context, req TransitionRequest) (models.Candidate, models.TransitionRecord, error) {
	cand, err := e.loadCandidate(ctx, req.CandidateID)
	if err != nil {
		return models.Candidate{}, models.TransitionRecord{}, err
	}

	if cand.Version != req.ExpectedVersion {
		return models.Candidate{}, models.TransitionRecord{}, dErrors.Newf(dErrors.CodeVersionConflict,
			"expected version %d, candidate is at version %d", req.ExpectedVersion, cand.Version)
	}

	fromState := cand.State.Value(req.Axis)
	edge, err := registry.Lookup(req.Axis, fromState, req.ToState)
	if err != nil {
		return models.Candidate{}, models.TransitionRecord{}, err
	}
	if !edge.RoleAllowed(req.ActorRole) {
		return models.Candidate{}, models.TransitionRecord{}, dErrors.Newf(dErrors.CodeForbidden,
			"role %s may not perform %s -> %s on axis %s", req.ActorRole, fromState, req.ToState, req.Axis)
	}

	snap := models.Snapshot{Candidate: cand, Payload: req.Payload}
	results, reasons, err := guard.EvaluateAll(edge.Guards, snap)
	if err != nil {
		return models.Candidate{}, models.TransitionRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "guard evaluation failed")
	}
	if len(reasons) > 0 {
		if e.metrics != nil {
			for _, res := range results {
				if !res.Pass {
					e.metrics.GuardFailures.WithLabelValues(res.Name).Inc()
				}
			}
		}
		return models.Candidate{}, models.TransitionRecord{}, dErrors.Wrap(
			&GuardError{Results: results, Reasons: reasons},
			dErrors.CodeGuardFailed, "transition preconditions not met")
	}

	if err := e.applyPayload(&cand, req.Payload); err != nil {
		return models.Candidate{}, models.TransitionRecord{}, err
	}
	cand.State = cand.State.WithValue(req.Axis, req.ToState)
	cand.Version++
	cand.UpdatedAt = e.now()

	record := e.newRecord(cand, req.Axis, fromState, req.ToState, req.ActorRole, req.ActorID, req.Device, results, req.Payload)

	if err := e.candidates.Update(ctx, &cand, req.ExpectedVersion); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Candidate{}, models.TransitionRecord{}, dErrors.Newf(dErrors.CodeVersionConflict,
				"candidate moved past version %d", req.ExpectedVersion)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Candidate{}, models.TransitionRecord{}, dErrors.Newf(dErrors.CodeNotFound,
				"candidate %s not found", req.CandidateID)
		}
		return models.Candidate{}, models.TransitionRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update candidate")
	}
	if err := e.log.Append(ctx, &record); err != nil {
		return models.Candidate{}, models.TransitionRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
	}
	if err := e.enqueueEvent(ctx, cand, record); err != nil {
		return models.Candidate{}, models.TransitionRecord{}, err
	}
	return cand, record, nil
}

// applyPayload materializes payload keys with engine-level meaning onto the
// candidate. Unknown keys ride along to the audit record untouched.
func (e *Engine) applyPayload(cand *models.Candidate, payload models.Payload) error {
	raw := payload.Get(models.PayloadBatchID)
	if raw == "" {
		return nil
	}
	batchID, err := id.ParseBatchID(raw)
	if err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "invalid batch id %q", raw)
	}
	cand.BatchID = batchID
	return nil
}

func (e *Engine) newRecord(cand models.Candidate, axis models.Axis, from, to string, role id.Role, actorID, device string, results []models.GuardResult, payload models.Payload) models.TransitionRecord {
	recordID := uuid.New()
	return models.TransitionRecord{
		ID:            recordID,
		CandidateID:   cand.ID,
		Axis:          axis,
		FromState:     from,
		ToState:       to,
		ActorRole:     role,
		ActorID:       actorID,
		Device:        device,
		GuardResults:  results,
		Payload:       payload,
		Timestamp:     e.now(),
		CorrelationID: models.CorrelationID(cand.ID, recordID),
	}
}

func (e *Engine) enqueueEvent(ctx context.Context, cand models.Candidate, record models.TransitionRecord) error {
	event := dispatch.Event{
		CorrelationID: record.CorrelationID,
		CandidateID:   cand.ID.String(),
		Axis:          string(record.Axis),
		FromState:     record.FromState,
		ToState:       record.ToState,
		ActorRole:     string(record.ActorRole),
		Timestamp:     record.Timestamp,
	}
	if !cand.BatchID.IsNil() {
		event.BatchID = cand.BatchID.String()
	}
	payload, err := event.Encode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode transition event")
	}
	if err := e.outbox.Enqueue(ctx, dispatch.TopicTransitions, cand.ID.String(), payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue transition event")
	}
	return nil
}

func (e *Engine) loadCandidate(ctx context.Context, candidateID id.CandidateID) (models.Candidate, error) {
	cand, err := e.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Candidate{}, dErrors.Newf(dErrors.CodeNotFound, "candidate %s not found", candidateID)
		}
		return models.Candidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}
	return cand, nil
}

func (e *Engine) reject(req TransitionRequest, err error) {
	if e.metrics != nil {
		e.metrics.TransitionsRejected.WithLabelValues(string(req.Axis), string(dErrors.CodeOf(err))).Inc()
	}
	e.logger.Warn("transition rejected",
		"candidate_id", req.CandidateID,
		"axis", req.Axis,
		"to", req.ToState,
		"actor_role", req.ActorRole,
		"code", dErrors.CodeOf(err),
		"error", err)
}

// Candidate returns the current aggregate.
func (e *Engine) Candidate(ctx context.Context, candidateID id.CandidateID) (models.Candidate, error) {
	return e.loadCandidate(ctx, candidateID)
}

// History pages the candidate's audit trail in commit order. limit <= 0 uses
// the default page size.
func (e *Engine) History(ctx context.Context, candidateID id.CandidateID, afterSeq int64, limit int) ([]models.TransitionRecord, error) {
	if _, err := e.loadCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = audit.DefaultPageSize
	}
	records, err := e.log.History(ctx, candidateID, afterSeq, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	return records, nil
}

// AllowedTransitions lists, per axis, the target states the given role could
// request from the candidate's current state. Guards are not evaluated; this
// is the menu, not a promise of acceptance.
func (e *Engine) AllowedTransitions(ctx context.Context, candidateID id.CandidateID, role id.Role) (map[models.Axis][]string, error) {
	cand, err := e.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Axis][]string)
	for _, axis := range []models.Axis{models.AxisCounselling, models.AxisConsent, models.AxisDocuments, models.AxisPipeline} {
		for _, edge := range registry.AllowedTransitions(axis, cand.State.Value(axis)) {
			if edge.RoleAllowed(role) {
				out[axis] = append(out[axis], edge.To)
			}
		}
	}
	return out, nil
}

// BatchResult is one candidate's outcome within a batch transition.
type BatchResult struct {
	CandidateID id.CandidateID
	Record      models.TransitionRecord
	Err         error
}

// RequestBatchTransition applies the same transition to every candidate in a
// batch. Outcomes are independent: one candidate failing its guards does not
// roll back the others. Each candidate's current version is used as the
// expected version because the caller addresses the batch, not individual
// aggregates.
func (e *Engine) RequestBatchTransition(ctx context.Context, batchID id.BatchID, axis models.Axis, toState string, actorRole id.Role, actorID, device string, payload models.Payload) ([]BatchResult, error) {
	if batchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "batch id is required")
	}
	cands, err := e.candidates.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list batch candidates")
	}
	if len(cands) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no candidates in batch %s", batchID)
	}

	results := make([]BatchResult, 0, len(cands))
	for _, cand := range cands {
		_, record, err := e.RequestTransition(ctx, TransitionRequest{
			CandidateID:     cand.ID,
			Axis:            axis,
			ToState:         toState,
			ActorRole:       actorRole,
			ActorID:         actorID,
			Device:          device,
			ExpectedVersion: cand.Version,
			Payload:         payload,
		})
		res := BatchResult{CandidateID: cand.ID, Err: err}
		if err == nil {
			res.Record = record
		}
		results = append(results, res)
	}
	return results, nil
}

// Rebuild replays the candidate's full history and compares it against the
// stored aggregate. It returns the replayed state and version; a mismatch is
// reported as an invariant violation.
func (e *Engine) Rebuild(ctx context.Context, candidateID id.CandidateID) (models.LifecycleState, int64, error) {
	cand, err := e.loadCandidate(ctx, candidateID)
	if err != nil {
		return models.LifecycleState{}, 0, err
	}
	var records []models.TransitionRecord
	var afterSeq int64
	for {
		page, err := e.log.History(ctx, candidateID, afterSeq, audit.DefaultPageSize)
		if err != nil {
			return models.LifecycleState{}, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
		}
		records = append(records, page...)
		if len(page) < audit.DefaultPageSize {
			break
		}
		afterSeq = page[len(page)-1].Seq
	}
	state, version := audit.Replay(records)
	if state != cand.State || version != cand.Version {
		return state, version, dErrors.Newf(dErrors.CodeInvariantViolation,
			"replay diverges from stored aggregate: replayed version %d, stored %d", version, cand.Version)
	}
	return state, version, nil
}
