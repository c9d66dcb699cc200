// Package handler exposes the lifecycle engine over HTTP. Authentication
// middleware has already resolved the actor; handlers translate between the
// wire shapes and engine requests and map coded errors onto status codes.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"disha/internal/lifecycle/engine"
	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/httputil"
	"disha/pkg/requestcontext"
)

// Service defines the engine operations the handler drives.
type Service interface {
	Intake(ctx context.Context, in engine.IntakeInput) (models.Candidate, error)
	RequestTransition(ctx context.Context, req engine.TransitionRequest) (models.Candidate, models.TransitionRecord, error)
	RequestBatchTransition(ctx context.Context, batchID id.BatchID, axis models.Axis, toState string, actorRole id.Role, actorID, device string, payload models.Payload) ([]engine.BatchResult, error)
	Candidate(ctx context.Context, candidateID id.CandidateID) (models.Candidate, error)
	History(ctx context.Context, candidateID id.CandidateID, afterSeq int64, limit int) ([]models.TransitionRecord, error)
	AllowedTransitions(ctx context.Context, candidateID id.CandidateID, role id.Role) (map[models.Axis][]string, error)
	Rebuild(ctx context.Context, candidateID id.CandidateID) (models.LifecycleState, int64, error)
}

// Handler wires lifecycle endpoints to the transition engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a lifecycle handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts lifecycle endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/candidates", h.HandleIntake)
	r.Get("/candidates/{candidateID}", h.HandleGetCandidate)
	r.Post("/candidates/{candidateID}/transitions", h.HandleTransition)
	r.Get("/candidates/{candidateID}/transitions", h.HandleAllowedTransitions)
	r.Get("/candidates/{candidateID}/history", h.HandleHistory)
	r.Post("/candidates/{candidateID}/rebuild", h.HandleRebuild)
	r.Post("/batches/{batchID}/transitions", h.HandleBatchTransition)
}

// HandleIntake handles POST /candidates.
func (h *Handler) HandleIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	role, actorID, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[IntakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cand, err := h.service.Intake(ctx, engine.IntakeInput{
		Name:      req.Name,
		Phone:     req.Phone,
		District:  req.District,
		ActorRole: role,
		ActorID:   actorID,
		Device:    requestcontext.Device(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "intake failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromCandidate(cand))
}

// HandleGetCandidate handles GET /candidates/{candidateID}.
func (h *Handler) HandleGetCandidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}

	cand, err := h.service.Candidate(ctx, candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCandidate(cand))
}

// HandleTransition handles POST /candidates/{candidateID}/transitions.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	role, actorID, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cand, record, err := h.service.RequestTransition(ctx, engine.TransitionRequest{
		CandidateID:     candidateID,
		Axis:            req.ParsedAxis(),
		ToState:         req.ToState,
		ActorRole:       role,
		ActorID:         actorID,
		Device:          requestcontext.Device(ctx),
		ExpectedVersion: req.ExpectedVersion,
		Payload:         models.Payload(req.Payload),
	})
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "transition accepted",
		"request_id", requestID,
		"candidate_id", candidateID,
		"axis", req.Axis,
		"to", req.ToState,
		"version", cand.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, TransitionResponse{
		Candidate: FromCandidate(cand),
		Record:    FromRecord(record),
	})
}

// HandleAllowedTransitions handles GET /candidates/{candidateID}/transitions.
func (h *Handler) HandleAllowedTransitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role, _, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}

	allowed, err := h.service.AllowedTransitions(ctx, candidateID, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, allowed)
}

// HandleHistory handles GET /candidates/{candidateID}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}

	afterSeq, err := queryInt64(r, "after_seq")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "after_seq must be an integer"))
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil || limit < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
		return
	}

	records, err := h.service.History(ctx, candidateID, afterSeq, int(limit))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pageSize := int(limit)
	if pageSize == 0 {
		pageSize = 100
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(records, pageSize))
}

// HandleRebuild handles POST /candidates/{candidateID}/rebuild.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role, _, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	if role != id.RolePPCAdmin && role != id.RoleMIS && role != id.RoleSystem {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "rebuild is restricted to operations roles"))
		return
	}
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}

	state, version, err := h.service.Rebuild(ctx, candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RebuildResponse{
		State: StateResponse{
			Counselling: string(state.Counselling),
			Consent:     string(state.Consent),
			Documents:   string(state.Documents),
			Pipeline:    string(state.Pipeline),
		},
		Version: version,
	})
}

// HandleBatchTransition handles POST /batches/{batchID}/transitions.
func (h *Handler) HandleBatchTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	role, actorID, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid batch id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[BatchTransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.RequestBatchTransition(ctx, batchID, req.ParsedAxis(), req.ToState,
		role, actorID, requestcontext.Device(ctx), models.Payload(req.Payload))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"results": FromBatchResults(results),
	})
}

// writeTransitionError renders guard failures as a full reason checklist and
// everything else as the standard envelope.
func (h *Handler) writeTransitionError(w http.ResponseWriter, err error) {
	var guardErr *engine.GuardError
	if errors.As(err, &guardErr) {
		httputil.WriteErrorReasons(w, err, guardErr.Reasons)
		return
	}
	httputil.WriteError(w, err)
}

func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (id.Role, string, bool) {
	role := requestcontext.ActorRole(ctx)
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", "", false
	}
	return role, requestcontext.ActorID(ctx), true
}

func (h *Handler) candidateID(w http.ResponseWriter, r *http.Request) (id.CandidateID, bool) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid candidate id"))
		return id.CandidateID{}, false
	}
	return candidateID, true
}

func queryInt64(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func errCode(err error) string    { return string(dErrors.CodeOf(err)) }
func errMessage(err error) string { return dErrors.MessageOf(err) }
