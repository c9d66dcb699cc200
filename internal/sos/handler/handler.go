// Package handler exposes the SOS overlay API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	sosmodels "disha/internal/sos/models"
	"disha/internal/sos/service"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/httputil"
	"disha/pkg/requestcontext"
)

// Service defines the SOS operations the handler drives.
type Service interface {
	Raise(ctx context.Context, in service.RaiseInput) (sosmodels.Case, error)
	Update(ctx context.Context, caseID id.CaseID, in service.UpdateInput) (sosmodels.Case, error)
	Get(ctx context.Context, caseID id.CaseID) (sosmodels.Case, error)
	ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]sosmodels.Case, error)
	ListOpen(ctx context.Context, priority sosmodels.Priority) ([]sosmodels.Case, error)
}

// Handler wires SOS endpoints to the case service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an SOS handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts SOS endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sos", h.HandleRaise)
	r.Get("/sos", h.HandleListOpen)
	r.Get("/sos/{caseID}", h.HandleGet)
	r.Patch("/sos/{caseID}", h.HandleUpdate)
	r.Get("/candidates/{candidateID}/sos", h.HandleListByCandidate)
}

// HandleRaise handles POST /sos.
func (h *Handler) HandleRaise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	role := requestcontext.ActorRole(ctx)
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RaiseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Raise(ctx, service.RaiseInput{
		CandidateID: req.ParsedCandidateID(),
		Category:    req.Category,
		Priority:    req.ParsedPriority(),
		Description: req.Description,
		RaisedBy:    role,
		RaisedByID:  requestcontext.ActorID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "sos raise failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCase(c))
}

// HandleUpdate handles PATCH /sos/{caseID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	role := requestcontext.ActorRole(ctx)
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Update(ctx, caseID, service.UpdateInput{
		Status:          req.ParsedStatus(),
		AssignedPOCID:   req.AssignedPOCID,
		ResolutionNote:  req.ResolutionNote,
		ExpectedVersion: req.ExpectedVersion,
		ActorRole:       role,
		ActorID:         requestcontext.ActorID(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(c))
}

// HandleGet handles GET /sos/{caseID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.caseID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCase(c))
}

// HandleListOpen handles GET /sos?priority=critical.
func (h *Handler) HandleListOpen(w http.ResponseWriter, r *http.Request) {
	priority := sosmodels.Priority(strings.TrimSpace(r.URL.Query().Get("priority")))
	cases, err := h.service.ListOpen(r.Context(), priority)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCases(cases))
}

// HandleListByCandidate handles GET /candidates/{candidateID}/sos.
func (h *Handler) HandleListByCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid candidate id"))
		return
	}
	cases, err := h.service.ListByCandidate(r.Context(), candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCases(cases))
}

func (h *Handler) caseID(w http.ResponseWriter, r *http.Request) (id.CaseID, bool) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid case id"))
		return id.CaseID{}, false
	}
	return caseID, true
}
