// Package handler exposes the travel-letter workflow to the center manager
// and PPC admin screens.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	travelmodels "disha/internal/travel/models"
	"disha/internal/travel/service"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/httputil"
	"disha/pkg/requestcontext"
)

// Service defines the travel-letter operations the handler drives.
type Service interface {
	Advance(ctx context.Context, letterID id.LetterID, in service.AdvanceInput) (travelmodels.Request, error)
	Get(ctx context.Context, letterID id.LetterID) (travelmodels.Request, error)
	GetByBatch(ctx context.Context, batchID id.BatchID) (travelmodels.Request, error)
	List(ctx context.Context, status travelmodels.Status) ([]travelmodels.Request, error)
}

// Handler wires travel-letter endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a travel-letter handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts travel-letter endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/travel-letters", h.HandleList)
	r.Get("/travel-letters/{letterID}", h.HandleGet)
	r.Patch("/travel-letters/{letterID}", h.HandleAdvance)
	r.Get("/batches/{batchID}/travel-letter", h.HandleGetByBatch)
}

// HandleAdvance handles PATCH /travel-letters/{letterID}.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	role := requestcontext.ActorRole(ctx)
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	letterID, ok := h.letterID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AdvanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	letter, err := h.service.Advance(ctx, letterID, service.AdvanceInput{
		Status:          req.ParsedStatus(),
		ExpectedVersion: req.ExpectedVersion,
		ActorRole:       role,
		ActorID:         requestcontext.ActorID(ctx),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(letter))
}

// HandleGet handles GET /travel-letters/{letterID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	letterID, ok := h.letterID(w, r)
	if !ok {
		return
	}
	letter, err := h.service.Get(r.Context(), letterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(letter))
}

// HandleGetByBatch handles GET /batches/{batchID}/travel-letter.
func (h *Handler) HandleGetByBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := id.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid batch id"))
		return
	}
	letter, err := h.service.GetByBatch(r.Context(), batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(letter))
}

// HandleList handles GET /travel-letters?status=requested.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := travelmodels.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	letters, err := h.service.List(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequests(letters))
}

func (h *Handler) letterID(w http.ResponseWriter, r *http.Request) (id.LetterID, bool) {
	letterID, err := id.ParseLetterID(chi.URLParam(r, "letterID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid travel letter id"))
		return id.LetterID{}, false
	}
	return letterID, true
}
