// Package handler serves the named read views to dashboards.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"disha/internal/projection"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/httputil"
	"disha/pkg/requestcontext"
)

// Views reads snapshots; Rebuilder repairs them. Both are implemented in
// internal/projection.
type Views interface {
	Snapshot(ctx context.Context, view string) (projection.Snapshot, error)
}

type Rebuilder interface {
	Rebuild(ctx context.Context, view string) (projection.Snapshot, error)
}

type Handler struct {
	views     Views
	rebuilder Rebuilder
	logger    *slog.Logger
}

func New(views Views, rebuilder Rebuilder, logger *slog.Logger) *Handler {
	return &Handler{views: views, rebuilder: rebuilder, logger: logger}
}

// Register mounts projection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/projections/{name}", h.HandleSnapshot)
	r.Post("/projections/{name}/rebuild", h.HandleRebuild)
}

// HandleSnapshot handles GET /projections/{name}. The response carries the
// view version; clients compare versions across polls to detect staleness.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !projection.KnownView(name) {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "unknown projection %q", name))
		return
	}
	snap, err := h.views.Snapshot(r.Context(), name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "projection read failed", "view", name, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read projection"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleRebuild handles POST /projections/{name}/rebuild.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role := requestcontext.ActorRole(ctx)
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if role != id.RolePPCAdmin && role != id.RoleMIS && role != id.RoleSystem {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "rebuild is restricted to operations roles"))
		return
	}
	name := chi.URLParam(r, "name")
	snap, err := h.rebuilder.Rebuild(ctx, name)
	if err != nil {
		h.logger.ErrorContext(ctx, "projection rebuild failed", "view", name, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}
