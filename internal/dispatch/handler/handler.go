// Package handler is the operations surface of the dispatcher: webhook
// subscriber management and dead-letter inspection.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"disha/internal/dispatch"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/httputil"
	"disha/pkg/platform/sentinel"
	"disha/pkg/requestcontext"
)

// HeaderSubscriberSecret authenticates subscriber self-service calls. The
// plaintext secret is held only by the subscriber.
const HeaderSubscriberSecret = "X-Subscriber-Secret"

// deadLetterPageSize bounds the inspection listing.
const deadLetterPageSize = 200

type Handler struct {
	subscribers dispatch.SubscriberStore
	outbox      dispatch.Outbox
	logger      *slog.Logger
	now         func() time.Time
}

func New(subscribers dispatch.SubscriberStore, outbox dispatch.Outbox, logger *slog.Logger) *Handler {
	return &Handler{
		subscribers: subscribers,
		outbox:      outbox,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts dispatcher operations endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks", h.HandleRegisterSubscriber)
	r.Get("/webhooks", h.HandleListSubscribers)
	r.Delete("/webhooks/{subscriberID}", h.HandleDeregisterSubscriber)
	r.Get("/dead-letters", h.HandleListDeadLetters)
}

// HandleRegisterSubscriber handles POST /webhooks. The response carries the
// generated secret exactly once; it cannot be recovered afterwards.
func (h *Handler) HandleRegisterSubscriber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireOperationsRole(w, ctx) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterSubscriberRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	secret, err := dispatch.GenerateSecret()
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret"))
		return
	}
	hash, err := dispatch.HashSecret(secret)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret"))
		return
	}

	sub := dispatch.Subscriber{
		ID:         uuid.New(),
		Name:       req.Name,
		URL:        req.URL,
		SecretHash: hash,
		Active:     true,
		CreatedAt:  h.now(),
	}
	if err := h.subscribers.Create(ctx, sub); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register subscriber"))
		return
	}

	h.logger.InfoContext(ctx, "webhook subscriber registered", "subscriber_id", sub.ID, "url", sub.URL)
	httputil.WriteJSON(w, http.StatusCreated, RegisteredSubscriberResponse{
		ID:        sub.ID.String(),
		Name:      sub.Name,
		URL:       sub.URL,
		Secret:    secret,
		CreatedAt: sub.CreatedAt,
	})
}

// HandleListSubscribers handles GET /webhooks. Secrets and hashes are never
// returned.
func (h *Handler) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireOperationsRole(w, ctx) {
		return
	}
	subs, err := h.subscribers.ListActive(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscribers"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubscribers(subs))
}

// HandleDeregisterSubscriber handles DELETE /webhooks/{subscriberID}.
// Subscribers deregister themselves by presenting their secret; operations
// roles may deregister without one.
func (h *Handler) HandleDeregisterSubscriber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriberID, err := uuid.Parse(chi.URLParam(r, "subscriberID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid subscriber id"))
		return
	}

	sub, err := h.subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "subscriber not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subscriber"))
		return
	}

	if !h.operationsRole(ctx) {
		secret := r.Header.Get(HeaderSubscriberSecret)
		if secret == "" || !dispatch.VerifySecret(sub.SecretHash, secret) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "subscriber secret required"))
			return
		}
	}

	if err := h.subscribers.Deactivate(ctx, subscriberID); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deregister subscriber"))
		return
	}
	h.logger.InfoContext(ctx, "webhook subscriber deregistered", "subscriber_id", subscriberID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListDeadLetters handles GET /dead-letters.
func (h *Handler) HandleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireOperationsRole(w, ctx) {
		return
	}
	letters, err := h.outbox.ListDeadLetters(ctx, deadLetterPageSize)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list dead letters"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDeadLetters(letters))
}

func (h *Handler) requireOperationsRole(w http.ResponseWriter, ctx context.Context) bool {
	role := requestcontext.ActorRole(ctx)
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return false
	}
	if role != id.RolePPCAdmin && role != id.RoleMIS && role != id.RoleSystem {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "restricted to operations roles"))
		return false
	}
	return true
}

func (h *Handler) operationsRole(ctx context.Context) bool {
	switch requestcontext.ActorRole(ctx) {
	case id.RolePPCAdmin, id.RoleMIS, id.RoleSystem:
		return true
	default:
		return false
	}
}

// validateURL rejects targets the deliverer could never reach.
func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return dErrors.New(dErrors.CodeValidation, "url must be absolute http(s)")
	}
	return nil
}
