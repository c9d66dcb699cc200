// Package service orchestrates the travel-letter workflow: automatic
// creation when a batch becomes travel-eligible, the center manager's
// request, and the PPC admin's approval chain.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"disha/internal/dispatch"
	"disha/internal/travel"
	"disha/internal/travel/models"
	"disha/internal/travel/store"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/sentinel"
)

// statusRoles names which role drives each status move.
var statusRoles = map[models.Status]id.Role{
	models.StatusRequested:       id.RoleCenterManager,
	models.StatusPendingApproval: id.RolePPCAdmin,
	models.StatusAvailable:       id.RolePPCAdmin,
}

// Service owns travel-letter request state. Every accepted change is written
// together with its outbound event, so the batch travel status view never
// misses an update.
type Service struct {
	letters store.Store
	outbox  dispatch.Outbox
	tx      StoreTx
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(letters store.Store, outbox dispatch.Outbox, opts ...Option) *Service {
	s := &Service{
		letters: letters,
		outbox:  outbox,
		tx:      newInMemoryStoreTx(),
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureForBatch creates the batch's request in not_requested if it does not
// exist yet. Idempotent: redelivered transition events land here, so a
// conflict means the request already exists and is returned as-is.
func (s *Service) EnsureForBatch(ctx context.Context, batchID id.BatchID) (models.Request, error) {
	if batchID.IsNil() {
		return models.Request{}, dErrors.New(dErrors.CodeValidation, "batch id is required")
	}
	now := s.now()
	req := models.Request{
		ID:        id.NewLetterID(),
		BatchID:   batchID,
		Status:    models.StatusNotRequested,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.letters.Create(txCtx, &req); err != nil {
			return err
		}
		return s.enqueueEvent(txCtx, req)
	})
	if err == nil {
		s.logger.Info("travel letter request created", "letter_id", req.ID, "batch_id", batchID)
		return req, nil
	}
	if errors.Is(err, sentinel.ErrConflict) {
		existing, findErr := s.letters.FindByBatch(ctx, batchID)
		if findErr != nil {
			return models.Request{}, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load travel letter request")
		}
		return existing, nil
	}
	return models.Request{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create travel letter request")
}

// AdvanceInput moves a request one status forward.
type AdvanceInput struct {
	Status          models.Status
	ExpectedVersion int64
	ActorRole       id.Role
	ActorID         string
}

// Advance applies one status move. The role table decides who may drive
// each edge; available records the approver.
func (s *Service) Advance(ctx context.Context, letterID id.LetterID, in AdvanceInput) (models.Request, error) {
	requiredRole, ok := statusRoles[in.Status]
	if !ok {
		return models.Request{}, dErrors.Newf(dErrors.CodeValidation, "status %q cannot be requested directly", in.Status)
	}
	if in.ActorRole != requiredRole && in.ActorRole != id.RoleSystem {
		return models.Request{}, dErrors.Newf(dErrors.CodeForbidden,
			"role %s may not move a travel letter to %s", in.ActorRole, in.Status)
	}
	if in.ExpectedVersion < 1 {
		return models.Request{}, dErrors.New(dErrors.CodeValidation, "expected version is required")
	}

	req, err := s.load(ctx, letterID)
	if err != nil {
		return models.Request{}, err
	}
	if req.Version != in.ExpectedVersion {
		return models.Request{}, dErrors.Newf(dErrors.CodeVersionConflict,
			"expected version %d, request is at version %d", in.ExpectedVersion, req.Version)
	}
	if !models.CanTransition(req.Status, in.Status) {
		return models.Request{}, dErrors.Newf(dErrors.CodeUnknownTransition,
			"no status transition %s -> %s", req.Status, in.Status)
	}

	switch in.Status {
	case models.StatusRequested:
		req.RequestedBy = in.ActorID
	case models.StatusAvailable:
		req.ApprovedBy = in.ActorID
	}
	req.Status = in.Status
	req.Version++
	req.UpdatedAt = s.now()

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.letters.Update(txCtx, &req, in.ExpectedVersion); err != nil {
			return err
		}
		return s.enqueueEvent(txCtx, req)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Request{}, dErrors.Newf(dErrors.CodeVersionConflict,
				"request moved past version %d", in.ExpectedVersion)
		}
		return models.Request{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update travel letter request")
	}

	s.logger.Info("travel letter request advanced",
		"letter_id", req.ID, "batch_id", req.BatchID, "status", req.Status, "actor_role", in.ActorRole)
	return req, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, letterID id.LetterID) (models.Request, error) {
	return s.load(ctx, letterID)
}

// GetByBatch returns the batch's request.
func (s *Service) GetByBatch(ctx context.Context, batchID id.BatchID) (models.Request, error) {
	req, err := s.letters.FindByBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Request{}, dErrors.Newf(dErrors.CodeNotFound, "no travel letter request for batch %s", batchID)
		}
		return models.Request{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load travel letter request")
	}
	return req, nil
}

// List returns requests, optionally narrowed to one status.
func (s *Service) List(ctx context.Context, status models.Status) ([]models.Request, error) {
	if status != "" {
		if _, err := models.ParseStatus(string(status)); err != nil {
			return nil, err
		}
	}
	requests, err := s.letters.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list travel letter requests")
	}
	return requests, nil
}

func (s *Service) enqueueEvent(ctx context.Context, req models.Request) error {
	event := travel.Event{
		CorrelationID: models.CorrelationID(req.ID, req.Version),
		LetterID:      req.ID.String(),
		BatchID:       req.BatchID.String(),
		Status:        string(req.Status),
		Timestamp:     req.UpdatedAt,
	}
	payload, err := event.Encode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode travel letter event")
	}
	if err := s.outbox.Enqueue(ctx, travel.TopicLetters, req.BatchID.String(), payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue travel letter event")
	}
	return nil
}

func (s *Service) load(ctx context.Context, letterID id.LetterID) (models.Request, error) {
	req, err := s.letters.FindByID(ctx, letterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Request{}, dErrors.Newf(dErrors.CodeNotFound, "travel letter request %s not found", letterID)
		}
		return models.Request{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load travel letter request")
	}
	return req, nil
}
