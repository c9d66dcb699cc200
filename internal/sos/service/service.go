// Package service orchestrates the SOS case lifecycle: raising, assignment,
// resolution, and escalation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"disha/internal/dispatch"
	lifecyclemodels "disha/internal/lifecycle/models"
	"disha/internal/sos"
	"disha/internal/sos/models"
	"disha/internal/sos/store"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	"disha/pkg/platform/sentinel"
)

// CandidateDirectory resolves candidate references. SOS cases point at
// candidates but never mutate them.
type CandidateDirectory interface {
	FindByID(ctx context.Context, candidateID id.CandidateID) (lifecyclemodels.Candidate, error)
}

// updateRoles may work a case after it is raised. Raising is open to every
// authenticated role; field staff report problems, operations staff work them.
var updateRoles = map[id.Role]bool{
	id.RolePOC:           true,
	id.RoleCenterManager: true,
	id.RolePPCAdmin:      true,
	id.RoleStateHead:     true,
	id.RoleSystem:        true,
}

// Service owns SOS case state. Case changes and their outbound events commit
// through the same outbox pattern the transition engine uses.
type Service struct {
	cases      store.Store
	candidates CandidateDirectory
	outbox     dispatch.Outbox
	tx         StoreTx
	logger     *slog.Logger
	now        func() time.Time
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

func New(cases store.Store, candidates CandidateDirectory, outbox dispatch.Outbox, opts ...Option) *Service {
	s := &Service{
		cases:      cases,
		candidates: candidates,
		outbox:     outbox,
		tx:         newInMemoryStoreTx(),
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RaiseInput opens a new case.
type RaiseInput struct {
	CandidateID id.CandidateID
	Category    string
	Priority    models.Priority
	Description string
	RaisedBy    id.Role
	RaisedByID  string
}

// Raise opens a case against an existing candidate. Any authenticated role
// may raise; the candidate's lifecycle state is irrelevant.
func (s *Service) Raise(ctx context.Context, in RaiseInput) (models.Case, error) {
	if !in.RaisedBy.IsValid() {
		return models.Case{}, dErrors.Newf(dErrors.CodeValidation, "unknown actor role %q", in.RaisedBy)
	}
	if strings.TrimSpace(in.Category) == "" {
		return models.Case{}, dErrors.New(dErrors.CodeValidation, "category is required")
	}
	if _, err := models.ParsePriority(string(in.Priority)); err != nil {
		return models.Case{}, err
	}
	if _, err := s.candidates.FindByID(ctx, in.CandidateID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Case{}, dErrors.Newf(dErrors.CodeNotFound, "candidate %s not found", in.CandidateID)
		}
		return models.Case{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve candidate")
	}

	now := s.now()
	c := models.Case{
		ID:          id.NewCaseID(),
		CandidateID: in.CandidateID,
		Category:    strings.TrimSpace(in.Category),
		Priority:    in.Priority,
		Status:      models.StatusOpen,
		Description: strings.TrimSpace(in.Description),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.cases.Create(txCtx, &c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create sos case")
		}
		return s.enqueueEvent(txCtx, c)
	})
	if err != nil {
		return models.Case{}, err
	}

	s.logger.Info("sos case raised",
		"case_id", c.ID, "candidate_id", c.CandidateID, "priority", c.Priority, "raised_by", in.RaisedBy)
	return c, nil
}

// UpdateInput changes a case's status or assignment.
type UpdateInput struct {
	Status          models.Status
	AssignedPOCID   string
	ResolutionNote  string
	ExpectedVersion int64
	ActorRole       id.Role
	ActorID         string
}

// Update advances a case along open -> in_progress -> resolved. Moving to
// in_progress requires an assignee; resolving requires a note. Both rules
// exist so a dashboard never shows an untraceable closed case.
func (s *Service) Update(ctx context.Context, caseID id.CaseID, in UpdateInput) (models.Case, error) {
	if !updateRoles[in.ActorRole] {
		return models.Case{}, dErrors.Newf(dErrors.CodeForbidden, "role %s may not work sos cases", in.ActorRole)
	}
	if in.ExpectedVersion < 1 {
		return models.Case{}, dErrors.New(dErrors.CodeValidation, "expected version is required")
	}
	if _, err := models.ParseStatus(string(in.Status)); err != nil {
		return models.Case{}, err
	}

	var updated models.Case
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.load(txCtx, caseID)
		if err != nil {
			return err
		}
		if c.Version != in.ExpectedVersion {
			return dErrors.Newf(dErrors.CodeVersionConflict,
				"expected version %d, case is at version %d", in.ExpectedVersion, c.Version)
		}
		if !models.CanTransition(c.Status, in.Status) {
			return dErrors.Newf(dErrors.CodeUnknownTransition,
				"no status transition %s -> %s", c.Status, in.Status)
		}

		if in.AssignedPOCID != "" {
			c.AssignedPOCID = in.AssignedPOCID
		}
		switch in.Status {
		case models.StatusInProgress:
			if c.AssignedPOCID == "" {
				return dErrors.New(dErrors.CodeValidation, "an assigned poc is required to start work")
			}
		case models.StatusResolved:
			if strings.TrimSpace(in.ResolutionNote) == "" {
				return dErrors.New(dErrors.CodeValidation, "resolution note is required")
			}
			c.ResolutionNote = strings.TrimSpace(in.ResolutionNote)
			resolvedAt := s.now()
			c.ResolvedAt = &resolvedAt
		}
		c.Status = in.Status
		c.Version++
		c.UpdatedAt = s.now()

		if err := s.store(txCtx, &c, in.ExpectedVersion); err != nil {
			return err
		}
		updated = c
		return s.enqueueEvent(txCtx, c)
	})
	if err != nil {
		return models.Case{}, err
	}

	s.logger.Info("sos case updated",
		"case_id", updated.ID, "status", updated.Status, "actor_role", in.ActorRole)
	return updated, nil
}

// Escalate flags a case that has breached its attention window. Idempotent:
// escalating an already-escalated or resolved case is a no-op.
func (s *Service) Escalate(ctx context.Context, caseID id.CaseID) (models.Case, error) {
	var updated models.Case
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.load(txCtx, caseID)
		if err != nil {
			return err
		}
		if c.Escalated || !c.Open() {
			updated = c
			return nil
		}
		expectedVersion := c.Version
		c.Escalated = true
		c.Version++
		c.UpdatedAt = s.now()
		if err := s.store(txCtx, &c, expectedVersion); err != nil {
			return err
		}
		updated = c
		return s.enqueueEvent(txCtx, c)
	})
	if err != nil {
		return models.Case{}, err
	}
	return updated, nil
}

// Get returns one case.
func (s *Service) Get(ctx context.Context, caseID id.CaseID) (models.Case, error) {
	return s.load(ctx, caseID)
}

// ListByCandidate returns all cases referencing a candidate, oldest first.
func (s *Service) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]models.Case, error) {
	cases, err := s.cases.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sos cases")
	}
	return cases, nil
}

// ListOpen returns unresolved cases, optionally narrowed to one priority.
func (s *Service) ListOpen(ctx context.Context, priority models.Priority) ([]models.Case, error) {
	if priority != "" {
		if _, err := models.ParsePriority(string(priority)); err != nil {
			return nil, err
		}
	}
	cases, err := s.cases.ListOpen(ctx, priority)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open sos cases")
	}
	return cases, nil
}

func (s *Service) load(ctx context.Context, caseID id.CaseID) (models.Case, error) {
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Case{}, dErrors.Newf(dErrors.CodeNotFound, "sos case %s not found", caseID)
		}
		return models.Case{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sos case")
	}
	return c, nil
}

func (s *Service) store(ctx context.Context, c *models.Case, expectedVersion int64) error {
	if err := s.cases.Update(ctx, c, expectedVersion); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeVersionConflict, "case moved past version %d", expectedVersion)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "sos case %s not found", c.ID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update sos case")
	}
	return nil
}

func (s *Service) enqueueEvent(ctx context.Context, c models.Case) error {
	event := sos.Event{
		CorrelationID: models.CorrelationID(c.ID, c.Version),
		CaseID:        c.ID.String(),
		CandidateID:   c.CandidateID.String(),
		Priority:      string(c.Priority),
		Status:        string(c.Status),
		Escalated:     c.Escalated,
		Timestamp:     c.UpdatedAt,
	}
	payload, err := event.Encode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode sos event")
	}
	if err := s.outbox.Enqueue(ctx, sos.TopicCases, c.ID.String(), payload); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue sos event")
	}
	return nil
}
