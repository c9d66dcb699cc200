package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"disha/internal/sos/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
	txcontext "disha/pkg/platform/tx"
)

// PostgresStore persists SOS cases in the sos_cases table. Version is
// CAS-checked on every update, mirroring the candidate store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const caseColumns = `id, candidate_id, category, priority, status, assigned_poc_id,
	description, resolution_note, escalated, version, created_at, updated_at, resolved_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO sos_cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.CandidateID), c.Category, string(c.Priority), string(c.Status),
		c.AssignedPOCID, c.Description, c.ResolutionNote, c.Escalated, c.Version,
		c.CreatedAt, c.UpdatedAt, c.ResolvedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert sos case: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, caseID id.CaseID) (models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM sos_cases WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(caseID))
	c, err := scanCase(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Case{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Case{}, fmt.Errorf("find sos case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM sos_cases WHERE candidate_id = $1 ORDER BY created_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(candidateID))
	if err != nil {
		return nil, fmt.Errorf("list sos cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (s *PostgresStore) ListOpen(ctx context.Context, priority models.Priority) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM sos_cases WHERE status <> 'resolved'`
	args := []any{}
	if priority != "" {
		query += ` AND priority = $1`
		args = append(args, string(priority))
	}
	query += ` ORDER BY created_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open sos cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Case, expectedVersion int64) error {
	query := `
		UPDATE sos_cases
		SET priority = $1, status = $2, assigned_poc_id = $3, resolution_note = $4,
		    escalated = $5, version = $6, updated_at = $7, resolved_at = $8
		WHERE id = $9 AND version = $10
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(c.Priority), string(c.Status), c.AssignedPOCID, c.ResolutionNote,
		c.Escalated, c.Version, c.UpdatedAt, c.ResolvedAt,
		uuid.UUID(c.ID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update sos case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sos case: %w", err)
	}
	if affected == 0 {
		// Either the case is gone or the version moved; probe to tell.
		if _, findErr := s.FindByID(ctx, c.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func scanCase(scan func(dest ...any) error) (models.Case, error) {
	var (
		c          models.Case
		caseID     uuid.UUID
		candID     uuid.UUID
		priority   string
		status     string
		resolvedAt sql.NullTime
	)
	err := scan(&caseID, &candID, &c.Category, &priority, &status, &c.AssignedPOCID,
		&c.Description, &c.ResolutionNote, &c.Escalated, &c.Version,
		&c.CreatedAt, &c.UpdatedAt, &resolvedAt)
	if err != nil {
		return models.Case{}, err
	}
	c.ID = id.CaseID(caseID)
	c.CandidateID = id.CandidateID(candID)
	c.Priority = models.Priority(priority)
	c.Status = models.Status(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		c.ResolvedAt = &t
	}
	return c, nil
}

func scanCases(rows *sql.Rows) ([]models.Case, error) {
	var out []models.Case
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan sos case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sos cases: %w", err)
	}
	return out, nil
}
