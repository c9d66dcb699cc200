package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"disha/internal/travel/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
	txcontext "disha/pkg/platform/tx"
)

// PostgresStore persists requests in the travel_letter_requests table. The
// unique index on batch_id enforces one request per batch; version is
// CAS-checked on update.
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

const letterColumns = `id, batch_id, status, requested_by, approved_by, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO travel_letter_requests (` + letterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID), uuid.UUID(req.BatchID), string(req.Status),
		req.RequestedBy, req.ApprovedBy, req.Version, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert travel letter request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, letterID id.LetterID) (models.Request, error) {
	query := `SELECT ` + letterColumns + ` FROM travel_letter_requests WHERE id = $1`
	return s.findOne(ctx, query, uuid.UUID(letterID))
}

func (s *PostgresStore) FindByBatch(ctx context.Context, batchID id.BatchID) (models.Request, error) {
	query := `SELECT ` + letterColumns + ` FROM travel_letter_requests WHERE batch_id = $1`
	return s.findOne(ctx, query, uuid.UUID(batchID))
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (models.Request, error) {
	row := s.execer(ctx).QueryRowContext(ctx, query, arg)
	req, err := scanRequest(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Request{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Request{}, fmt.Errorf("find travel letter request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) List(ctx context.Context, status models.Status) ([]models.Request, error) {
	query := `SELECT ` + letterColumns + ` FROM travel_letter_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list travel letter requests: %w", err)
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan travel letter request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate travel letter requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, req *models.Request, expectedVersion int64) error {
	query := `
		UPDATE travel_letter_requests
		SET status = $1, requested_by = $2, approved_by = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(req.Status), req.RequestedBy, req.ApprovedBy, req.Version, req.UpdatedAt,
		uuid.UUID(req.ID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update travel letter request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update travel letter request: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, req.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func scanRequest(scan func(dest ...any) error) (models.Request, error) {
	var (
		req      models.Request
		letterID uuid.UUID
		batchID  uuid.UUID
		status   string
	)
	err := scan(&letterID, &batchID, &status, &req.RequestedBy, &req.ApprovedBy,
		&req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return models.Request{}, err
	}
	req.ID = id.LetterID(letterID)
	req.BatchID = id.BatchID(batchID)
	req.Status = models.Status(status)
	return req, nil
}
