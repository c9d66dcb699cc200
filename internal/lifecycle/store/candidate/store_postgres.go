package candidate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
	txcontext "disha/pkg/platform/tx"
)

// PostgresStore persists candidates in the candidates table. The lifecycle
// state tuple is stored as JSONB; version is CAS-checked on every update so
// concurrent writers are strictly ordered.
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

func (s *PostgresStore) Create(ctx context.Context, cand *models.Candidate) error {
	stateJSON, err := json.Marshal(cand.State)
	if err != nil {
		return fmt.Errorf("marshal lifecycle state: %w", err)
	}
	query := `
		INSERT INTO candidates (id, name, phone, district, batch_id, state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(cand.ID), cand.Name, cand.Phone, cand.District,
		nullableBatch(cand.BatchID), stateJSON, cand.Version,
		cand.CreatedAt, cand.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, candidateID id.CandidateID) (models.Candidate, error) {
	query := `
		SELECT id, name, phone, district, batch_id, state, version, created_at, updated_at
		FROM candidates
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(candidateID))
	cand, err := scanCandidate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Candidate{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("find candidate: %w", err)
	}
	return cand, nil
}

func (s *PostgresStore) ListByBatch(ctx context.Context, batchID id.BatchID) ([]models.Candidate, error) {
	query := `
		SELECT id, name, phone, district, batch_id, state, version, created_at, updated_at
		FROM candidates
		WHERE batch_id = $1
		ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(batchID))
	if err != nil {
		return nil, fmt.Errorf("list batch candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		cand, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, cand *models.Candidate, expectedVersion int64) error {
	stateJSON, err := json.Marshal(cand.State)
	if err != nil {
		return fmt.Errorf("marshal lifecycle state: %w", err)
	}
	query := `
		UPDATE candidates
		SET batch_id = $1, state = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		nullableBatch(cand.BatchID), stateJSON, cand.Version, cand.UpdatedAt,
		uuid.UUID(cand.ID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update candidate affected rows: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer advanced the version.
		if _, findErr := s.FindByID(ctx, cand.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func nullableBatch(batchID id.BatchID) any {
	if batchID.IsNil() {
		return nil
	}
	return uuid.UUID(batchID)
}

func scanCandidate(scan func(dest ...any) error) (models.Candidate, error) {
	var (
		cand      models.Candidate
		candID    uuid.UUID
		batchID   uuid.NullUUID
		stateJSON []byte
	)
	if err := scan(&candID, &cand.Name, &cand.Phone, &cand.District,
		&batchID, &stateJSON, &cand.Version, &cand.CreatedAt, &cand.UpdatedAt); err != nil {
		return models.Candidate{}, err
	}
	cand.ID = id.CandidateID(candID)
	if batchID.Valid {
		cand.BatchID = id.BatchID(batchID.UUID)
	}
	if err := json.Unmarshal(stateJSON, &cand.State); err != nil {
		return models.Candidate{}, fmt.Errorf("unmarshal lifecycle state: %w", err)
	}
	return cand, nil
}
