package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
	txcontext "disha/pkg/platform/tx"
)

// PostgresLog persists transition records in the transition_records table.
// The BIGSERIAL seq column is the commit sequence; History and All order by
// it, never by timestamp, so reads stay correct under clock skew.
type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the context transaction when the engine runs this append
// inside its atomic commit, and the pool otherwise.
func (l *PostgresLog) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return l.db
}

func (l *PostgresLog) Append(ctx context.Context, record *models.TransitionRecord) error {
	guardJSON, err := json.Marshal(record.GuardResults)
	if err != nil {
		return fmt.Errorf("marshal guard results: %w", err)
	}
	payloadJSON, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO transition_records (
			id, candidate_id, axis, from_state, to_state,
			actor_role, actor_id, device, guard_results, payload,
			correlation_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq
	`
	err = l.execer(ctx).QueryRowContext(ctx, query,
		record.ID,
		uuid.UUID(record.CandidateID),
		string(record.Axis),
		record.FromState,
		record.ToState,
		string(record.ActorRole),
		record.ActorID,
		record.Device,
		guardJSON,
		payloadJSON,
		record.CorrelationID,
		record.Timestamp,
	).Scan(&record.Seq)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "append transition record")
	}
	return nil
}

func (l *PostgresLog) History(ctx context.Context, candidateID id.CandidateID, afterSeq int64, limit int) ([]models.TransitionRecord, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	query := `
		SELECT seq, id, candidate_id, axis, from_state, to_state,
		       actor_role, actor_id, device, guard_results, payload,
		       correlation_id, created_at
		FROM transition_records
		WHERE candidate_id = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3
	`
	rows, err := l.execer(ctx).QueryContext(ctx, query, uuid.UUID(candidateID), afterSeq, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load candidate history")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (l *PostgresLog) All(ctx context.Context, afterSeq int64, limit int) ([]models.TransitionRecord, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	query := `
		SELECT seq, id, candidate_id, axis, from_state, to_state,
		       actor_role, actor_id, device, guard_results, payload,
		       correlation_id, created_at
		FROM transition_records
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`
	rows, err := l.execer(ctx).QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load transition records")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.TransitionRecord, error) {
	var out []models.TransitionRecord
	for rows.Next() {
		var (
			rec         models.TransitionRecord
			candidateID uuid.UUID
			axis        string
			role        string
			guardJSON   []byte
			payloadJSON []byte
		)
		if err := rows.Scan(
			&rec.Seq, &rec.ID, &candidateID, &axis, &rec.FromState, &rec.ToState,
			&role, &rec.ActorID, &rec.Device, &guardJSON, &payloadJSON,
			&rec.CorrelationID, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan transition record: %w", err)
		}
		rec.CandidateID = id.CandidateID(candidateID)
		rec.Axis = models.Axis(axis)
		rec.ActorRole = id.Role(role)
		if err := json.Unmarshal(guardJSON, &rec.GuardResults); err != nil {
			return nil, fmt.Errorf("unmarshal guard results: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
