package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "disha/pkg/platform/tx"
)

// PostgresOutbox implements the transactional outbox over two tables:
// outbox (active queue) and outbox_dead_letters. Enqueue honors a context
// transaction so the outbox row commits atomically with the transition that
// produced it.
type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (o *PostgresOutbox) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return o.db
}

func (o *PostgresOutbox) Enqueue(ctx context.Context, topic, key string, payload []byte) error {
	query := `
		INSERT INTO outbox (id, topic, key, payload, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
	`
	now := time.Now()
	if _, err := o.execer(ctx).ExecContext(ctx, query, uuid.New(), topic, key, payload, now); err != nil {
		return fmt.Errorf("enqueue outbox entry: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) NextBatch(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	// FOR UPDATE SKIP LOCKED partitions the due set between concurrent
	// relays for the duration of the statement (or of the caller's
	// transaction, when one is on the context). Outside a transaction the
	// locks drop at statement end, so overlapping polls can still hand the
	// same entry to two relays; the resulting duplicate publish is handled
	// by consumer-side dedupe, like any at-least-once redelivery.
	query := `
		SELECT id, topic, key, payload, attempts, next_attempt_at, last_error, created_at
		FROM outbox
		WHERE next_attempt_at <= $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := o.execer(ctx).QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			lastErr sql.NullString
			nextAt  sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Topic, &e.Key, &e.Payload, &e.Attempts, &nextAt, &lastErr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if nextAt.Valid {
			e.NextAttemptAt = nextAt.Time
		}
		e.LastError = lastErr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (o *PostgresOutbox) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	if _, err := o.execer(ctx).ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, entryID); err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) MarkFailed(ctx context.Context, entryID uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $1, next_attempt_at = $2
		WHERE id = $3
	`
	if _, err := o.execer(ctx).ExecContext(ctx, query, lastError, nextAttemptAt, entryID); err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) DeadLetter(ctx context.Context, entryID uuid.UUID, reason string) error {
	// attempts + 1: the attempt that exhausted the entry counts too.
	query := `
		WITH moved AS (
			DELETE FROM outbox WHERE id = $1
			RETURNING id, topic, key, payload, attempts, created_at
		)
		INSERT INTO outbox_dead_letters (id, topic, key, payload, attempts, reason, created_at, dead_at)
		SELECT id, topic, key, payload, attempts + 1, $2, created_at, $3 FROM moved
	`
	if _, err := o.execer(ctx).ExecContext(ctx, query, entryID, reason, time.Now()); err != nil {
		return fmt.Errorf("dead-letter outbox entry: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, topic, key, payload, attempts, reason, created_at, dead_at
		FROM outbox_dead_letters
		ORDER BY dead_at DESC
		LIMIT $1
	`
	rows, err := o.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(&d.ID, &d.Topic, &d.Key, &d.Payload, &d.Attempts, &d.Reason, &d.CreatedAt, &d.DeadAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
