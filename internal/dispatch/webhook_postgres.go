package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"disha/pkg/platform/sentinel"
)

// PostgresSubscriberStore persists webhook subscribers.
type PostgresSubscriberStore struct {
	db *sql.DB
}

func NewPostgresSubscriberStore(db *sql.DB) *PostgresSubscriberStore {
	return &PostgresSubscriberStore{db: db}
}

const subscriberColumns = `id, name, url, secret_hash, active, created_at`

func (s *PostgresSubscriberStore) Create(ctx context.Context, sub Subscriber) error {
	query := `
		INSERT INTO webhook_subscribers (` + subscriberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.Name, sub.URL, sub.SecretHash, sub.Active, sub.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert webhook subscriber: %w", err)
	}
	return nil
}

func (s *PostgresSubscriberStore) FindByID(ctx context.Context, id uuid.UUID) (Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM webhook_subscribers WHERE id = $1`
	var sub Subscriber
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.Name, &sub.URL, &sub.SecretHash, &sub.Active, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Subscriber{}, fmt.Errorf("find webhook subscriber: %w", err)
	}
	return sub, nil
}

func (s *PostgresSubscriberStore) ListActive(ctx context.Context) ([]Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM webhook_subscribers WHERE active ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list webhook subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.URL, &sub.SecretHash, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresSubscriberStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE webhook_subscribers SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate webhook subscriber: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate webhook subscriber: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
