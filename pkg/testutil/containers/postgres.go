//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"disha/internal/platform/postgres"
)

// PostgresContainer wraps a disposable PostgreSQL instance with the schema
// already applied.
type PostgresContainer struct {
	DSN string
	DB  *sql.DB
}

// NewPostgresContainer starts PostgreSQL, applies the schema and returns an
// open pool. The container is terminated when the test finishes.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("disha"),
		tcpostgres.WithUsername("disha"),
		tcpostgres.WithPassword("disha"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	return &PostgresContainer{DSN: dsn, DB: db}
}

// Truncate empties the given tables so suites sharing one container stay
// isolated.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
