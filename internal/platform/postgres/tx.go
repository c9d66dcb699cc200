package postgres

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "disha/pkg/platform/tx"
)

// TxRunner runs a function inside one SQL transaction carried through
// context, so the candidate store, audit log and outbox share a single
// atomic commit. Row-level locks and version CAS handle per-candidate
// contention; no process-local locking is needed on this path.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
