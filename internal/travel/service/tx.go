package service

import (
	"context"
	"sync"
)

// StoreTx provides a transactional boundary for request mutations and their
// outbox events. Implementations may wrap a database transaction or, in
// memory, a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// inMemoryStoreTx serializes all request mutations behind one mutex. One
// request exists per batch, so contention is negligible.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() StoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
