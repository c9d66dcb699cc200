package service

import (
	"context"
	"sync"
)

// StoreTx provides a transactional boundary for case mutations and their
// outbox events. Implementations may wrap a database transaction or, in
// memory, a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// inMemoryStoreTx serializes all case mutations behind one mutex. SOS volume
// is low; the transition engine's sharding is not needed here.
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
