package engine

import (
	"context"
	"sync"
	"time"

	dErrors "disha/pkg/domain-errors"
)

// StoreTx provides the atomic boundary for a transition commit: candidate
// update, audit append, and outbox enqueue either all land or none do.
// Implementations may wrap a database transaction or, in-memory, a sharded
// lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// shardedTx serializes commits per candidate using sharded mutexes. Instead
// of a single global lock, operations are distributed across N shards based
// on a hash of the candidate ID, reducing contention under concurrent load.
const numShards = 128

// defaultTxTimeout is the maximum duration for a transition commit.
const defaultTxTimeout = 5 * time.Second

type shardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns the in-memory commit boundary used with the memory
// stores. The candidate ID carried on the context selects the shard, so
// commits for the same candidate serialize while unrelated candidates
// proceed in parallel.
func NewShardedTx() StoreTx {
	return &shardedTx{}
}

func (t *shardedTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func (t *shardedTx) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(lockKeyCtx).(string); ok && key != "" {
		return int(fnvHash(key) % numShards)
	}
	return 0
}

// fnvHash is FNV-1a, chosen for its distribution over uuid strings.
func fnvHash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type lockKey struct{}

var lockKeyCtx = lockKey{}

// withLockKey tags the context with the candidate whose commit is in flight.
func withLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKeyCtx, key)
}
