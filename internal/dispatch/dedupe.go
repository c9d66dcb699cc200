package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper lets at-least-once consumers drop redeliveries. Seen reports whether
// the correlation ID was already processed by the named group; Mark records it
// as processed. Consumers check Seen before applying an event and Mark only
// after the apply succeeded, so a failed apply leaves the ID unclaimed and the
// redelivery gets another attempt.
type Deduper interface {
	Seen(ctx context.Context, group, correlationID string) (bool, error)
	Mark(ctx context.Context, group, correlationID string) error
}

const dedupeTTL = 24 * time.Hour

// RedisDeduper shares processed-ID state across consumers in the same group.
// Entries expire; the audit log, not redis, is the source of truth for what
// happened.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func dedupeKey(group, correlationID string) string {
	return fmt.Sprintf("disha:dedupe:%s:%s", group, correlationID)
}

func (d *RedisDeduper) Seen(ctx context.Context, group, correlationID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupeKey(group, correlationID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, group, correlationID string) error {
	if err := d.client.Set(ctx, dedupeKey(group, correlationID), "1", dedupeTTL).Err(); err != nil {
		return fmt.Errorf("dedupe mark: %w", err)
	}
	return nil
}

// MemoryDeduper backs tests and single-process runs.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) Seen(_ context.Context, group, correlationID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[group+":"+correlationID]
	return ok, nil
}

func (d *MemoryDeduper) Mark(_ context.Context, group, correlationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[group+":"+correlationID] = struct{}{}
	return nil
}
