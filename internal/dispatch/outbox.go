package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one queued outbox row. Attempts and NextAttemptAt drive the
// relay's exponential backoff; entries that exhaust their attempt budget are
// moved to the dead-letter queue, never silently dropped.
type Entry struct {
	ID            uuid.UUID
	Topic         string
	Key           string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}

// DeadLetter is an exhausted delivery preserved for manual inspection.
// Dead-lettering never rolls back the transition that produced the event.
type DeadLetter struct {
	ID        uuid.UUID
	Topic     string
	Key       string
	Payload   []byte
	Attempts  int
	Reason    string
	CreatedAt time.Time
	DeadAt    time.Time
}

// Outbox is the transactional queue between the engine and the broker.
// Enqueue participates in the caller's transaction (pkg/platform/tx); the
// remaining methods are the relay's bookkeeping.
type Outbox interface {
	Enqueue(ctx context.Context, topic, key string, payload []byte) error
	// NextBatch returns up to limit entries due for delivery, oldest first.
	NextBatch(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, entryID uuid.UUID) error
	// MarkFailed bumps the attempt count and schedules the next try.
	MarkFailed(ctx context.Context, entryID uuid.UUID, lastError string, nextAttemptAt time.Time) error
	// DeadLetter moves the entry out of the active queue, counting the
	// delivery attempt that exhausted it.
	DeadLetter(ctx context.Context, entryID uuid.UUID, reason string) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}
