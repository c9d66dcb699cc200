package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"disha/internal/platform/kafka/consumer"
	"disha/pkg/platform/sentinel"
)

// Subscriber is an external system that receives transition events over
// HTTP. The secret authenticates its management calls; only the bcrypt hash
// is kept.
type Subscriber struct {
	ID         uuid.UUID
	Name       string
	URL        string
	SecretHash string
	Active     bool
	CreatedAt  time.Time
}

type SubscriberStore interface {
	Create(ctx context.Context, sub Subscriber) error
	FindByID(ctx context.Context, id uuid.UUID) (Subscriber, error)
	ListActive(ctx context.Context) ([]Subscriber, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type MemorySubscriberStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscriber
}

func NewMemorySubscriberStore() *MemorySubscriberStore {
	return &MemorySubscriberStore{subs: make(map[uuid.UUID]Subscriber)}
}

func (s *MemorySubscriberStore) Create(_ context.Context, sub Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; ok {
		return sentinel.ErrConflict
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *MemorySubscriberStore) FindByID(_ context.Context, id uuid.UUID) (Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return Subscriber{}, sentinel.ErrNotFound
	}
	return sub, nil
}

func (s *MemorySubscriberStore) ListActive(_ context.Context) ([]Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *MemorySubscriberStore) Deactivate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	sub.Active = false
	s.subs[id] = sub
	return nil
}

// Deliverer fans transition events out to registered webhooks. It runs as a
// consumer group of its own, so a slow subscriber never delays the engine or
// the other collaborators.
type Deliverer struct {
	store   SubscriberStore
	deduper Deduper
	client  *http.Client
	logger  *slog.Logger
}

const delivererGroup = "disha-webhooks"

func NewDeliverer(store SubscriberStore, deduper Deduper, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		store:   store,
		deduper: deduper,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (d *Deliverer) Handle(ctx context.Context, msg *consumer.Message) error {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		// Undecodable payloads would poison the partition; log and move on.
		d.logger.Error("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}

	seen, err := d.deduper.Seen(ctx, delivererGroup, event.CorrelationID.String())
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	subs, err := d.store.ListActive(ctx)
	if err != nil {
		return err
	}
	// Every subscriber gets an attempt. The event is marked delivered as soon
	// as any subscriber accepted it; only when every post failed does the
	// handler error so the uncommitted offset brings the event back.
	failed := 0
	for _, sub := range subs {
		if err := d.post(ctx, sub, msg.Value, event.CorrelationID); err != nil {
			failed++
			d.logger.Warn("webhook delivery failed",
				"subscriber", sub.Name, "url", sub.URL, "correlation_id", event.CorrelationID, "error", err)
		}
	}
	if len(subs) > 0 && failed == len(subs) {
		return fmt.Errorf("webhook delivery failed for all %d subscribers", len(subs))
	}
	return d.deduper.Mark(ctx, delivererGroup, event.CorrelationID.String())
}

func (d *Deliverer) post(ctx context.Context, sub Subscriber, payload []byte, correlationID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Disha-Correlation-Id", correlationID.String())

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("subscriber returned %d", resp.StatusCode)
	}
	return nil
}
