// Package escalation watches open critical SOS cases and escalates the ones
// nobody has resolved within the attention window. It is a collaborator: it
// consumes case events and calls back into the service, never touching the
// store directly.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"disha/internal/dispatch"
	"disha/internal/platform/kafka/consumer"
	"disha/internal/sos"
	sosmodels "disha/internal/sos/models"
	id "disha/pkg/domain"
)

// Group is the tracker's consumer group on the SOS topic.
const Group = "disha-sos-escalation"

// DefaultWindow is how long a critical case may stay unresolved before it is
// escalated.
const DefaultWindow = 4 * time.Hour

// Escalator is the service callback. Escalation is idempotent there, so the
// tracker never worries about double-firing.
type Escalator interface {
	Escalate(ctx context.Context, caseID id.CaseID) (sosmodels.Case, error)
}

// Schedule holds the set of watched cases with their raise times.
type Schedule interface {
	Track(ctx context.Context, caseID string, raisedAt time.Time) error
	Forget(ctx context.Context, caseID string) error
	// Due returns tracked cases raised before the cutoff.
	Due(ctx context.Context, cutoff time.Time) ([]string, error)
}

const redisScheduleKey = "disha:sos:critical-open"

// RedisSchedule keeps the watch set in a sorted set scored by raise time, so
// a restarted tracker picks up where it left off.
type RedisSchedule struct {
	client *redis.Client
}

func NewRedisSchedule(client *redis.Client) *RedisSchedule {
	return &RedisSchedule{client: client}
}

func (s *RedisSchedule) Track(ctx context.Context, caseID string, raisedAt time.Time) error {
	err := s.client.ZAdd(ctx, redisScheduleKey, redis.Z{
		Score:  float64(raisedAt.Unix()),
		Member: caseID,
	}).Err()
	if err != nil {
		return fmt.Errorf("track sos case: %w", err)
	}
	return nil
}

func (s *RedisSchedule) Forget(ctx context.Context, caseID string) error {
	if err := s.client.ZRem(ctx, redisScheduleKey, caseID).Err(); err != nil {
		return fmt.Errorf("forget sos case: %w", err)
	}
	return nil
}

func (s *RedisSchedule) Due(ctx context.Context, cutoff time.Time) ([]string, error) {
	members, err := s.client.ZRangeByScore(ctx, redisScheduleKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due sos cases: %w", err)
	}
	return members, nil
}

// MemorySchedule backs unit tests and single-process runs.
type MemorySchedule struct {
	mu      sync.Mutex
	tracked map[string]time.Time
}

func NewMemorySchedule() *MemorySchedule {
	return &MemorySchedule{tracked: make(map[string]time.Time)}
}

func (s *MemorySchedule) Track(_ context.Context, caseID string, raisedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[caseID] = raisedAt
	return nil
}

func (s *MemorySchedule) Forget(_ context.Context, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, caseID)
	return nil
}

func (s *MemorySchedule) Due(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for caseID, raisedAt := range s.tracked {
		if !raisedAt.After(cutoff) {
			out = append(out, caseID)
		}
	}
	return out, nil
}

// Tracker consumes SOS case events and sweeps for breaches.
type Tracker struct {
	escalator Escalator
	schedule  Schedule
	deduper   dispatch.Deduper
	logger    *slog.Logger
	window    time.Duration
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Tracker)

func WithWindow(d time.Duration) Option {
	return func(t *Tracker) { t.window = d }
}

func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(escalator Escalator, schedule Schedule, deduper dispatch.Deduper, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		escalator: escalator,
		schedule:  schedule,
		deduper:   deduper,
		logger:    logger,
		window:    DefaultWindow,
		interval:  time.Minute,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handle processes one SOS case event: critical open cases enter the watch
// set, resolved ones leave it.
func (t *Tracker) Handle(ctx context.Context, msg *consumer.Message) error {
	event, err := sos.DecodeEvent(msg.Value)
	if err != nil {
		t.logger.Error("dropping malformed sos event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	seen, err := t.deduper.Seen(ctx, Group, event.CorrelationID.String())
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	// The watch-set mutation runs before Mark: a failed mutation leaves the
	// event unclaimed so the redelivery can retry it.
	switch {
	case event.Status == string(sosmodels.StatusResolved):
		if err := t.schedule.Forget(ctx, event.CaseID); err != nil {
			return err
		}
	case event.Priority == string(sosmodels.PriorityCritical) && !event.Escalated:
		if err := t.schedule.Track(ctx, event.CaseID, event.Timestamp); err != nil {
			return err
		}
	}
	return t.deduper.Mark(ctx, Group, event.CorrelationID.String())
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.Sweep(ctx); err != nil {
				t.logger.Error("escalation sweep failed", "error", err)
			}
		}
	}
}

// Sweep escalates every watched case older than the window. Exported so
// tests can drive it without the ticker.
func (t *Tracker) Sweep(ctx context.Context) error {
	due, err := t.schedule.Due(ctx, t.now().Add(-t.window))
	if err != nil {
		return err
	}
	for _, raw := range due {
		caseID, err := id.ParseCaseID(raw)
		if err != nil {
			t.logger.Error("dropping unparsable tracked case id", "case_id", raw, "error", err)
			_ = t.schedule.Forget(ctx, raw)
			continue
		}
		if _, err := t.escalator.Escalate(ctx, caseID); err != nil {
			t.logger.Error("escalation failed, will retry next sweep", "case_id", caseID, "error", err)
			continue
		}
		t.logger.Warn("sos case escalated", "case_id", caseID, "window", t.window)
		if err := t.schedule.Forget(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}
