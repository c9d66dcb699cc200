package dispatch

import (
	"context"
	"log/slog"
	"time"

	"disha/pkg/platform/circuit"
)

// Publisher is the broker side of the relay, satisfied by the kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultBatchSize    = 100
	defaultMaxAttempts  = 8
	defaultBaseBackoff  = time.Second
)

// Relay drains the outbox into the broker. Delivery is at-least-once: an
// entry is only removed after the broker acknowledges it, so a crash between
// publish and MarkPublished re-sends the event. Consumers dedupe on
// correlation ID.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	breaker   *circuit.Breaker
	logger    *slog.Logger
	metrics   *Metrics

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseBackoff  time.Duration
}

type RelayOption func(*Relay)

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.pollInterval = d }
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) { r.maxAttempts = n }
}

func WithBaseBackoff(d time.Duration) RelayOption {
	return func(r *Relay) { r.baseBackoff = d }
}

func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(outbox Outbox, publisher Publisher, logger *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:       outbox,
		publisher:    publisher,
		breaker:      circuit.New("dispatch-relay", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		baseBackoff:  defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. It returns nil on cancellation so errgroup
// shutdown treats it as a clean exit.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

// Drain delivers one batch of due entries. Exported so tests and the rebuild
// endpoint can pump the queue without the ticker.
func (r *Relay) Drain(ctx context.Context) error {
	now := time.Now().UTC()
	entries, err := r.outbox.NextBatch(ctx, now, r.batchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil
		}
		if r.breaker.IsOpen() {
			// Broker is struggling; leave the rest of the batch for the
			// next tick rather than burning attempt budgets.
			r.logger.Warn("circuit open, deferring outbox batch", "remaining", len(entries))
			return nil
		}
		r.deliver(ctx, entry, now)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, entry Entry, now time.Time) {
	start := time.Now()
	err := r.publisher.Publish(ctx, entry.Topic, []byte(entry.Key), entry.Payload)
	if r.metrics != nil {
		r.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	}
	if err == nil {
		r.breaker.RecordSuccess()
		if r.metrics != nil {
			r.metrics.Published.Inc()
		}
		if markErr := r.outbox.MarkPublished(ctx, entry.ID); markErr != nil {
			// The event went out but the row survived; the redelivery is
			// harmless because consumers dedupe.
			r.logger.Error("published but not marked, will redeliver", "entry_id", entry.ID, "error", markErr)
		}
		return
	}

	r.breaker.RecordFailure()
	if r.metrics != nil {
		r.metrics.PublishFailures.Inc()
	}
	attempts := entry.Attempts + 1
	if attempts >= r.maxAttempts {
		r.logger.Error("delivery exhausted, dead-lettering",
			"entry_id", entry.ID, "topic", entry.Topic, "attempts", attempts, "error", err)
		if r.metrics != nil {
			r.metrics.DeadLetters.Inc()
		}
		if dlErr := r.outbox.DeadLetter(ctx, entry.ID, err.Error()); dlErr != nil {
			r.logger.Error("dead-letter move failed", "entry_id", entry.ID, "error", dlErr)
		}
		return
	}

	next := now.Add(r.backoff(entry.Attempts))
	r.logger.Warn("publish failed, scheduling retry",
		"entry_id", entry.ID, "topic", entry.Topic, "attempt", attempts, "next_attempt_at", next, "error", err)
	if markErr := r.outbox.MarkFailed(ctx, entry.ID, err.Error(), next); markErr != nil {
		r.logger.Error("mark failed errored", "entry_id", entry.ID, "error", markErr)
	}
}

// backoff doubles per prior attempt: base, 2*base, 4*base, ...
func (r *Relay) backoff(priorAttempts int) time.Duration {
	d := r.baseBackoff
	for i := 0; i < priorAttempts; i++ {
		d *= 2
		if d > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return d
}
