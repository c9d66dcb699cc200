package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"disha/internal/dispatch"
	lifecyclemodels "disha/internal/lifecycle/models"
	"disha/internal/platform/kafka/consumer"
	"disha/internal/sos"
	sosmodels "disha/internal/sos/models"
	"disha/internal/travel"
)

// Group is the builder's consumer group across all three topics.
const Group = "disha-projections"

// Topics the builder subscribes to.
var Topics = []string{dispatch.TopicTransitions, sos.TopicCases, travel.TopicLetters}

// Builder folds the event streams into the named views. Records are applied
// whole and in commit order per entity; deduplication keys on the event
// correlation id and is marked only after the view mutation succeeded, so a
// failed apply is retried on redelivery while a successful one is never
// double-applied.
type Builder struct {
	views   ViewStore
	deduper dispatch.Deduper
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type BuilderOption func(*Builder)

func WithMetrics(m *Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(views ViewStore, deduper dispatch.Deduper, logger *slog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		views:   views,
		deduper: deduper,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle routes one message to its view by topic. Malformed payloads are
// dropped, not retried: redelivery cannot repair them.
func (b *Builder) Handle(ctx context.Context, msg *consumer.Message) error {
	switch msg.Topic {
	case dispatch.TopicTransitions:
		return b.applyTransition(ctx, msg)
	case sos.TopicCases:
		return b.applySOS(ctx, msg)
	case travel.TopicLetters:
		return b.applyTravel(ctx, msg)
	default:
		b.logger.Warn("projection builder received unknown topic", "topic", msg.Topic)
		return nil
	}
}

func (b *Builder) applyTransition(ctx context.Context, msg *consumer.Message) error {
	event, err := dispatch.DecodeEvent(msg.Value)
	if err != nil {
		b.dropMalformed(msg, err)
		return nil
	}
	seen, err := b.deduper.Seen(ctx, Group, event.CorrelationID.String())
	if err != nil {
		return err
	}
	if seen {
		b.skip(ViewReadyForMigration)
		return nil
	}
	if event.Axis != string(lifecyclemodels.AxisPipeline) {
		return nil
	}

	switch {
	case event.ToState == string(lifecyclemodels.StageReadyForMigration):
		entry, err := json.Marshal(MigrationEntry{
			CandidateID: event.CandidateID,
			BatchID:     event.BatchID,
			Since:       event.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("marshal migration entry: %w", err)
		}
		if err := b.set(ctx, ViewReadyForMigration, event.CandidateID, entry, event.Timestamp); err != nil {
			return err
		}
		return b.mark(ctx, event.CorrelationID.String())
	case event.FromState == string(lifecyclemodels.StageReadyForMigration),
		event.ToState == string(lifecyclemodels.StageDropped):
		if err := b.delete(ctx, ViewReadyForMigration, event.CandidateID, event.Timestamp); err != nil {
			return err
		}
		return b.mark(ctx, event.CorrelationID.String())
	default:
		return nil
	}
}

func (b *Builder) applySOS(ctx context.Context, msg *consumer.Message) error {
	event, err := sos.DecodeEvent(msg.Value)
	if err != nil {
		b.dropMalformed(msg, err)
		return nil
	}
	seen, err := b.deduper.Seen(ctx, Group, event.CorrelationID.String())
	if err != nil {
		return err
	}
	if seen {
		b.skip(ViewOpenCriticalSOS)
		return nil
	}

	switch {
	case event.Status == string(sosmodels.StatusResolved):
		if err := b.delete(ctx, ViewOpenCriticalSOS, event.CaseID, event.Timestamp); err != nil {
			return err
		}
		return b.mark(ctx, event.CorrelationID.String())
	case event.Priority == string(sosmodels.PriorityCritical):
		entry, err := json.Marshal(SOSEntry{
			CaseID:      event.CaseID,
			CandidateID: event.CandidateID,
			Priority:    event.Priority,
			Escalated:   event.Escalated,
			Since:       event.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("marshal sos entry: %w", err)
		}
		if err := b.set(ctx, ViewOpenCriticalSOS, event.CaseID, entry, event.Timestamp); err != nil {
			return err
		}
		return b.mark(ctx, event.CorrelationID.String())
	default:
		return nil
	}
}

func (b *Builder) applyTravel(ctx context.Context, msg *consumer.Message) error {
	event, err := travel.DecodeEvent(msg.Value)
	if err != nil {
		b.dropMalformed(msg, err)
		return nil
	}
	seen, err := b.deduper.Seen(ctx, Group, event.CorrelationID.String())
	if err != nil {
		return err
	}
	if seen {
		b.skip(ViewBatchTravelStatus)
		return nil
	}

	entry, err := json.Marshal(TravelEntry{
		BatchID:   event.BatchID,
		LetterID:  event.LetterID,
		Status:    event.Status,
		UpdatedAt: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal travel entry: %w", err)
	}
	if err := b.set(ctx, ViewBatchTravelStatus, event.BatchID, entry, event.Timestamp); err != nil {
		return err
	}
	return b.mark(ctx, event.CorrelationID.String())
}

func (b *Builder) set(ctx context.Context, view, key string, entry []byte, at time.Time) error {
	if err := b.views.Set(ctx, view, key, entry); err != nil {
		return err
	}
	b.applied(view, at)
	return nil
}

func (b *Builder) delete(ctx context.Context, view, key string, at time.Time) error {
	if err := b.views.Delete(ctx, view, key); err != nil {
		return err
	}
	b.applied(view, at)
	return nil
}

func (b *Builder) applied(view string, at time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.Applies.WithLabelValues(view).Inc()
	if !at.IsZero() {
		b.metrics.ApplyLag.Observe(b.now().Sub(at).Seconds())
	}
}

func (b *Builder) mark(ctx context.Context, correlationID string) error {
	return b.deduper.Mark(ctx, Group, correlationID)
}

func (b *Builder) skip(view string) {
	if b.metrics != nil {
		b.metrics.Skipped.WithLabelValues(view).Inc()
	}
}

func (b *Builder) dropMalformed(msg *consumer.Message, err error) {
	if b.metrics != nil {
		b.metrics.MalformedIn.Inc()
	}
	b.logger.Error("dropping malformed projection event",
		"topic", msg.Topic, "offset", msg.Offset, "error", err)
}
