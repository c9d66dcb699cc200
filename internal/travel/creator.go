// Package travel turns pipeline progress into travel-letter work. A batch
// becomes travel-eligible the moment one of its candidates is ready for
// migration; the creator watches the transition stream for that moment.
package travel

import (
	"context"
	"log/slog"

	"disha/internal/dispatch"
	lifecyclemodels "disha/internal/lifecycle/models"
	"disha/internal/platform/kafka/consumer"
	travelmodels "disha/internal/travel/models"
	id "disha/pkg/domain"
)

// Group is the creator's consumer group on the transitions topic.
const Group = "disha-travel-letters"

// LetterService is the service callback; EnsureForBatch is idempotent, so
// at-least-once delivery needs no extra bookkeeping beyond dedupe.
type LetterService interface {
	EnsureForBatch(ctx context.Context, batchID id.BatchID) (travelmodels.Request, error)
}

// Creator consumes transition events and opens a travel-letter request the
// first time a batch reaches ready_for_migration.
type Creator struct {
	letters LetterService
	deduper dispatch.Deduper
	logger  *slog.Logger
}

func NewCreator(letters LetterService, deduper dispatch.Deduper, logger *slog.Logger) *Creator {
	return &Creator{letters: letters, deduper: deduper, logger: logger}
}

func (c *Creator) Handle(ctx context.Context, msg *consumer.Message) error {
	event, err := dispatch.DecodeEvent(msg.Value)
	if err != nil {
		c.logger.Error("dropping malformed transition event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	seen, err := c.deduper.Seen(ctx, Group, event.CorrelationID.String())
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	if event.Axis != string(lifecyclemodels.AxisPipeline) ||
		event.ToState != string(lifecyclemodels.StageReadyForMigration) ||
		event.BatchID == "" {
		return nil
	}
	batchID, err := id.ParseBatchID(event.BatchID)
	if err != nil {
		c.logger.Error("transition event carries invalid batch id", "batch_id", event.BatchID, "error", err)
		return nil
	}

	req, err := c.letters.EnsureForBatch(ctx, batchID)
	if err != nil {
		return err
	}
	c.logger.Info("batch is travel-eligible",
		"batch_id", batchID, "letter_id", req.ID, "status", req.Status)
	// Marked only after the request exists: a failed ensure stays unclaimed
	// and is retried on redelivery.
	return c.deduper.Mark(ctx, Group, event.CorrelationID.String())
}
