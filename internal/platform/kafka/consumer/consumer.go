// Package consumer wraps the franz-go consumer group client. Each
// collaborator (travel letters, SOS escalation, webhook delivery, projection
// builder) runs its own group over the transitions topic, which is how one
// committed transition fans out to several independent handlers with
// at-least-once delivery.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic view handlers receive.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. Returning an error leaves the offset
// uncommitted, so the message is redelivered; handlers must therefore be
// idempotent (keyed on the event correlation id).
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer drives a consumer group loop over one or more topics.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
	backoff time.Duration
}

// New creates a consumer group member. Offsets are committed manually after
// each successfully handled record.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group %s: %w", group, err)
	}
	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
		backoff: time.Second,
	}, nil
}

// Run polls until ctx is cancelled. Handler failures are logged and retried
// after a short backoff without committing, preserving at-least-once
// semantics.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		var handleErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg := &Message{
				Topic:     rec.Topic,
				Partition: rec.Partition,
				Offset:    rec.Offset,
				Key:       rec.Key,
				Value:     rec.Value,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				handleErr = err
				return
			}
			handled = append(handled, rec)
		})

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("kafka commit failed", "error", err)
			}
		}
		if handleErr != nil {
			c.logger.Warn("handler failed, will redeliver after backoff", "error", handleErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
}
