// Package producer wraps the franz-go client for outbound event publishing.
// The outbox relay is the only writer; domain code never talks to Kafka
// directly.
package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records synchronously. Synchronous publishing keeps the
// outbox relay's bookkeeping simple: an entry is marked published only after
// the broker acknowledged the record.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// New connects to the given brokers.
func New(brokers []string, logger *slog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// Publish sends one record and waits for broker acknowledgement. Records for
// the same key land on the same partition, so per-candidate event order is
// preserved end to end.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
