// Package kafka publishes domain events to a Kafka topic. Records are keyed
// by shipment ID so per-shipment ordering survives partitioning; delivery is
// at-least-once and subscribers are expected to be idempotent.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"custodia/internal/events"
	"custodia/pkg/platform/circuit"
)

// Publisher wraps a franz-go client. Produce errors are logged, never
// propagated: losing an event must not fail the mutation that caused it.
// A circuit breaker sheds events during a broker outage instead of piling
// them up in the produce buffer.
type Publisher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	breaker *circuit.Breaker
}

// New connects to the brokers and makes sure the topic exists. Partition
// count only matters on first creation; existing topics are left alone.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 6, 1, nil, topic); err != nil {
		// Already-exists is the common case on restart; anything else is
		// surfaced at startup rather than silently dropped later.
		if resps, lerr := adm.ListTopics(ctx, topic); lerr != nil || !resps.Has(topic) {
			client.Close()
			return nil, err
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		topic:   topic,
		logger:  logger,
		breaker: circuit.New("kafka-events", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) {
	if !p.breaker.Allow() {
		p.logger.WarnContext(ctx, "event dropped, publisher circuit open",
			"type", string(event.Type),
			"shipment", event.ShipmentID.String(),
		)
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode event", "type", string(event.Type), "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ShipmentID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			_, change := p.breaker.RecordFailure()
			if change.Opened {
				p.logger.Error("event publisher circuit opened", "topic", p.topic)
			}
			p.logger.Error("failed to publish event",
				"type", string(event.Type),
				"shipment", event.ShipmentID.String(),
				"error", err,
			)
			return
		}
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.logger.Info("event publisher circuit closed", "topic", p.topic)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return err
	}
	p.client.Close()
	return nil
}
