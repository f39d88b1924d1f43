package repository

import (
	"context"
	"fmt"

	"AutoEye/internal/domain/models"
	pkgkafka "AutoEye/pkg/kafka"
)

// batchPublisher is the part of the Kafka producer the event publisher needs.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaEventPublisher sends cycle events to one topic, keyed by symbol.
type KafkaEventPublisher struct {
	producer batchPublisher
	topic    string
}

func NewKafkaEventPublisher(producer batchPublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(ev.Symbol), Value: ev})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error { return p.producer.Close() }
