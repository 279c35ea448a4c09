package repository

import (
	"context"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	pkgkafka "CryptoFactors/pkg/kafka"
)

// KafkaTickPublisher implements TickPublisher on the ticks topic. Messages
// are keyed by symbol so per-symbol ordering survives partitioning.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTickPublisher creates a Kafka tick publisher.
func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) domrepo.TickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{
			Key: []byte(t.Symbol),
			Value: map[string]interface{}{
				"symbol": t.Symbol,
				"ts":     t.Timestamp.UnixMilli(),
				"price":  t.Price.String(),
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTickPublisher) Close() error {
	return p.producer.Close()
}
