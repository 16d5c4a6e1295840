package repository

import (
	"context"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/repository"
	pkgkafka "StockCast/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher implements EventPublisher for Kafka. Events are keyed by symbol so one symbol stays ordered.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, rec *models.ForecastRecord) error {
	rid := pkgkafka.RequestIDFromContext(ctx)
	if rid == "" {
		rid = rec.ID
	}
	return p.producer.Publish(ctx, p.topic, []byte(rec.Symbol), rec,
		kafka.Header{Key: "event_type", Value: []byte("forecast.completed")},
		kafka.Header{Key: pkgkafka.HeaderRequestID, Value: []byte(rid)},
	)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
