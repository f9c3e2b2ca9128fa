package repository

import (
	"context"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	pkgkafka "SigFuse/pkg/kafka"
)

// KafkaAuditPublisher exports trade results to the Kafka audit topic,
// keyed by symbol so per-symbol ordering holds across partitions.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates the audit exporter.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) domrepo.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) PublishTrade(ctx context.Context, t *models.TradeResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
