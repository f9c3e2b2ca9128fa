package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	pkgkafka "SigFuse/pkg/kafka"
)

// TradeAuditHandler consumes exported trade results from Kafka and
// persists them to the audit store.
type TradeAuditHandler struct {
	topic   string
	log     domrepo.TradeLog
	metrics domrepo.Metrics
}

func NewTradeAuditHandler(topic string, log domrepo.TradeLog, metrics domrepo.Metrics) *TradeAuditHandler {
	return &TradeAuditHandler{topic: topic, log: log, metrics: metrics}
}

func (h *TradeAuditHandler) Topic() string { return h.topic }

func (h *TradeAuditHandler) Handle(ctx context.Context, b []byte) error {
	var tr models.TradeResult
	if err := json.Unmarshal(b, &tr); err != nil {
		h.metrics.RecordError("audit_unmarshal")
		return err
	}

	start := time.Now()
	err := h.log.Store(ctx, &tr)
	h.metrics.RecordLatency("audit_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("audit_store")
		return err
	}
	h.metrics.RecordEvent("audit", "stored")
	return nil
}

var _ pkgkafka.MessageHandler = (*TradeAuditHandler)(nil)
