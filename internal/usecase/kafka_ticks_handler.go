package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	pkgkafka "CryptoFactors/pkg/kafka"

	"github.com/shopspring/decimal"
)

// TickMessage is the wire schema on the ticks topic. Timestamps are epoch
// milliseconds; prices travel as strings to keep decimal precision.
type TickMessage struct {
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"ts"`
	Price     string `json:"price"`
}

// KafkaTicksHandler consumes tick messages and hands them to the store-and-
// enqueue path.
type KafkaTicksHandler struct {
	topic    string
	ingestor *TickIngestor
	metrics  domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, ingestor *TickIngestor, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, ingestor: ingestor, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m TickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("tick message: %w", err)
	}
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		h.metrics.RecordError("consumer_price")
		return fmt.Errorf("tick price %q: %w", m.Price, err)
	}
	tick := models.PriceTick{
		Timestamp: time.UnixMilli(m.Timestamp).UTC(),
		Symbol:    m.Symbol,
		Price:     price,
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(tick.Timestamp).Seconds())
	return h.ingestor.StoreBatch(ctx, []models.PriceTick{tick})
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
