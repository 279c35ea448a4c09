package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	applogger "CryptoFactors/pkg/logger"
)

// TickIngestor routes batches of ticks to the configured ingest backend and
// enqueues their calendar days for processing. backend "kafka" publishes to
// the tick topic (the consumer stores and enqueues on the other side);
// backend "clickhouse" or "memory" writes straight to the tick store.
type TickIngestor struct {
	pub     domrepo.TickPublisher
	store   domrepo.TickStore
	queue   domrepo.DateQueue
	metrics domrepo.Metrics
	log     *applogger.Logger
	backend string
}

func NewTickIngestor(
	pub domrepo.TickPublisher,
	store domrepo.TickStore,
	queue domrepo.DateQueue,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	backend string,
) *TickIngestor {
	return &TickIngestor{pub: pub, store: store, queue: queue, metrics: metrics, log: log, backend: backend}
}

// IngestBatch pushes a batch of ticks into the configured backend.
func (i *TickIngestor) IngestBatch(ctx context.Context, ticks []models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	start := time.Now()

	var err error
	switch i.backend {
	case "kafka":
		err = i.pub.PublishBatch(ctx, ticks)
	case "clickhouse", "memory":
		err = i.StoreBatch(ctx, ticks)
	default:
		err = fmt.Errorf("unknown ingest backend: %s", i.backend)
	}
	if err != nil {
		i.metrics.RecordError("ingest_batch")
		return fmt.Errorf("ingest batch: %w", err)
	}

	bySymbol := make(map[string]int)
	for _, t := range ticks {
		bySymbol[t.Symbol]++
	}
	for sym, n := range bySymbol {
		i.metrics.RecordTicksIngested(sym, n)
	}
	i.metrics.RecordLatency("ingest_batch", time.Since(start).Seconds())
	return nil
}

// StoreBatch writes ticks directly into the tick store and enqueues the
// affected dates. Used on the direct path and by the Kafka consumer side.
func (i *TickIngestor) StoreBatch(ctx context.Context, ticks []models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	if err := i.store.SaveBatch(ctx, ticks); err != nil {
		i.metrics.RecordError("tick_store")
		return fmt.Errorf("save ticks: %w", err)
	}

	seen := make(map[models.Date]struct{})
	dates := make([]models.Date, 0, 4)
	for _, t := range ticks {
		d := t.Date()
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	if err := i.queue.Enqueue(ctx, dates...); err != nil {
		i.metrics.RecordError("queue_enqueue")
		return fmt.Errorf("enqueue dates: %w", err)
	}
	i.log.Debug("ticks stored",
		applogger.Int("ticks", len(ticks)),
		applogger.Int("dates", len(dates)),
	)
	return nil
}

// Close releases publisher and store resources.
func (i *TickIngestor) Close() {
	if i.pub != nil {
		_ = i.pub.Close()
	}
	if i.store != nil {
		_ = i.store.Close()
	}
}
