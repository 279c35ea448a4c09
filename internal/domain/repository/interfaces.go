package repository

import (
	"context"

	"CryptoFactors/internal/domain/models"
)

// TickStore holds raw price ticks keyed by (timestamp, symbol).
type TickStore interface {
	SaveBatch(ctx context.Context, ticks []models.PriceTick) error
	// FetchTicks returns every tick whose timestamp falls on the given UTC
	// calendar day.
	FetchTicks(ctx context.Context, date models.Date) ([]models.PriceTick, error)
	Health(ctx context.Context) error
	Close() error
}

// AggregateStore holds one DailyAggregate row per (symbol, date).
// Update writes only the field groups carried by the command; atomicity is
// per field group, never per row, so readers observe either the pre-pass or
// the post-pass value of any group.
type AggregateStore interface {
	// Get returns models.ErrNotFound when no row exists for the key.
	Get(ctx context.Context, key models.AggregateKey) (*models.DailyAggregate, error)
	// GetMany returns the existing subset of keys; absent keys are simply
	// missing from the result map.
	GetMany(ctx context.Context, keys []models.AggregateKey) (map[models.AggregateKey]*models.DailyAggregate, error)
	Insert(ctx context.Context, rows []*models.DailyAggregate) error
	Update(ctx context.Context, upd models.AggregateUpdate) error
	QueryByDate(ctx context.Context, date models.Date) ([]*models.DailyAggregate, error)
	// QueryRange returns one symbol's rows with from <= date <= to, ordered
	// by date ascending.
	QueryRange(ctx context.Context, symbol string, from, to models.Date) ([]*models.DailyAggregate, error)
	// QueryAllRange is QueryRange across every symbol, used by the rolling
	// window pass to discover which symbols have data in the window.
	QueryAllRange(ctx context.Context, from, to models.Date) ([]*models.DailyAggregate, error)
	Close() error
}

// DateQueue is the persisted processing queue. Dequeue atomically moves the
// earliest pending date to an in-progress slot so a crashed pass neither
// loses nor duplicates it.
type DateQueue interface {
	// Enqueue appends dates not already queued.
	Enqueue(ctx context.Context, dates ...models.Date) error
	// Dequeue returns models.ErrQueueEmpty when nothing is pending.
	Dequeue(ctx context.Context) (models.Date, models.Stage, error)
	// SaveStage records the last successfully completed stage for a date.
	SaveStage(ctx context.Context, date models.Date, stage models.Stage) error
	// Complete marks the full pass done and removes the date.
	Complete(ctx context.Context, date models.Date) error
	// Release puts an in-progress date back at the front of the pending
	// queue, keeping its recorded stage for retry.
	Release(ctx context.Context, date models.Date) error
	Pending(ctx context.Context) ([]models.Date, error)
	Close() error
}

// Metrics abstracts the Prometheus recorder from the pipeline.
type Metrics interface {
	RecordPass(stage, status string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordTicksIngested(symbol string, n int)
	SetQueueDepth(n int)
}

// TickStream is a live market data source feeding the ingest path.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
}

// TickPublisher hands ticks to the ingest transport.
type TickPublisher interface {
	PublishBatch(ctx context.Context, ticks []models.PriceTick) error
	Close() error
}
