package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	"CryptoFactors/internal/repository"
	applogger "CryptoFactors/pkg/logger"
)

// failingAggregateStore fails every Insert once armed, to abort a stage
// mid-pass.
type failingAggregateStore struct {
	domrepo.AggregateStore
	failInserts bool
}

var errStoreDown = errors.New("store down")

func (s *failingAggregateStore) Insert(ctx context.Context, rows []*models.DailyAggregate) error {
	if s.failInserts {
		return errStoreDown
	}
	return s.AggregateStore.Insert(ctx, rows)
}

func newProcessor(ticks domrepo.TickStore, aggs domrepo.AggregateStore, queue domrepo.DateQueue) *DateProcessor {
	daily := NewDailyAggregator(ticks, nopMetrics{}, applogger.Nop())
	windows := NewWindowAggregator(aggs, nopMetrics{}, applogger.Nop())
	rec := NewReconciler(aggs, nopMetrics{}, applogger.Nop())
	return NewDateProcessor(daily, windows, rec, queue, nopMetrics{}, applogger.Nop(), DefaultToday)
}

func TestProcessDateFullPass(t *testing.T) {
	ticks := repository.NewMemoryTickStore()
	aggs := repository.NewMemoryAggregateStore()
	queue := repository.NewMemoryDateQueue()
	ctx := context.Background()
	date := models.Date("2022-01-05")

	require.NoError(t, ticks.SaveBatch(ctx, []models.PriceTick{
		tickAt("BTC", "100", at(date, 9, 0)),
		tickAt("BTC", "120", at(date, 14, 0)),
		tickAt("ETH", "3000", at(date, 10, 0)),
		tickAt("ETH", "3100", at(date, 12, 0)),
	}))

	p := newProcessor(ticks, aggs, queue)
	outcome, err := p.ProcessDate(ctx, date, models.StagePending)
	require.NoError(t, err)
	assert.Equal(t, models.StageProcessed, outcome.FinalStage)
	assert.Zero(t, outcome.SymbolErrors)

	row, err := aggs.Get(ctx, models.AggregateKey{Symbol: "BTC", ReferenceDate: date})
	require.NoError(t, err)
	assert.Equal(t, "100", row.MinPrice.String())
	assert.Equal(t, "120", row.MaxPrice.String())
	require.NotNil(t, row.DailyFactor)
	assert.Equal(t, "0.2", row.DailyFactor.String())
	require.NotNil(t, row.WeeklyFactor)
	assert.Equal(t, "0.2", row.WeeklyFactor.String())
	require.NotNil(t, row.MonthlyFactor)
	assert.Equal(t, "0.2", row.MonthlyFactor.String())
}

func TestProcessDateFailureKeepsLastGoodStage(t *testing.T) {
	ticks := repository.NewMemoryTickStore()
	failing := &failingAggregateStore{AggregateStore: repository.NewMemoryAggregateStore()}
	queue := repository.NewMemoryDateQueue()
	ctx := context.Background()
	date := models.Date("2022-01-05")

	require.NoError(t, ticks.SaveBatch(ctx, []models.PriceTick{
		tickAt("BTC", "100", at(date, 9, 0)),
		tickAt("BTC", "120", at(date, 14, 0)),
	}))

	failing.failInserts = true
	p := newProcessor(ticks, failing, queue)
	outcome, err := p.ProcessDate(ctx, date, models.StagePending)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, models.StagePending, outcome.FinalStage)
}

func TestProcessDateResumesFromStage(t *testing.T) {
	ticks := repository.NewMemoryTickStore()
	aggs := repository.NewMemoryAggregateStore()
	queue := repository.NewMemoryDateQueue()
	ctx := context.Background()
	date := models.Date("2022-01-05")

	// no ticks: a pass starting from pending would write nothing at the
	// daily stage. Seed the row a finished daily stage would have left.
	require.NoError(t, aggs.Insert(ctx, []*models.DailyAggregate{{
		Key:        models.AggregateKey{Symbol: "BTC", ReferenceDate: date},
		MinPrice:   decPtr("100"),
		MinPriceAt: timePtr(at(date, 9, 0)),
		MaxPrice:   decPtr("120"),
		MaxPriceAt: timePtr(at(date, 14, 0)),
	}}))

	p := newProcessor(ticks, aggs, queue)
	outcome, err := p.ProcessDate(ctx, date, models.StageDailyComputed)
	require.NoError(t, err)
	assert.Equal(t, models.StageProcessed, outcome.FinalStage)

	row, err := aggs.Get(ctx, models.AggregateKey{Symbol: "BTC", ReferenceDate: date})
	require.NoError(t, err)
	// daily stage was skipped, window stages still ran
	assert.Nil(t, row.DailyFactor)
	require.NotNil(t, row.WeeklyFactor)
	assert.Equal(t, "0.2", row.WeeklyFactor.String())
}

func TestProcessNextCompletesOnSuccess(t *testing.T) {
	ticks := repository.NewMemoryTickStore()
	aggs := repository.NewMemoryAggregateStore()
	queue := repository.NewMemoryDateQueue()
	ctx := context.Background()
	date := models.Date("2022-01-05")

	require.NoError(t, ticks.SaveBatch(ctx, []models.PriceTick{
		tickAt("BTC", "100", at(date, 9, 0)),
		tickAt("BTC", "120", at(date, 14, 0)),
	}))
	require.NoError(t, queue.Enqueue(ctx, date))

	p := newProcessor(ticks, aggs, queue)
	outcome, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, date, outcome.Date)
	assert.Equal(t, models.StageProcessed, outcome.FinalStage)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// completed date may be enqueued again later
	require.NoError(t, queue.Enqueue(ctx, date))
	pending, err = queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Date{date}, pending)
}

func TestProcessNextReleasesOnFailure(t *testing.T) {
	ticks := repository.NewMemoryTickStore()
	failing := &failingAggregateStore{AggregateStore: repository.NewMemoryAggregateStore()}
	queue := repository.NewMemoryDateQueue()
	ctx := context.Background()
	date := models.Date("2022-01-05")

	require.NoError(t, ticks.SaveBatch(ctx, []models.PriceTick{
		tickAt("BTC", "100", at(date, 9, 0)),
		tickAt("BTC", "120", at(date, 14, 0)),
	}))
	require.NoError(t, queue.Enqueue(ctx, date))

	failing.failInserts = true
	p := newProcessor(ticks, failing, queue)
	_, err := p.ProcessNext(ctx)
	require.Error(t, err)

	// released back to the pending front with its stage preserved
	got, stage, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, date, got)
	assert.Equal(t, models.StagePending, stage)
}

func TestProcessNextFallbackDate(t *testing.T) {
	ticks := repository.NewMemoryTickStore()
	aggs := repository.NewMemoryAggregateStore()
	queue := repository.NewMemoryDateQueue()

	p := newProcessor(ticks, aggs, queue)
	outcome, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Today(), outcome.Date)
	assert.Equal(t, models.StageProcessed, outcome.FinalStage)
}
