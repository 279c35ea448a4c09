package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/repository"
	applogger "CryptoFactors/pkg/logger"
)

func seedDay(t *testing.T, store *repository.MemoryAggregateStore, symbol string, date models.Date, min, max string) {
	t.Helper()
	minAt, maxAt := at(date, 9, 0), at(date, 15, 0)
	require.NoError(t, store.Insert(context.Background(), []*models.DailyAggregate{{
		Key:        models.AggregateKey{Symbol: symbol, ReferenceDate: date},
		MinPrice:   decPtr(min),
		MinPriceAt: &minAt,
		MaxPrice:   decPtr(max),
		MaxPriceAt: &maxAt,
	}}))
}

func TestComputeWindowFactorSumOfExtremes(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-07")

	seedDay(t, store, "BTC", models.Date("2022-01-05"), "100", "120")
	seedDay(t, store, "BTC", models.Date("2022-01-06"), "90", "110")
	seedDay(t, store, "BTC", models.Date("2022-01-07"), "0", "10")

	w := NewWindowAggregator(store, nopMetrics{}, applogger.Nop())
	factor, err := w.ComputeWindowFactor(context.Background(), "BTC", date, models.PeriodWeek)
	require.NoError(t, err)
	// (120+110+10 - (100+90+0)) / (100+90+0) = 50/190
	assert.Equal(t, "0.26316", factor.String())
}

func TestComputeWindowFactorInclusiveBounds(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-10")

	// window for WEEK is [date-6, date]; a row exactly at the start counts,
	// one a day earlier does not
	seedDay(t, store, "BTC", models.Date("2022-01-04"), "100", "150")
	seedDay(t, store, "BTC", models.Date("2022-01-03"), "1", "1000")

	w := NewWindowAggregator(store, nopMetrics{}, applogger.Nop())
	factor, err := w.ComputeWindowFactor(context.Background(), "BTC", date, models.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, "0.5", factor.String())
}

func TestComputeWindowFactorEmptyWindow(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	w := NewWindowAggregator(store, nopMetrics{}, applogger.Nop())

	_, err := w.ComputeWindowFactor(context.Background(), "BTC", models.Date("2022-01-07"), models.PeriodWeek)
	assert.ErrorIs(t, err, models.ErrEmptyWindow)
}

func TestComputeWindowUpdatesSkipsFailingSymbols(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-07")

	seedDay(t, store, "BTC", date, "100", "120")
	seedDay(t, store, "ZRO", date, "0", "10")

	w := NewWindowAggregator(store, nopMetrics{}, applogger.Nop())
	updates, symbolErrs, err := w.ComputeWindowUpdates(context.Background(), date, models.PeriodWeek)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, "BTC", updates[0].Key.Symbol)
	require.NotNil(t, updates[0].Rolling)
	assert.Equal(t, models.PeriodWeek, updates[0].Rolling.Period)
	assert.Equal(t, "0.2", updates[0].Rolling.Factor.String())

	require.Contains(t, symbolErrs, "ZRO")
	assert.ErrorIs(t, symbolErrs["ZRO"], models.ErrDivisionByZero)
}

func TestWindowFactorsTrueExtremesAndEdges(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	date := models.Date("2022-01-07")
	ctx := context.Background()

	d5, d6 := models.Date("2022-01-05"), models.Date("2022-01-06")
	oldestAt, newestAt := at(d5, 8, 0), at(d6, 18, 0)
	require.NoError(t, store.Insert(ctx, []*models.DailyAggregate{
		{
			Key:           models.AggregateKey{Symbol: "BTC", ReferenceDate: d5},
			MinPrice:      decPtr("100"),
			MinPriceAt:    timePtr(at(d5, 9, 0)),
			MaxPrice:      decPtr("120"),
			MaxPriceAt:    timePtr(at(d5, 15, 0)),
			OldestPrice:   decPtr("105"),
			OldestPriceAt: &oldestAt,
		},
		{
			Key:           models.AggregateKey{Symbol: "BTC", ReferenceDate: d6},
			MinPrice:      decPtr("95"),
			MinPriceAt:    timePtr(at(d6, 11, 0)),
			MaxPrice:      decPtr("118"),
			MaxPriceAt:    timePtr(at(d6, 13, 0)),
			NewestPrice:   decPtr("99"),
			NewestPriceAt: &newestAt,
		},
	}))

	w := NewWindowAggregator(store, nopMetrics{}, applogger.Nop())
	row, err := w.WindowFactors(ctx, "BTC", date, models.PeriodWeek)
	require.NoError(t, err)

	assert.Equal(t, "95", row.MinPrice.String())
	assert.Equal(t, "120", row.MaxPrice.String())
	assert.Equal(t, "105", row.OldestPrice.String())
	assert.Equal(t, "99", row.NewestPrice.String())
	require.NotNil(t, row.WeeklyFactor)
	// (120+118 - (100+95)) / (100+95)
	assert.Equal(t, "0.22051", row.WeeklyFactor.String())
}

func TestWindowFactorsNotFound(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	w := NewWindowAggregator(store, nopMetrics{}, applogger.Nop())

	_, err := w.WindowFactors(context.Background(), "BTC", models.Date("2022-01-07"), models.PeriodMonth)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
