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

func TestReconcileInsertsNewKeys(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	r := NewReconciler(store, nopMetrics{}, applogger.Nop())
	ctx := context.Background()

	date := models.Date("2022-01-05")
	key := models.AggregateKey{Symbol: "BTC", ReferenceDate: date}
	upd := models.AggregateUpdate{
		Key: key,
		MinMax: &models.MinMaxUpdate{
			MinPrice: dec("100"), MinPriceAt: at(date, 9, 0),
			MaxPrice: dec("120"), MaxPriceAt: at(date, 14, 0),
		},
	}

	stats, err := r.Reconcile(ctx, []models.AggregateUpdate{upd})
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Inserted: 1}, stats)

	row, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "100", row.MinPrice.String())
	assert.Equal(t, "120", row.MaxPrice.String())
	assert.Nil(t, row.DailyFactor)
}

func TestReconcileUpdateTouchesOnlyItsFieldGroup(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	r := NewReconciler(store, nopMetrics{}, applogger.Nop())
	ctx := context.Background()

	date := models.Date("2022-01-05")
	key := models.AggregateKey{Symbol: "BTC", ReferenceDate: date}
	require.NoError(t, store.Insert(ctx, []*models.DailyAggregate{{
		Key:        key,
		MinPrice:   decPtr("100"),
		MinPriceAt: timePtr(at(date, 9, 0)),
		MaxPrice:   decPtr("120"),
		MaxPriceAt: timePtr(at(date, 14, 0)),
	}}))

	stats, err := r.Reconcile(ctx, []models.AggregateUpdate{{
		Key:     key,
		Rolling: &models.RollingFactorUpdate{Period: models.PeriodWeek, Factor: dec("0.2")},
	}})
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Updated: 1}, stats)

	row, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, row.WeeklyFactor)
	assert.Equal(t, "0.2", row.WeeklyFactor.String())
	require.NotNil(t, row.MinPrice)
	assert.Equal(t, "100", row.MinPrice.String())
	assert.Nil(t, row.MonthlyFactor)
}

func TestReconcileIdempotent(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	r := NewReconciler(store, nopMetrics{}, applogger.Nop())
	ctx := context.Background()

	date := models.Date("2022-01-05")
	key := models.AggregateKey{Symbol: "ETH", ReferenceDate: date}
	batch := []models.AggregateUpdate{{
		Key: key,
		MinMax: &models.MinMaxUpdate{
			MinPrice: dec("2950"), MinPriceAt: at(date, 15, 0),
			MaxPrice: dec("3100"), MaxPriceAt: at(date, 10, 0),
		},
		DailyFactor: decPtr("0.05085"),
	}}

	stats, err := r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Inserted: 1}, stats)

	first, err := store.Get(ctx, key)
	require.NoError(t, err)

	stats, err = r.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{Updated: 1}, stats)

	second, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReconcileEmptyBatch(t *testing.T) {
	store := repository.NewMemoryAggregateStore()
	r := NewReconciler(store, nopMetrics{}, applogger.Nop())

	stats, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{}, stats)

	stats, err = r.Reconcile(context.Background(), []models.AggregateUpdate{{
		Key: models.AggregateKey{Symbol: "BTC", ReferenceDate: models.Date("2022-01-05")},
	}})
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{}, stats)
}
