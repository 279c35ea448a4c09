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

func TestComputeDailyFactors(t *testing.T) {
	date := models.Date("2022-01-01")

	ticks := []models.PriceTick{
		tickAt("ETH", "3000", at(date, 8, 0)),
		tickAt("ETH", "3100", at(date, 10, 0)),
		tickAt("ETH", "2950", at(date, 15, 0)),
		tickAt("ETH", "3050", at(date, 17, 0)),
	}

	updates, symbolErrs := ComputeDailyFactors(date, ticks)
	require.Empty(t, symbolErrs)
	require.Len(t, updates, 1)

	upd := updates[0]
	assert.Equal(t, models.AggregateKey{Symbol: "ETH", ReferenceDate: date}, upd.Key)

	require.NotNil(t, upd.MinMax)
	assert.True(t, upd.MinMax.MinPrice.Equal(dec("2950")))
	assert.Equal(t, at(date, 15, 0), upd.MinMax.MinPriceAt)
	assert.True(t, upd.MinMax.MaxPrice.Equal(dec("3100")))
	assert.Equal(t, at(date, 10, 0), upd.MinMax.MaxPriceAt)

	require.NotNil(t, upd.OldestNewest)
	assert.True(t, upd.OldestNewest.OldestPrice.Equal(dec("3000")))
	assert.Equal(t, at(date, 8, 0), upd.OldestNewest.OldestPriceAt)
	assert.True(t, upd.OldestNewest.NewestPrice.Equal(dec("3050")))
	assert.Equal(t, at(date, 17, 0), upd.OldestNewest.NewestPriceAt)

	require.NotNil(t, upd.DailyFactor)
	assert.Equal(t, "0.05085", upd.DailyFactor.String())
}

func TestComputeDailyFactorsEarliestExtremeWins(t *testing.T) {
	date := models.Date("2022-01-01")

	// same extreme price at two timestamps: the earliest one is kept
	ticks := []models.PriceTick{
		tickAt("BTC", "100", at(date, 12, 0)),
		tickAt("BTC", "90", at(date, 9, 0)),
		tickAt("BTC", "90", at(date, 14, 0)),
	}

	updates, symbolErrs := ComputeDailyFactors(date, ticks)
	require.Empty(t, symbolErrs)
	require.Len(t, updates, 1)
	assert.Equal(t, at(date, 9, 0), updates[0].MinMax.MinPriceAt)
}

func TestComputeDailyFactorsZeroMin(t *testing.T) {
	date := models.Date("2022-01-01")

	ticks := []models.PriceTick{
		tickAt("DOGE", "0", at(date, 9, 0)),
		tickAt("DOGE", "1", at(date, 10, 0)),
	}

	updates, symbolErrs := ComputeDailyFactors(date, ticks)
	require.Len(t, updates, 1)
	require.Contains(t, symbolErrs, "DOGE")
	assert.ErrorIs(t, symbolErrs["DOGE"], models.ErrDivisionByZero)

	// extremes and oldest/newest still recorded, only the factor is absent
	upd := updates[0]
	assert.NotNil(t, upd.MinMax)
	assert.NotNil(t, upd.OldestNewest)
	assert.Nil(t, upd.DailyFactor)
}

func TestComputeDailyFactorsIgnoresOtherDays(t *testing.T) {
	date := models.Date("2022-01-02")

	ticks := []models.PriceTick{
		tickAt("BTC", "100", at(date, 10, 0)),
		tickAt("BTC", "999", at(date.AddDays(-1), 10, 0)),
	}

	updates, symbolErrs := ComputeDailyFactors(date, ticks)
	require.Empty(t, symbolErrs)
	require.Len(t, updates, 1)
	assert.True(t, updates[0].MinMax.MaxPrice.Equal(dec("100")))
}

func TestComputeDailyFactorsEmpty(t *testing.T) {
	updates, symbolErrs := ComputeDailyFactors(models.Date("2022-01-01"), nil)
	assert.Empty(t, updates)
	assert.Empty(t, symbolErrs)
}

func TestComputeDailyMultipleSymbolsSorted(t *testing.T) {
	date := models.Date("2022-01-01")
	store := repository.NewMemoryTickStore()
	require.NoError(t, store.SaveBatch(context.Background(), []models.PriceTick{
		tickAt("XRP", "1", at(date, 10, 0)),
		tickAt("BTC", "100", at(date, 10, 0)),
		tickAt("ETH", "10", at(date, 10, 0)),
	}))

	agg := NewDailyAggregator(store, nopMetrics{}, applogger.Nop())
	updates, symbolErrs, err := agg.ComputeDaily(context.Background(), date)
	require.NoError(t, err)
	require.Empty(t, symbolErrs)
	require.Len(t, updates, 3)
	assert.Equal(t, "BTC", updates[0].Key.Symbol)
	assert.Equal(t, "ETH", updates[1].Key.Symbol)
	assert.Equal(t, "XRP", updates[2].Key.Symbol)
}

func TestNormalizedFactorRounding(t *testing.T) {
	f, err := NormalizedFactor(dec("2950"), dec("3100"))
	require.NoError(t, err)
	assert.Equal(t, "0.05085", f.String())

	_, err = NormalizedFactor(dec("0"), dec("1"))
	assert.ErrorIs(t, err, models.ErrDivisionByZero)
}
