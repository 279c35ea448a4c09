package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	applogger "CryptoFactors/pkg/logger"

	"github.com/shopspring/decimal"
)

// DailyAggregator turns one day's raw ticks into per-symbol aggregate
// updates: price extremes, oldest/newest prices, and the daily normalized
// factor.
type DailyAggregator struct {
	ticks   domrepo.TickStore
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewDailyAggregator(ticks domrepo.TickStore, metrics domrepo.Metrics, log *applogger.Logger) *DailyAggregator {
	return &DailyAggregator{ticks: ticks, metrics: metrics, log: log}
}

// ComputeDaily fetches the day's ticks and computes one update per symbol.
// Per-symbol factor failures (zero min price) are returned in the error map
// and do not abort the other symbols; a storage failure aborts the pass.
func (a *DailyAggregator) ComputeDaily(ctx context.Context, date models.Date) ([]models.AggregateUpdate, map[string]error, error) {
	start := time.Now()
	ticks, err := a.ticks.FetchTicks(ctx, date)
	if err != nil {
		a.metrics.RecordError("fetch_ticks")
		return nil, nil, fmt.Errorf("fetch ticks for %s: %w", date, err)
	}
	updates, symbolErrs := ComputeDailyFactors(date, ticks)
	for sym, serr := range symbolErrs {
		a.metrics.RecordError("daily_factor")
		a.log.Warn("daily factor not computed",
			applogger.String("symbol", sym),
			applogger.String("date", date.String()),
			applogger.Error(serr),
		)
	}
	a.metrics.RecordLatency("daily_aggregate", time.Since(start).Seconds())
	a.log.Info("daily factors computed",
		applogger.String("date", date.String()),
		applogger.Int("ticks", len(ticks)),
		applogger.Int("symbols", len(updates)),
	)
	return updates, symbolErrs, nil
}

// ComputeDailyFactors groups ticks by symbol and derives the daily field
// groups. Symbols with no ticks produce no update (absence, not a zero
// record). For a symbol whose min price is zero the update is still produced
// with the min/max and oldest/newest groups, but without a daily factor, and
// the symbol is reported in the returned error map.
func ComputeDailyFactors(date models.Date, ticks []models.PriceTick) ([]models.AggregateUpdate, map[string]error) {
	bySymbol := make(map[string][]models.PriceTick)
	for _, t := range ticks {
		if t.Symbol == "" || !date.Contains(t.Timestamp) {
			continue
		}
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	updates := make([]models.AggregateUpdate, 0, len(symbols))
	symbolErrs := make(map[string]error)
	for _, sym := range symbols {
		upd, err := aggregateSymbol(models.AggregateKey{Symbol: sym, ReferenceDate: date}, bySymbol[sym])
		if err != nil {
			symbolErrs[sym] = err
		}
		updates = append(updates, upd)
	}
	return updates, symbolErrs
}

func aggregateSymbol(key models.AggregateKey, ticks []models.PriceTick) (models.AggregateUpdate, error) {
	// Stable ascending order by timestamp makes every tie-break below
	// deterministic: the earliest tick achieving an extreme wins.
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})

	first, last := ticks[0], ticks[len(ticks)-1]
	minTick, maxTick := first, first
	for _, t := range ticks[1:] {
		if t.Price.LessThan(minTick.Price) {
			minTick = t
		}
		if t.Price.GreaterThan(maxTick.Price) {
			maxTick = t
		}
	}

	upd := models.AggregateUpdate{
		Key: key,
		MinMax: &models.MinMaxUpdate{
			MinPrice:   minTick.Price,
			MinPriceAt: minTick.Timestamp,
			MaxPrice:   maxTick.Price,
			MaxPriceAt: maxTick.Timestamp,
		},
		OldestNewest: &models.OldestNewestUpdate{
			OldestPrice:   first.Price,
			OldestPriceAt: first.Timestamp,
			NewestPrice:   last.Price,
			NewestPriceAt: last.Timestamp,
		},
	}

	factor, err := NormalizedFactor(minTick.Price, maxTick.Price)
	if err != nil {
		return upd, fmt.Errorf("symbol %s: %w", key.Symbol, err)
	}
	upd.DailyFactor = &factor
	return upd, nil
}

// NormalizedFactor computes (max - min) / min rounded to FactorScale digits.
func NormalizedFactor(min, max decimal.Decimal) (decimal.Decimal, error) {
	if min.IsZero() {
		return decimal.Decimal{}, models.ErrDivisionByZero
	}
	return max.Sub(min).DivRound(min, models.FactorScale), nil
}
