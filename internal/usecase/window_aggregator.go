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

// WindowAggregator rolls daily aggregates into trailing week/month-to-date
// normalized factors.
//
// The window factor deliberately sums the per-day extremes and normalizes
// the sums, (sum(max) - sum(min)) / sum(min), instead of taking a true
// min/max across the window. The upstream system shipped this formula as a
// workaround for a storage-engine limitation and consumers rank against its
// values, so it is preserved for compatibility.
type WindowAggregator struct {
	store   domrepo.AggregateStore
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewWindowAggregator(store domrepo.AggregateStore, metrics domrepo.Metrics, log *applogger.Logger) *WindowAggregator {
	return &WindowAggregator{store: store, metrics: metrics, log: log}
}

// windowStart returns the first day of the inclusive window ending at date.
func windowStart(date models.Date, period models.FactorPeriod) models.Date {
	return date.AddDays(period.DaysBack() + 1)
}

// ComputeWindowFactor computes one symbol's normalized factor over the
// trailing window ending at date. Returns models.ErrEmptyWindow when the
// symbol has no populated rows in range.
func (w *WindowAggregator) ComputeWindowFactor(ctx context.Context, symbol string, date models.Date, period models.FactorPeriod) (decimal.Decimal, error) {
	rows, err := w.store.QueryRange(ctx, symbol, windowStart(date, period), date)
	if err != nil {
		w.metrics.RecordError("window_read")
		return decimal.Decimal{}, fmt.Errorf("window query %s: %w", symbol, err)
	}
	return sumOfExtremesFactor(rows)
}

// ComputeWindowUpdates computes the window factor for every symbol with
// populated rows in the window and returns one RollingFactorUpdate per
// symbol, keyed by (symbol, date). A symbol whose factor cannot be computed
// is reported in the error map and skipped; no zero factor is written.
func (w *WindowAggregator) ComputeWindowUpdates(ctx context.Context, date models.Date, period models.FactorPeriod) ([]models.AggregateUpdate, map[string]error, error) {
	start := time.Now()
	rows, err := w.store.QueryAllRange(ctx, windowStart(date, period), date)
	if err != nil {
		w.metrics.RecordError("window_read")
		return nil, nil, fmt.Errorf("window query all: %w", err)
	}

	bySymbol := make(map[string][]*models.DailyAggregate)
	for _, row := range rows {
		bySymbol[row.Key.Symbol] = append(bySymbol[row.Key.Symbol], row)
	}
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	updates := make([]models.AggregateUpdate, 0, len(symbols))
	symbolErrs := make(map[string]error)
	for _, sym := range symbols {
		factor, ferr := sumOfExtremesFactor(bySymbol[sym])
		if ferr != nil {
			symbolErrs[sym] = fmt.Errorf("symbol %s: %w", sym, ferr)
			w.metrics.RecordError("window_factor")
			w.log.Warn("window factor not computed",
				applogger.String("symbol", sym),
				applogger.String("date", date.String()),
				applogger.String("period", string(period)),
				applogger.Error(ferr),
			)
			continue
		}
		updates = append(updates, models.AggregateUpdate{
			Key:     models.AggregateKey{Symbol: sym, ReferenceDate: date},
			Rolling: &models.RollingFactorUpdate{Period: period, Factor: factor},
		})
	}

	w.metrics.RecordLatency("window_aggregate", time.Since(start).Seconds())
	w.log.Info("window factors computed",
		applogger.String("date", date.String()),
		applogger.String("period", string(period)),
		applogger.Int("symbols", len(updates)),
	)
	return updates, symbolErrs, nil
}

// WindowFactors aggregates one symbol's rows across the window for factor
// queries: the true extremes across the window's daily rows plus the oldest
// and newest prices at the window's edges.
func (w *WindowAggregator) WindowFactors(ctx context.Context, symbol string, date models.Date, period models.FactorPeriod) (*models.DailyAggregate, error) {
	rows, err := w.store.QueryRange(ctx, symbol, windowStart(date, period), date)
	if err != nil {
		return nil, fmt.Errorf("window query %s: %w", symbol, err)
	}
	populated := populatedRows(rows)
	if len(populated) == 0 {
		return nil, models.ErrNotFound
	}

	out := &models.DailyAggregate{Key: models.AggregateKey{Symbol: symbol, ReferenceDate: date}}
	for _, row := range populated {
		if out.MinPrice == nil || row.MinPrice.LessThan(*out.MinPrice) {
			out.MinPrice = row.MinPrice
			out.MinPriceAt = row.MinPriceAt
		}
		if out.MaxPrice == nil || row.MaxPrice.GreaterThan(*out.MaxPrice) {
			out.MaxPrice = row.MaxPrice
			out.MaxPriceAt = row.MaxPriceAt
		}
	}
	// Rows arrive ordered by date ascending; edges carry the window's
	// oldest and newest observations.
	earliest, latest := populated[0], populated[len(populated)-1]
	out.OldestPrice = earliest.OldestPrice
	out.OldestPriceAt = earliest.OldestPriceAt
	out.NewestPrice = latest.NewestPrice
	out.NewestPriceAt = latest.NewestPriceAt

	if factor, ferr := sumOfExtremesFactor(populated); ferr == nil {
		switch period {
		case models.PeriodWeek:
			out.WeeklyFactor = &factor
		case models.PeriodMonth:
			out.MonthlyFactor = &factor
		}
	}
	return out.Clone(), nil
}

// sumOfExtremesFactor applies the compatibility formula over rows with
// populated extremes. ErrEmptyWindow when none qualify, ErrDivisionByZero
// when the min sum is zero.
func sumOfExtremesFactor(rows []*models.DailyAggregate) (decimal.Decimal, error) {
	populated := populatedRows(rows)
	if len(populated) == 0 {
		return decimal.Decimal{}, models.ErrEmptyWindow
	}
	sumMin, sumMax := decimal.Zero, decimal.Zero
	for _, row := range populated {
		sumMin = sumMin.Add(*row.MinPrice)
		sumMax = sumMax.Add(*row.MaxPrice)
	}
	return NormalizedFactor(sumMin, sumMax)
}

func populatedRows(rows []*models.DailyAggregate) []*models.DailyAggregate {
	out := make([]*models.DailyAggregate, 0, len(rows))
	for _, row := range rows {
		if row.HasMinMax() {
			out = append(out, row)
		}
	}
	return out
}
