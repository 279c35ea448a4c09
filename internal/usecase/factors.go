package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	"CryptoFactors/pkg/cache"
	applogger "CryptoFactors/pkg/logger"
)

const (
	rankCacheTTL    = 30 * time.Second
	factorsCacheTTL = 30 * time.Second
)

// FactorService serves ranking and factor lookups from the aggregate store.
// Results are cached briefly; a processing pass for a past date invalidates
// naturally through the TTL.
type FactorService struct {
	store   domrepo.AggregateStore
	windows *WindowAggregator
	cache   cache.Service
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewFactorService(store domrepo.AggregateStore, windows *WindowAggregator, c cache.Service, metrics domrepo.Metrics, log *applogger.Logger) *FactorService {
	return &FactorService{store: store, windows: windows, cache: c, metrics: metrics, log: log}
}

// Rank orders all symbols holding the period's factor for date, descending
// by factor, ties broken by symbol ascending. limit <= 0 means no limit.
// An empty slice (never an error) means nothing has the factor populated.
func (s *FactorService) Rank(ctx context.Context, date models.Date, period models.FactorPeriod, limit int) ([]string, error) {
	cacheKey := fmt.Sprintf("rank:%s:%s", date, period)
	if limit <= 0 {
		var cached []string
		if err := cache.GetTyped(ctx, s.cache, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	rows, err := s.store.QueryByDate(ctx, date)
	if err != nil {
		s.metrics.RecordError("rank_read")
		return nil, fmt.Errorf("rank %s/%s: %w", date, period, err)
	}

	type ranked struct {
		symbol string
		row    *models.DailyAggregate
	}
	entries := make([]ranked, 0, len(rows))
	for _, row := range rows {
		if row.Factor(period) != nil {
			entries = append(entries, ranked{symbol: row.Key.Symbol, row: row})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		fi, fj := *entries[i].row.Factor(period), *entries[j].row.Factor(period)
		if !fi.Equal(fj) {
			return fi.GreaterThan(fj)
		}
		return entries[i].symbol < entries[j].symbol
	})

	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		symbols = append(symbols, e.symbol)
	}
	if limit <= 0 {
		_ = s.cache.Set(ctx, cacheKey, symbols, rankCacheTTL)
	}
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}

// Best returns the symbol with the highest factor for the period, or
// models.ErrNotFound when no symbol has it populated.
func (s *FactorService) Best(ctx context.Context, date models.Date, period models.FactorPeriod) (string, error) {
	symbols, err := s.Rank(ctx, date, period, 1)
	if err != nil {
		return "", err
	}
	if len(symbols) == 0 {
		return "", models.ErrNotFound
	}
	return symbols[0], nil
}

// Factors returns the price factors for one symbol and reference date. DAY
// returns the stored row as is; WEEK and MONTH aggregate the stored daily
// rows across the trailing window. models.ErrNotFound when no data exists.
func (s *FactorService) Factors(ctx context.Context, symbol string, date models.Date, period models.FactorPeriod) (*models.DailyAggregate, error) {
	cacheKey := fmt.Sprintf("factors:%s:%s:%s", symbol, date, period)
	var cached models.DailyAggregate
	if err := cache.GetTyped(ctx, s.cache, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	var (
		row *models.DailyAggregate
		err error
	)
	switch period {
	case models.PeriodDay:
		row, err = s.store.Get(ctx, models.AggregateKey{Symbol: symbol, ReferenceDate: date})
	default:
		row, err = s.windows.WindowFactors(ctx, symbol, date, period)
	}
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, cacheKey, row, factorsCacheTTL)
	return row, nil
}
