package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	"CryptoFactors/pkg/postgres"
)

// AggregateSchema creates the daily_factors table. Idempotent.
const AggregateSchema = `
	CREATE TABLE IF NOT EXISTS daily_factors (
		symbol          VARCHAR(6)  NOT NULL,
		reference_date  DATE        NOT NULL,
		min_price       NUMERIC(16,5),
		min_price_at    TIMESTAMPTZ,
		max_price       NUMERIC(16,5),
		max_price_at    TIMESTAMPTZ,
		oldest_price    NUMERIC(16,5),
		oldest_price_at TIMESTAMPTZ,
		newest_price    NUMERIC(16,5),
		newest_price_at TIMESTAMPTZ,
		daily_factor    NUMERIC(16,5),
		weekly_factor   NUMERIC(16,5),
		monthly_factor  NUMERIC(16,5),
		PRIMARY KEY (symbol, reference_date)
	)`

const aggregateColumns = `symbol, reference_date,
	min_price, min_price_at, max_price, max_price_at,
	oldest_price, oldest_price_at, newest_price, newest_price_at,
	daily_factor, weekly_factor, monthly_factor`

// PGAggregateStore implements AggregateStore using PostgreSQL. Each field
// group is written by its own UPDATE statement, so a pass updating one group
// never touches the others.
type PGAggregateStore struct {
	pool *postgres.Pool
}

// NewPGAggregateStore creates a Postgres aggregate store.
func NewPGAggregateStore(pool *postgres.Pool) *PGAggregateStore {
	return &PGAggregateStore{pool: pool}
}

var _ domrepo.AggregateStore = (*PGAggregateStore)(nil)

// InitSchema ensures the daily_factors table exists.
func (s *PGAggregateStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, AggregateSchema); err != nil {
		return fmt.Errorf("init aggregate schema: %w", err)
	}
	return nil
}

func (s *PGAggregateStore) Get(ctx context.Context, key models.AggregateKey) (*models.DailyAggregate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM daily_factors
		WHERE symbol = $1 AND reference_date = $2
	`, aggregateColumns)

	row := s.pool.QueryRow(ctx, query, key.Symbol, key.ReferenceDate.Time())
	agg, err := scanAggregate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get aggregate: %w", err)
	}
	return agg, nil
}

func (s *PGAggregateStore) GetMany(ctx context.Context, keys []models.AggregateKey) (map[models.AggregateKey]*models.DailyAggregate, error) {
	out := make(map[models.AggregateKey]*models.DailyAggregate, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	tuples := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*2)
	for i, k := range keys {
		tuples = append(tuples, fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2))
		args = append(args, k.Symbol, k.ReferenceDate.Time())
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM daily_factors
		WHERE (symbol, reference_date) IN (%s)
	`, aggregateColumns, strings.Join(tuples, ", "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get many aggregates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out[agg.Key] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *PGAggregateStore) Insert(ctx context.Context, aggs []*models.DailyAggregate) error {
	if len(aggs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO daily_factors (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, aggregateColumns)

	batch := &pgx.Batch{}
	for _, a := range aggs {
		batch.Queue(query,
			a.Key.Symbol, a.Key.ReferenceDate.Time(),
			decArg(a.MinPrice), timeArg(a.MinPriceAt),
			decArg(a.MaxPrice), timeArg(a.MaxPriceAt),
			decArg(a.OldestPrice), timeArg(a.OldestPriceAt),
			decArg(a.NewestPrice), timeArg(a.NewestPriceAt),
			decArg(a.DailyFactor), decArg(a.WeeklyFactor), decArg(a.MonthlyFactor),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range aggs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert aggregate: %w", err)
		}
	}
	return nil
}

func (s *PGAggregateStore) Update(ctx context.Context, upd models.AggregateUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 10)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if mm := upd.MinMax; mm != nil {
		sets = append(sets,
			"min_price = "+arg(mm.MinPrice),
			"min_price_at = "+arg(mm.MinPriceAt),
			"max_price = "+arg(mm.MaxPrice),
			"max_price_at = "+arg(mm.MaxPriceAt),
		)
	}
	if on := upd.OldestNewest; on != nil {
		sets = append(sets,
			"oldest_price = "+arg(on.OldestPrice),
			"oldest_price_at = "+arg(on.OldestPriceAt),
			"newest_price = "+arg(on.NewestPrice),
			"newest_price_at = "+arg(on.NewestPriceAt),
		)
	}
	if upd.DailyFactor != nil {
		sets = append(sets, "daily_factor = "+arg(*upd.DailyFactor))
	}
	if r := upd.Rolling; r != nil {
		switch r.Period {
		case models.PeriodWeek:
			sets = append(sets, "weekly_factor = "+arg(r.Factor))
		case models.PeriodMonth:
			sets = append(sets, "monthly_factor = "+arg(r.Factor))
		default:
			return fmt.Errorf("rolling update with period %q", r.Period)
		}
	}

	query := fmt.Sprintf(
		"UPDATE daily_factors SET %s WHERE symbol = %s AND reference_date = %s",
		strings.Join(sets, ", "),
		arg(upd.Key.Symbol), arg(upd.Key.ReferenceDate.Time()),
	)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PGAggregateStore) QueryByDate(ctx context.Context, date models.Date) ([]*models.DailyAggregate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM daily_factors
		WHERE reference_date = $1
		ORDER BY symbol ASC
	`, aggregateColumns)

	rows, err := s.pool.Query(ctx, query, date.Time())
	if err != nil {
		return nil, fmt.Errorf("query by date: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

func (s *PGAggregateStore) QueryRange(ctx context.Context, symbol string, from, to models.Date) ([]*models.DailyAggregate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM daily_factors
		WHERE symbol = $1 AND reference_date >= $2 AND reference_date <= $3
		ORDER BY reference_date ASC
	`, aggregateColumns)

	rows, err := s.pool.Query(ctx, query, symbol, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

func (s *PGAggregateStore) QueryAllRange(ctx context.Context, from, to models.Date) ([]*models.DailyAggregate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM daily_factors
		WHERE reference_date >= $1 AND reference_date <= $2
		ORDER BY symbol ASC, reference_date ASC
	`, aggregateColumns)

	rows, err := s.pool.Query(ctx, query, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query all range: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

func (s *PGAggregateStore) Close() error {
	return nil // pool managed by pkg/postgres
}

func scanAggregate(row pgx.Row) (*models.DailyAggregate, error) {
	var (
		a       models.DailyAggregate
		refDate time.Time

		minPrice, maxPrice       decimal.NullDecimal
		oldestPrice, newestPrice decimal.NullDecimal
		daily, weekly, monthly   decimal.NullDecimal

		minAt, maxAt, oldestAt, newestAt sql.NullTime
	)

	err := row.Scan(
		&a.Key.Symbol, &refDate,
		&minPrice, &minAt, &maxPrice, &maxAt,
		&oldestPrice, &oldestAt, &newestPrice, &newestAt,
		&daily, &weekly, &monthly,
	)
	if err != nil {
		return nil, err
	}

	a.Key.ReferenceDate = models.DateOf(refDate)
	a.MinPrice = nullDec(minPrice)
	a.MinPriceAt = nullTime(minAt)
	a.MaxPrice = nullDec(maxPrice)
	a.MaxPriceAt = nullTime(maxAt)
	a.OldestPrice = nullDec(oldestPrice)
	a.OldestPriceAt = nullTime(oldestAt)
	a.NewestPrice = nullDec(newestPrice)
	a.NewestPriceAt = nullTime(newestAt)
	a.DailyFactor = nullDec(daily)
	a.WeeklyFactor = nullDec(weekly)
	a.MonthlyFactor = nullDec(monthly)
	return &a, nil
}

func scanAggregates(rows pgx.Rows) ([]*models.DailyAggregate, error) {
	var out []*models.DailyAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func nullDec(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func decArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
