package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	pkgch "CryptoFactors/pkg/clickhouse"
	applogger "CryptoFactors/pkg/logger"

	"github.com/shopspring/decimal"
)

// TickSchemaStatements creates the raw tick table. Idempotent; passed to
// clickhouse.Client.InitSchema at startup.
var TickSchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS crypto_ticks (
		ts      DateTime64(3, 'UTC'),
		symbol  LowCardinality(String),
		price   Decimal(16, 5)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, ts)`,
}

// CHTickStore implements TickStore backed by ClickHouse. The table is
// append-only; day-level reads drive the aggregation passes.
type CHTickStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHTickStore creates a ClickHouse tick store.
func NewCHTickStore(ch *pkgch.Client, l *applogger.Logger) domrepo.TickStore {
	return &CHTickStore{db: ch.DB(), table: "crypto_ticks", l: l}
}

func (s *CHTickStore) SaveBatch(ctx context.Context, ticks []models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	// Chunked multi-row VALUES inserts to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(ticks); start += chunkSize {
		end := start + chunkSize
		if end > len(ticks) {
			end = len(ticks)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*3)
		for _, t := range ticks[start:end] {
			if t.Symbol == "" || t.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?)")
			args = append(args, t.Timestamp.UTC(), t.Symbol, t.Price.String())
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

func (s *CHTickStore) FetchTicks(ctx context.Context, date models.Date) ([]models.PriceTick, error) {
	start := time.Now()
	dayStart := date.Time()
	dayEnd := dayStart.AddDate(0, 0, 1)

	q := fmt.Sprintf(`
		SELECT ts, symbol, toString(price)
		FROM %s
		WHERE ts >= ? AND ts < ?
		ORDER BY symbol, ts ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, q, dayStart, dayEnd)
	if err != nil {
		s.l.Error("clickhouse fetch_ticks query error",
			applogger.String("date", date.String()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch ticks: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceTick, 0, 1024)
	for rows.Next() {
		var (
			ts       time.Time
			symbol   string
			priceStr string
		)
		if err := rows.Scan(&ts, &symbol, &priceStr); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", priceStr, err)
		}
		out = append(out, models.PriceTick{Timestamp: ts.UTC(), Symbol: symbol, Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse fetch_ticks ok",
		applogger.String("date", date.String()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (s *CHTickStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHTickStore) Close() error {
	return nil // pool managed by pkg/clickhouse
}
