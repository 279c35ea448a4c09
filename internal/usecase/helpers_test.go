package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"CryptoFactors/internal/domain/models"
)

// nopMetrics satisfies the metrics interface for tests.
type nopMetrics struct{}

func (nopMetrics) RecordPass(string, string)      {}
func (nopMetrics) RecordError(string)             {}
func (nopMetrics) RecordLatency(string, float64)  {}
func (nopMetrics) RecordTicksIngested(string, int) {}
func (nopMetrics) SetQueueDepth(int)              {}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func tickAt(symbol, price string, ts time.Time) models.PriceTick {
	return models.PriceTick{Timestamp: ts, Symbol: symbol, Price: dec(price)}
}

func at(date models.Date, hour, min int) time.Time {
	return date.Time().Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func timePtr(t time.Time) *time.Time { return &t }
