package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one raw timestamped price observation for a symbol. Ticks are
// produced once by ingestion and never mutated.
type PriceTick struct {
	Timestamp time.Time
	Symbol    string
	Price     decimal.Decimal
}

// Date returns the UTC calendar day the tick belongs to.
func (t PriceTick) Date() Date {
	return DateOf(t.Timestamp)
}
