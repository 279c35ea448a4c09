package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FactorScale is the number of fractional digits kept on normalized factors.
// Matches the NUMERIC(16,5) columns in the aggregate store.
const FactorScale = 5

// AggregateKey uniquely identifies one daily aggregate row.
type AggregateKey struct {
	Symbol        string
	ReferenceDate Date
}

// DailyAggregate is the per-symbol, per-day record of derived price factors.
// Fields are populated incrementally across separate processing passes, so a
// row holding only a subset of them is a valid, expected state.
type DailyAggregate struct {
	Key AggregateKey

	MinPrice   *decimal.Decimal
	MinPriceAt *time.Time
	MaxPrice   *decimal.Decimal
	MaxPriceAt *time.Time

	// OldestPrice/NewestPrice hold the first and last prices observed during
	// the reference day, with their tick timestamps.
	OldestPrice   *decimal.Decimal
	OldestPriceAt *time.Time
	NewestPrice   *decimal.Decimal
	NewestPriceAt *time.Time

	DailyFactor *decimal.Decimal

	// WeeklyFactor/MonthlyFactor describe the trailing window ending on the
	// reference date, not the single day's range.
	WeeklyFactor  *decimal.Decimal
	MonthlyFactor *decimal.Decimal
}

// HasMinMax reports whether both extremes are populated.
func (a *DailyAggregate) HasMinMax() bool {
	return a.MinPrice != nil && a.MaxPrice != nil
}

// Factor returns the normalized factor for the given period, or nil when it
// has not been computed yet.
func (a *DailyAggregate) Factor(p FactorPeriod) *decimal.Decimal {
	switch p {
	case PeriodWeek:
		return a.WeeklyFactor
	case PeriodMonth:
		return a.MonthlyFactor
	default:
		return a.DailyFactor
	}
}

// Clone returns a deep copy. Stores hand out clones so readers never share
// row memory with a concurrent reconciliation pass.
func (a *DailyAggregate) Clone() *DailyAggregate {
	c := &DailyAggregate{Key: a.Key}
	c.MinPrice = cloneDec(a.MinPrice)
	c.MinPriceAt = cloneTime(a.MinPriceAt)
	c.MaxPrice = cloneDec(a.MaxPrice)
	c.MaxPriceAt = cloneTime(a.MaxPriceAt)
	c.OldestPrice = cloneDec(a.OldestPrice)
	c.OldestPriceAt = cloneTime(a.OldestPriceAt)
	c.NewestPrice = cloneDec(a.NewestPrice)
	c.NewestPriceAt = cloneTime(a.NewestPriceAt)
	c.DailyFactor = cloneDec(a.DailyFactor)
	c.WeeklyFactor = cloneDec(a.WeeklyFactor)
	c.MonthlyFactor = cloneDec(a.MonthlyFactor)
	return c
}

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MinMaxUpdate carries the price extremes of a day and the earliest
// timestamps achieving them.
type MinMaxUpdate struct {
	MinPrice   decimal.Decimal
	MinPriceAt time.Time
	MaxPrice   decimal.Decimal
	MaxPriceAt time.Time
}

// OldestNewestUpdate carries the first and last observed prices of a day.
type OldestNewestUpdate struct {
	OldestPrice   decimal.Decimal
	OldestPriceAt time.Time
	NewestPrice   decimal.Decimal
	NewestPriceAt time.Time
}

// RollingFactorUpdate carries one trailing-window normalized factor.
// Period must be WEEK or MONTH.
type RollingFactorUpdate struct {
	Period FactorPeriod
	Factor decimal.Decimal
}

// AggregateUpdate is a field-group-scoped write command for one aggregate
// row. Only the non-nil groups are written; fields outside them stay
// untouched on an existing row. This replaces building mostly-empty rows to
// update a single field group.
type AggregateUpdate struct {
	Key          AggregateKey
	MinMax       *MinMaxUpdate
	OldestNewest *OldestNewestUpdate
	DailyFactor  *decimal.Decimal
	Rolling      *RollingFactorUpdate
}

// IsEmpty reports whether the update carries no field group at all.
func (u *AggregateUpdate) IsEmpty() bool {
	return u.MinMax == nil && u.OldestNewest == nil && u.DailyFactor == nil && u.Rolling == nil
}

// Row materializes the update as a full aggregate row, used when the
// reconciler decides the key does not exist yet and inserts instead of
// updating.
func (u *AggregateUpdate) Row() *DailyAggregate {
	row := &DailyAggregate{Key: u.Key}
	u.ApplyTo(row)
	return row
}

// ApplyTo writes the update's field groups onto row in place.
func (u *AggregateUpdate) ApplyTo(row *DailyAggregate) {
	if mm := u.MinMax; mm != nil {
		row.MinPrice = cloneDec(&mm.MinPrice)
		row.MinPriceAt = cloneTime(&mm.MinPriceAt)
		row.MaxPrice = cloneDec(&mm.MaxPrice)
		row.MaxPriceAt = cloneTime(&mm.MaxPriceAt)
	}
	if on := u.OldestNewest; on != nil {
		row.OldestPrice = cloneDec(&on.OldestPrice)
		row.OldestPriceAt = cloneTime(&on.OldestPriceAt)
		row.NewestPrice = cloneDec(&on.NewestPrice)
		row.NewestPriceAt = cloneTime(&on.NewestPriceAt)
	}
	if u.DailyFactor != nil {
		row.DailyFactor = cloneDec(u.DailyFactor)
	}
	if r := u.Rolling; r != nil {
		switch r.Period {
		case PeriodWeek:
			row.WeeklyFactor = cloneDec(&r.Factor)
		case PeriodMonth:
			row.MonthlyFactor = cloneDec(&r.Factor)
		}
	}
}
