package models

// FactorPeriod selects which normalized factor a query or window computation
// refers to. Each period carries its trailing window length so window logic
// can be parametrized by DaysBack instead of branching on the enum.
type FactorPeriod string

const (
	PeriodDay   FactorPeriod = "DAY"
	PeriodWeek  FactorPeriod = "WEEK"
	PeriodMonth FactorPeriod = "MONTH"
)

// DaysBack returns the window offset for the period: 0 means the reference
// day only, -7 a week to date, -30 a month to date. The inclusive window for
// a reference date d is [d+DaysBack+1, d].
func (p FactorPeriod) DaysBack() int {
	switch p {
	case PeriodWeek:
		return -7
	case PeriodMonth:
		return -30
	default:
		return 0
	}
}

// IsValidPeriod returns true if p is a supported factor period.
func IsValidPeriod(p FactorPeriod) bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default factor period.
func DefaultPeriod() FactorPeriod { return PeriodDay }
