package models

// Stage tracks how far a date has progressed through a processing pass.
// Transitions are strictly forward: a failed stage leaves the date where it
// was for retry on the next scheduling tick.
type Stage string

const (
	StagePending         Stage = "pending"
	StageDailyComputed   Stage = "daily_computed"
	StageWeeklyComputed  Stage = "weekly_computed"
	StageMonthlyComputed Stage = "monthly_computed"
	StageProcessed       Stage = "processed"
)

// ProcessingOutcome summarizes one completed (or partially completed) pass
// over a single date.
type ProcessingOutcome struct {
	Date       Date
	FinalStage Stage
	Inserted   int
	Updated    int
	// SymbolErrors counts per-symbol failures (zero min price, empty
	// windows) that were recovered without aborting the pass.
	SymbolErrors int
}
