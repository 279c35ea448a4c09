package models

import "errors"

var (
	// ErrDivisionByZero is reported when a normalized factor cannot be
	// computed because the window's minimum price is zero. Recovered per
	// symbol: the factor stays unset, other symbols keep processing.
	ErrDivisionByZero = errors.New("factor: division by zero, min price is zero")

	// ErrEmptyWindow is reported when a rolling window holds no populated
	// aggregate rows. Callers skip writing a factor instead of writing zero.
	ErrEmptyWindow = errors.New("factor: no aggregates in window")

	// ErrNotFound is surfaced as absence to query callers.
	ErrNotFound = errors.New("not found")

	// ErrQueueEmpty means no date is pending in the processing queue.
	ErrQueueEmpty = errors.New("queue: no pending dates")
)
