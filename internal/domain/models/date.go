package models

import "time"

// DateLayout is the wire/storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC, formatted as "yyyy-mm-dd". The string form
// keeps it usable as a map key and makes lexicographic order match calendar
// order.
type Date string

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(DateLayout))
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a "yyyy-mm-dd" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", err
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// AddDays returns the day shifted by n calendar days (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d falls before other.
func (d Date) Before(other Date) bool { return string(d) < string(other) }

// After reports whether d falls after other.
func (d Date) After(other Date) bool { return string(d) > string(other) }

// Contains reports whether ts falls within the day.
func (d Date) Contains(ts time.Time) bool {
	return DateOf(ts) == d
}

func (d Date) String() string { return string(d) }
