package util

import (
	"fmt"
	"time"
)

// DayFormat is the canonical trade-date layout used across the store,
// the vendor API and cache keys. Lexicographic order equals
// chronological order.
const DayFormat = "20060102"

// ParseDay parses a YYYYMMDD string. Returns (t, true) if valid.
func ParseDay(s string) (time.Time, bool) {
	if len(s) != 8 {
		return time.Time{}, false
	}
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Today returns the current local date as YYYYMMDD.
func Today() string {
	return time.Now().Format(DayFormat)
}

// NextDay returns the calendar day after s. Invalid input is returned
// unchanged so the caller's subsequent range check fails closed.
func NextDay(s string) string {
	t, ok := ParseDay(s)
	if !ok {
		return s
	}
	return t.AddDate(0, 0, 1).Format(DayFormat)
}

// AddDays shifts a YYYYMMDD date by n calendar days.
func AddDays(s string, n int) string {
	t, ok := ParseDay(s)
	if !ok {
		return s
	}
	return t.AddDate(0, 0, n).Format(DayFormat)
}

// LastWeekday returns the most recent Mon-Fri date on or before s.
// Exchange holidays are not modeled here; the trading calendar derived
// from loaded bars is authoritative once data exists.
func LastWeekday(s string) string {
	t, ok := ParseDay(s)
	if !ok {
		return s
	}
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format(DayFormat)
}

// YearRange returns the first and last calendar days of a year.
func YearRange(year int) (string, string) {
	return fmt.Sprintf("%04d0101", year), fmt.Sprintf("%04d1231", year)
}
