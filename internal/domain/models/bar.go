package models

import "sort"

// Bar is one trading day of OHLCV data for an instrument.
// Dates are YYYYMMDD strings throughout; lexicographic order equals
// chronological order, which the store and the loader rely on.
type Bar struct {
	Symbol   string  `json:"symbol"`
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	PreClose float64 `json:"pre_close"`
	Change   float64 `json:"change"`
	PctChg   float64 `json:"pct_chg"`
	Volume   float64 `json:"vol"`
	Amount   float64 `json:"amount"`
}

// BarSeries is an ordered, append-only daily bar history for one symbol.
// Invariant: strictly increasing dates, no duplicates.
type BarSeries []Bar

// Len returns the number of bars.
func (s BarSeries) Len() int { return len(s) }

// Last returns the most recent bar. Callers must check Len first.
func (s BarSeries) Last() Bar { return s[len(s)-1] }

// Prefix returns the sub-series of bars with Date <= date.
// The result shares backing storage with s; callers that hand it to a
// worker must copy it first (see CopyPrefix).
func (s BarSeries) Prefix(date string) BarSeries {
	i := sort.Search(len(s), func(i int) bool { return s[i].Date > date })
	return s[:i]
}

// CopyPrefix returns an independent copy of Prefix(date), safe to move
// across worker boundaries.
func (s BarSeries) CopyPrefix(date string) BarSeries {
	p := s.Prefix(date)
	out := make(BarSeries, len(p))
	copy(out, p)
	return out
}

// IndexOf returns the position of date in the series, or -1.
func (s BarSeries) IndexOf(date string) int {
	i := sort.Search(len(s), func(i int) bool { return s[i].Date >= date })
	if i < len(s) && s[i].Date == date {
		return i
	}
	return -1
}

// Closes returns the close column.
func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume column.
func (s BarSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Opens returns the open column.
func (s BarSeries) Opens() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Open
	}
	return out
}

// Amounts returns the turnover-amount column.
func (s BarSeries) Amounts() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Amount
	}
	return out
}

// Highs returns the high column.
func (s BarSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column.
func (s BarSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// TradingCalendar is the sorted set of distinct trading dates observed
// across all series loaded in a batch window. Derived, never persisted.
type TradingCalendar []string

// NewTradingCalendar builds a calendar from a set of loaded series.
func NewTradingCalendar(series map[string]BarSeries) TradingCalendar {
	seen := make(map[string]struct{})
	for _, s := range series {
		for _, b := range s {
			seen[b.Date] = struct{}{}
		}
	}
	out := make(TradingCalendar, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Between returns the calendar dates within [start, end].
func (c TradingCalendar) Between(start, end string) []string {
	lo := sort.SearchStrings(c, start)
	hi := sort.Search(len(c), func(i int) bool { return c[i] > end })
	return c[lo:hi]
}
