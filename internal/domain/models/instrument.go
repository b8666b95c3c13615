package models

import "strings"

// Instrument identifies one listed stock. Refreshed on catalog load and
// immutable for the rest of a run.
type Instrument struct {
	Symbol   string `json:"symbol"`    // e.g. "600000.SH"
	Name     string `json:"name"`      // display name from the exchange listing
	Exchange string `json:"exchange"`  // "SSE" or "SZSE"
	ListDate string `json:"list_date"` // YYYYMMDD
}

// Code returns the bare 6-digit code without the exchange suffix.
func (i Instrument) Code() string {
	if idx := strings.IndexByte(i.Symbol, '.'); idx >= 0 {
		return i.Symbol[:idx]
	}
	return i.Symbol
}

// IsST reports whether the instrument is under special treatment, by
// name prefix ("ST" / "*ST", case-insensitive).
func (i Instrument) IsST() bool {
	name := strings.ToLower(i.Name)
	return strings.HasPrefix(name, "st") || strings.HasPrefix(name, "*st")
}

// LimitUpThreshold returns the pct-change that counts as a limit-up for
// this instrument. ChiNext (30x codes) trades with a 20% band, the main
// boards with 10%; thresholds sit just under the band to absorb rounding.
func (i Instrument) LimitUpThreshold() float64 {
	if strings.HasPrefix(i.Code(), "30") {
		return 19.2
	}
	return 9.5
}

// SyncStatus records how far one instrument's history has been
// synchronized. Invariant: LastSynced never exceeds the max stored bar
// date for the symbol, and never decreases across runs.
type SyncStatus struct {
	Symbol     string `json:"symbol"`
	LastSynced string `json:"last_synced"` // YYYYMMDD
}
