package models

// FeatureSignal is a detector's positive output for one instrument and
// trade date. Unique per (feature, symbol, date).
type FeatureSignal struct {
	Feature string             `json:"feature"`
	Symbol  string             `json:"symbol"`
	Date    string             `json:"date"` // YYYYMMDD
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// SignalSet is the cached unit of a scan: all symbols that fired a
// feature at one end date.
type SignalSet struct {
	Feature string   `json:"feature"`
	Date    string   `json:"date"`
	Symbols []string `json:"symbols"`
}

// SyncSummary is the explicit ok/skip/fail outcome of a batch sync.
// Partial failure is reported here, never raised.
type SyncSummary struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	BarsAdded int `json:"bars_added"`
}

// HorizonStats aggregates forward returns at one holding horizon.
type HorizonStats struct {
	Horizon     int     `json:"horizon"` // trading days held
	Count       int     `json:"count"`
	WinRate     float64 `json:"win_rate"` // percent
	AvgReturn   float64 `json:"avg_return"`
	BestReturn  float64 `json:"best_return"`
	BestSymbol  string  `json:"best_symbol"`
	BestDate    string  `json:"best_date"`
	WorstReturn float64 `json:"worst_return"`
	WorstSymbol string  `json:"worst_symbol"`
	WorstDate   string  `json:"worst_date"`
}
