package usecase

import "alphaspike/internal/domain/models"

// ForwardReturn is the outcome of holding a signal: entry at the next
// trading day's open, exit at the Nth trading day's close.
type ForwardReturn struct {
	Symbol     string  `json:"symbol"`
	SignalDate string  `json:"signal_date"`
	EntryDate  string  `json:"entry_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitDate   string  `json:"exit_date"`
	ExitPrice  float64 `json:"exit_price"`
	Return     float64 `json:"return"`     // percent
	MaxReturn  float64 `json:"max_return"` // best close during holding, percent
	Holding    int     `json:"holding"`    // trading days actually held
}

// periodReturns computes the return at each requested horizon for a
// signal. A horizon whose exit bar does not exist yet is omitted from
// the map, never reported as zero. ok is false when even the entry
// bar is missing.
func periodReturns(s models.BarSeries, signalDate string, horizons []int) (map[int]ForwardReturn, bool) {
	entry := entryIndex(s, signalDate)
	if entry < 0 {
		return nil, false
	}
	entryPrice := s[entry].Open
	if entryPrice <= 0 {
		return nil, false
	}

	out := make(map[int]ForwardReturn, len(horizons))
	for _, h := range horizons {
		exit := entry + h - 1
		if h < 1 || exit >= s.Len() {
			continue
		}
		held := s[entry : exit+1]
		out[h] = ForwardReturn{
			Symbol:     s[entry].Symbol,
			SignalDate: signalDate,
			EntryDate:  s[entry].Date,
			EntryPrice: entryPrice,
			ExitDate:   s[exit].Date,
			ExitPrice:  s[exit].Close,
			Return:     (s[exit].Close - entryPrice) / entryPrice * 100,
			MaxReturn:  (maxClose(held) - entryPrice) / entryPrice * 100,
			Holding:    len(held),
		}
	}
	return out, true
}

// entryIndex returns the index of the first bar strictly after
// signalDate, or -1 when no future bar exists.
func entryIndex(s models.BarSeries, signalDate string) int {
	i := len(s.Prefix(signalDate))
	if i >= s.Len() {
		return -1
	}
	return i
}

func maxClose(s models.BarSeries) float64 {
	max := s[0].Close
	for _, b := range s[1:] {
		if b.Close > max {
			max = b.Close
		}
	}
	return max
}
