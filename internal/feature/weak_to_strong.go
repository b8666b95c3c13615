package feature

import (
	"strings"

	"alphaspike/internal/domain/models"
)

// WeakToStrong detects two consecutive limit-up days followed by a
// gap-down day whose high never recovers the previous close. The
// limit-up threshold depends on the board the symbol trades on.
func WeakToStrong(s models.BarSeries) Result {
	n := s.Len()
	if n < 3 {
		return noSignal()
	}

	threshold := limitUpThreshold(s[0].Symbol)
	t2, t1, t := s[n-3], s[n-2], s[n-1]

	if t2.PctChg <= threshold || t1.PctChg <= threshold {
		return noSignal()
	}
	if t.Open >= t1.Close || t.High >= t1.Close {
		return noSignal()
	}

	return signal(map[string]float64{
		"gap_pct":       (t.Open/t1.Close - 1) * 100,
		"prev_pct_chg":  t1.PctChg,
		"prev2_pct_chg": t2.PctChg,
	})
}

// limitUpThreshold returns the board-specific limit-up cutoff:
// 19.2 for the 20%-band ChiNext (30 prefix), 9.5 for the main boards.
func limitUpThreshold(symbol string) float64 {
	code, _, _ := strings.Cut(symbol, ".")
	if strings.HasPrefix(code, "30") {
		return 19.2
	}
	return 9.5
}
