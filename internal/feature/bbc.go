package feature

import "alphaspike/internal/domain/models"

// BBC detects a big bearish candle: a heavy gap-up reversal right
// after a limit-up close on modest volume, inside an uptrend. The
// signal fires if the pattern occurred in the last 3 trading days.
func BBC(s models.BarSeries) Result {
	n := s.Len()
	if n < 1000 {
		return noSignal()
	}

	closes := s.Closes()
	highs := s.Highs()
	vols := s.Volumes()

	volQ := rankPct(vols)
	volQMA10 := sma(volQ, 10)
	volQMA3 := sma(volQ, 3)
	high10 := hhv(highs, 10)
	high144 := hhv(highs, 144)
	maClose5 := sma(closes, 5)
	maClose10 := sma(closes, 10)

	for i := n - 3; i < n; i++ {
		if i < 1 {
			continue
		}
		cur, prev := s[i], s[i-1]

		// quiet volume regime going in
		if !(volQMA10[i-1] < 0.75 && volQMA3[i-1] < 0.75 && volQ[i-1] < 0.75) {
			continue
		}
		// previous day closed at its high on a limit-up
		if !(prev.PctChg > 9.5 && prev.Close == prev.High) {
			continue
		}
		// gap up into a local high, but below the 144-day ceiling
		gapUp := cur.Open > cur.PreClose && cur.High >= high10[i] && cur.High < high144[i]
		if !(cur.Close < cur.Open*0.95 && cur.Close < cur.Open && gapUp) {
			continue
		}
		// short trend above mid trend as of yesterday
		if !(maClose5[i-1] > maClose10[i-1]) {
			continue
		}

		return signal(map[string]float64{
			"pct_chg":      cur.PctChg,
			"vol_quantile": volQ[i],
			"body_drop":    (cur.Open - cur.Close) / cur.Open * 100,
		})
	}
	return noSignal()
}
