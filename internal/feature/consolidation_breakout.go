package feature

import (
	"math"

	"alphaspike/internal/domain/models"
)

// ConsolidationBreakout detects a volume breakout within 10 days of a
// tight consolidation: low ATR, no ADX trend, compressed Bollinger
// width and a flat 20-day moving average held for at least 3
// consecutive days, then a close above the prior 10-day high on 1.5x
// average volume. The breakout must land in the last 3 trading days.
func ConsolidationBreakout(s models.BarSeries) Result {
	const (
		minConsolidationDays = 3
		lookback             = 10
	)

	n := s.Len()
	if n < 60 {
		return noSignal()
	}

	closes := s.Closes()
	highs := s.Highs()
	lows := s.Lows()
	vols := s.Volumes()

	atr14 := atr(highs, lows, closes, 14)
	adx14 := adx(highs, lows, closes, 14)
	ma20 := sma(closes, 20)
	ma20Std10 := rollingStd(ma20, 10)
	bbWidth := bollingerWidth(closes, 20)
	bbWidthQ := rollingQuantile(bbWidth, 20)
	volSMA20 := sma(vols, 20)
	priorHigh := hhv(shift(highs, 1), lookback)

	daily := make([]bool, n)
	for i := range s {
		flat := i >= 5 &&
			math.Abs(ma20[i]-ma20[i-5])/ma20[i] < 0.003 &&
			ma20Std10[i]/ma20[i] < 0.002
		daily[i] = atr14[i]/closes[i]*100 < 1.5 &&
			adx14[i] < 22 &&
			bbWidthQ[i] < 0.30 &&
			flat
	}
	consolidation := consecutiveAtLeast(daily, minConsolidationDays)

	for i := n - 3; i < n; i++ {
		if !(closes[i] > priorHigh[i] && vols[i] > volSMA20[i]*1.5) {
			continue
		}
		// consolidation in any of the 10 days before the breakout
		recent := false
		for j := i - 10; j < i; j++ {
			if j >= 0 && consolidation[j] {
				recent = true
				break
			}
		}
		if !recent {
			continue
		}
		return signal(map[string]float64{
			"breakout_level": priorHigh[i],
			"vol_ratio":      vols[i] / volSMA20[i],
		})
	}
	return noSignal()
}

// rollingQuantile returns the fraction of the trailing window strictly
// below the current value, NaN while the value itself is NaN.
func rollingQuantile(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		cur := values[i]
		if math.IsNaN(cur) {
			continue
		}
		below := 0
		for j := i - window + 1; j <= i; j++ {
			if values[j] < cur {
				below++
			}
		}
		out[i] = float64(below) / float64(window)
	}
	return out
}
