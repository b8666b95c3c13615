package feature

import (
	"math"

	"alphaspike/internal/domain/models"
)

// Structure types a four-edge setup can form. The entry conditions of
// edge 3 depend on which structure armed the signal.
const (
	structNone = iota
	structCompress // horizontal compression about to expand
	structPullback // pullback inside an established uptrend
	structRetest   // breakout holding its level on the retest
)

// FourEdge looks for tradeable volatility (edge 1) inside one of three
// structural setups (edge 2), confirmed by an entry candle for that
// structure (edge 3), and not already overheated (edge 4). The signal
// fires when all four line up on any of the last three days.
func FourEdge(s models.BarSeries) Result {
	n := s.Len()
	if n < 130 {
		return noSignal()
	}

	opens := s.Opens()
	highs := s.Highs()
	lows := s.Lows()
	closes := s.Closes()
	vols := s.Volumes()
	amounts := s.Amounts()

	atr14 := atr(highs, lows, closes, 14)
	atrMA10 := rollingMean(atr14, 10)
	ma5 := sma(closes, 5)
	ma20 := sma(closes, 20)
	ma60 := sma(closes, 60)
	ma120 := sma(closes, 120)
	hhv20 := hhv(highs, 20)
	hhv20prev := shift(hhv20, 1)
	llv3 := llv(lows, 3)
	llv5 := llv(lows, 5)
	llv20 := llv(lows, 20)
	volMA3 := sma(vols, 3)
	volMA5 := sma(vols, 5)
	volMA10 := sma(vols, 10)
	amtMA3 := sma(amounts, 3)
	amtMA10 := sma(amounts, 10)

	// Amount ratio: turnover against its 5-day average. Dead turnover
	// stays NaN so every threshold check fails.
	amtMA5 := sma(amounts, 5)
	ar := nanSlice(n)
	for i := range ar {
		if amtMA5[i] > 0 {
			ar[i] = amounts[i] / amtMA5[i]
		}
	}

	closeStrong := func(i int) bool {
		return closes[i] >= highs[i]-0.3*(highs[i]-lows[i])
	}
	bullishCandle := func(i int) bool {
		rng := highs[i] - lows[i]
		return closes[i] > opens[i] && closeStrong(i) &&
			rng > 0 && math.Abs(closes[i]-opens[i])/rng >= 0.5
	}

	// Volume-confirmed breakout days, referenced by edge 2 type 3.
	breakout := make([]bool, n)
	for i := range breakout {
		breakout[i] = closes[i] > hhv20prev[i] && vols[i] >= volMA5[i]*1.5
	}

	type1 := func(i int) bool {
		if i < 5 {
			return false
		}
		boxWidth := (hhv20[i] - llv20[i]) / closes[i]
		slope := math.Abs(ma20[i]/ma20[i-5] - 1)
		closeToMA := math.Abs(closes[i]/ma20[i] - 1)
		return boxWidth <= 0.18 && atr14[i] < atrMA10[i] && slope <= 0.008 && closeToMA <= 0.03
	}
	type2 := func(i int) bool {
		pull := closes[i] / ma20[i]
		return ma20[i] > ma60[i] && ma60[i] > ma120[i] &&
			pull >= 0.97 && pull <= 1.03 &&
			(volMA3[i] < volMA10[i] || vols[i] < volMA5[i]) &&
			llv5[i] >= ma60[i]*0.98
	}
	type3 := func(i int) bool {
		if !(volMA3[i] < volMA10[i]) {
			return false
		}
		if !(closes[i] > opens[i] || closes[i] > ma5[i]) {
			return false
		}
		for k := 3; k <= 10; k++ {
			if i-k < 0 {
				break
			}
			if breakout[i-k] && llv3[i] >= hhv20prev[i-k]*0.99 {
				return true
			}
		}
		return false
	}

	structAt := func(i int) int {
		switch {
		case type1(i):
			return structCompress
		case type2(i):
			return structPullback
		case type3(i):
			return structRetest
		default:
			return structNone
		}
	}

	compressEntry := func(i int) bool {
		return closes[i] > hhv20prev[i] && ar[i] >= 1.3 && closeStrong(i)
	}
	pullbackEntry := func(i int) bool {
		if closes[i] > ma20[i] && ar[i] >= 1.2 {
			return true
		}
		stopDrop := i >= 1 && llv3[i] >= llv3[i-1]
		return stopDrop && bullishCandle(i) && ar[i] >= 1.3
	}
	retestEntry := func(i int) bool {
		if i < 1 || !(closes[i] > highs[i-1]) || !(ar[i] >= 1.3) {
			return false
		}
		if !(amtMA3[i] < amtMA10[i]) {
			return false
		}
		if !(closes[i] >= opens[i] || closes[i] >= ma5[i]) {
			return false
		}
		for k := 3; k <= 10; k++ {
			if i-k < 0 {
				break
			}
			if closes[i-k] > hhv20prev[i-k] && llv3[i] >= hhv20prev[i-k]*0.99 {
				return true
			}
		}
		return false
	}

	overheated := func(i int) bool {
		if i < 3 {
			return false
		}
		var cum float64
		for j := i - 3; j <= i; j++ {
			if !(closes[j] > opens[j] && closeStrong(j)) {
				return false
			}
			cum += s[j].PctChg
		}
		return cum >= 15
	}

	for i := n - 1; i >= n-3; i-- {
		if !(atr14[i]/closes[i] >= 0.025) {
			continue
		}
		st := structAt(i)
		entry := false
		switch st {
		case structCompress:
			entry = compressEntry(i)
		case structPullback:
			entry = pullbackEntry(i)
		case structRetest:
			entry = retestEntry(i)
		}
		if !entry || overheated(i) {
			continue
		}
		return signal(map[string]float64{
			"atr_volatility": atr14[i] / closes[i],
			"amount_ratio":   ar[i],
			"struct_type":    float64(st),
			"days_ago":       float64(n - 1 - i),
		})
	}
	return noSignal()
}
