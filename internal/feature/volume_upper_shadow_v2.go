package feature

import (
	"math"

	"alphaspike/internal/domain/models"
)

// VolumeUpperShadowV2 tightens VolumeUpperShadow around the setups
// that historically resolved upward: a cross-star body instead of a
// large one, two days of momentum behind it, and a price still in the
// bottom quarter of its 200-day range.
func VolumeUpperShadowV2(s models.BarSeries) Result {
	n := s.Len()
	if n < 220 {
		return noSignal()
	}

	closes := s.Closes()
	vols := s.Volumes()

	ma3 := sma(closes, 3)
	ma5 := sma(closes, 5)
	ma10 := sma(closes, 10)
	volMA10 := sma(vols, 10)
	shadow := upperShadowRatio(s)
	quantile := priceQuantile(closes, 200)

	last := s.Last()
	i := n - 1
	prevVolMA10 := volMA10[i-1]

	if !(shadow[i] > 2) {
		return noSignal()
	}
	if !(last.Volume >= prevVolMA10*1.2 && last.Volume <= prevVolMA10*2) {
		return noSignal()
	}
	if !(last.Close > ma5[i] && last.Close > ma10[i] && ma3[i] > ma5[i]) {
		return noSignal()
	}

	// Cross-star body: the real body takes under a fifth of the range.
	// A flat candle (high == low) counts as all body and fails.
	bodyRatio := 1.0
	if rng := last.High - last.Low; rng > 0 {
		bodyRatio = math.Abs(last.Close-last.Open) / rng
	}
	if !(bodyRatio < 0.20) {
		return noSignal()
	}

	gain2d := ((1 + s[i-1].PctChg/100) * (1 + last.PctChg/100) - 1) * 100
	if !(gain2d > 3) {
		return noSignal()
	}
	if !(quantile[i] < 0.25) {
		return noSignal()
	}

	return signal(map[string]float64{
		"upper_shadow":   shadow[i],
		"vol_ratio":      last.Volume / prevVolMA10,
		"body_ratio":     bodyRatio,
		"gain_2d":        gain2d,
		"price_quantile": quantile[i],
	})
}
