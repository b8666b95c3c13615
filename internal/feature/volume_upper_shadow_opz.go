package feature

import "alphaspike/internal/domain/models"

// VolumeUpperShadowOpz is VolumeUpperShadow with thresholds narrowed
// toward the signals that resolved all-positive: a milder volume surge
// cap, a lower price position, and a flat last day.
func VolumeUpperShadowOpz(s models.BarSeries) Result {
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
	// Surge cap tightened from 2x to 1.7x.
	if !(last.Volume >= prevVolMA10*1.2 && last.Volume <= prevVolMA10*1.7) {
		return noSignal()
	}
	// Position cap tightened from 0.45 to 0.35.
	if !(quantile[i] < 0.35) {
		return noSignal()
	}
	if !(last.Close > ma5[i] && last.Close > ma10[i] && ma3[i] > ma5[i]) {
		return noSignal()
	}

	// No limit-up in the last 3 days, cumulative gain under 15%.
	cumulative := 1.0
	for j := n - 3; j < n; j++ {
		if s[j].PctChg >= 9.8 {
			return noSignal()
		}
		cumulative *= 1 + s[j].PctChg/100
	}
	if (cumulative-1)*100 >= 15 {
		return noSignal()
	}

	// The surge day itself barely moves.
	if !(last.PctChg < 1.5) {
		return noSignal()
	}

	return signal(map[string]float64{
		"upper_shadow":   shadow[i],
		"vol_ratio":      last.Volume / prevVolMA10,
		"price_quantile": quantile[i],
		"pct_chg":        last.PctChg,
	})
}
