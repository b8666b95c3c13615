package feature

import "alphaspike/internal/domain/models"

// VolumeStagnation detects runs of heavy-volume days with flat price
// action in the lower part of the 500-day range, a pattern consistent
// with quiet accumulation. At least 3 consecutive qualifying days are
// required, and the run must end within the last 3 trading days.
func VolumeStagnation(s models.BarSeries) Result {
	const minConsecutive = 3

	n := s.Len()
	if n < 550 {
		return noSignal()
	}

	closes := s.Closes()
	vols := s.Volumes()

	volMA10 := sma(vols, 10)
	ma3 := sma(closes, 3)
	ma5 := sma(closes, 5)
	ma10 := sma(closes, 10)
	quantile := priceQuantile(closes, 500)

	daily := make([]bool, n)
	for i := range s {
		daily[i] = s[i].Volume > volMA10[i]*1.5 &&
			s[i].PctChg > -3 && s[i].PctChg < 3 &&
			s[i].Close > ma10[i] &&
			ma3[i] > ma5[i]
	}
	consecutive := consecutiveAtLeast(daily, minConsecutive)

	for i := n - 3; i < n; i++ {
		if !consecutive[i] {
			continue
		}
		if !(quantile[i] >= 0.05 && quantile[i] <= 0.45) {
			continue
		}
		return signal(map[string]float64{
			"price_quantile": quantile[i],
			"vol_ratio":      s[i].Volume / volMA10[i],
		})
	}
	return noSignal()
}
