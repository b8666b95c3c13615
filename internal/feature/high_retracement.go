package feature

import "alphaspike/internal/domain/models"

// HighRetracement detects repeated upper-shadow candles on moderate
// volume while the price is below the 55% quantile of a ~6-year
// window. At least 2 consecutive qualifying days are required, ending
// within the last 3 trading days.
func HighRetracement(s models.BarSeries) Result {
	const minConsecutive = 2

	n := s.Len()
	if n < 1500 {
		return noSignal()
	}

	closes := s.Closes()
	vols := s.Volumes()

	volMA20 := sma(vols, 20)
	shadow := upperShadowRatio(s)
	quantile := priceQuantile(closes, 500)

	daily := make([]bool, n)
	for i := range s {
		daily[i] = shadow[i] > 2 &&
			s[i].Volume >= volMA20[i] && s[i].Volume <= volMA20[i]*1.5 &&
			quantile[i] < 0.55
	}
	consecutive := consecutiveAtLeast(daily, minConsecutive)

	for i := n - 3; i < n; i++ {
		if consecutive[i] {
			return signal(map[string]float64{
				"upper_shadow":   shadow[i],
				"price_quantile": quantile[i],
			})
		}
	}
	return noSignal()
}
