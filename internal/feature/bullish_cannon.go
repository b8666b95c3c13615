package feature

import (
	"math"

	"alphaspike/internal/domain/models"
)

// Thresholds for the bullish cannon pattern.
const (
	cannonFirstReturn     = 0.07
	cannonFirstVolRatio   = 1.8
	cannonFirstBodyRatio  = 0.40
	cannonFirstUpperRatio = 0.50
	cannonBodyVolShrink   = 0.8
	cannonBodyAmplitude   = 0.08
	cannonSecondVolRatio  = 1.0
	cannonSecondUpper     = 0.25
)

// BullishCannon detects a strong breakout candle, 1-3 quiet
// consolidation days holding above its open, then a second candle
// closing above the consolidation high on the last trading day.
func BullishCannon(s models.BarSeries) Result {
	n := s.Len()
	if n < 30 {
		return noSignal()
	}

	highs := s.Highs()
	vols := s.Volumes()
	volMA5 := sma(vols, 5)
	hhv20 := shift(hhv(highs, 20), 1)

	second := n - 1
	for k := 1; k <= 3; k++ {
		first := second - k - 1
		if first < 20 {
			continue
		}
		day0 := s[first]

		// first cannon: strong body breaking the prior 20-day high
		rng0 := day0.High - day0.Low
		if rng0 == 0 {
			continue
		}
		if day0.PctChg/100 < cannonFirstReturn {
			continue
		}
		if math.IsNaN(volMA5[first]) || day0.Volume < volMA5[first]*cannonFirstVolRatio {
			continue
		}
		if math.Abs(day0.Close-day0.Open)/rng0 < cannonFirstBodyRatio {
			continue
		}
		if upperWick(day0)/rng0 > cannonFirstUpperRatio {
			continue
		}
		if math.IsNaN(hhv20[first]) || day0.Close <= hhv20[first] {
			continue
		}

		// cannon body: shrinking volume, tight range, holds above open
		body := s[first+1 : second]
		bodyVolMean := mean(body.Volumes())
		if bodyVolMean > day0.Volume*cannonBodyVolShrink {
			continue
		}
		ok := true
		for _, b := range body {
			if b.PreClose == 0 || (b.High-b.Low)/b.PreClose > cannonBodyAmplitude {
				ok = false
				break
			}
			if b.Low < day0.Open {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		// second cannon: breaks the body high, closes near its own high
		sec := s[second]
		rng := sec.High - sec.Low
		if rng == 0 {
			continue
		}
		if sec.Close <= maxOf(body.Highs()) {
			continue
		}
		if sec.Volume < bodyVolMean*cannonSecondVolRatio {
			continue
		}
		if (sec.High-sec.Close)/rng > cannonSecondUpper {
			continue
		}

		return signal(map[string]float64{
			"body_days":    float64(k),
			"first_return": day0.PctChg,
			"vol_ratio":    sec.Volume / bodyVolMean,
		})
	}
	return noSignal()
}

func upperWick(b models.Bar) float64 {
	top := b.Open
	if b.Close > top {
		top = b.Close
	}
	return b.High - top
}
