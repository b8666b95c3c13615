package feature

import "math"

// Rolling indicators over float64 columns. Warmup positions are NaN;
// comparisons against NaN are false, so conditions simply never fire
// before an indicator is ready.

// sma returns the simple moving average over period.
func sma(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rollingMean is a window-recomputed mean for inputs that may carry
// NaN warmups (a derived indicator fed back in). Any NaN inside the
// window propagates, unlike sma's running sum which would never
// recover once a NaN passed through it.
func rollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// hhv returns the rolling maximum over period.
func hhv(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		max := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] > max {
				max = values[j]
			}
		}
		out[i] = max
	}
	return out
}

// llv returns the rolling minimum over period.
func llv(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		min := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] < min {
				min = values[j]
			}
		}
		out[i] = min
	}
	return out
}

// rollingStd returns the rolling sample standard deviation over period.
func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		win := values[i-period+1 : i+1]
		var sum float64
		for _, v := range win {
			sum += v
		}
		mean := sum / float64(period)
		var sq float64
		for _, v := range win {
			d := v - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period-1))
	}
	return out
}

// shift returns values moved n positions later, NaN-filled at the front.
func shift(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		out[i] = values[i-n]
	}
	return out
}

// priceQuantile returns, for each position, the fraction of the
// trailing window strictly below the current value. Near 1.0 means the
// price is high relative to its own history, near 0.0 means low.
func priceQuantile(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		cur := values[i]
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

// rankPct returns the full-history percentile rank of each value,
// using average ranks for ties.
func rankPct(values []float64) []float64 {
	n := len(values)
	out := nanSlice(n)
	for i, v := range values {
		less, equal := 0, 0
		for _, w := range values {
			switch {
			case w < v:
				less++
			case w == v:
				equal++
			}
		}
		// average rank of the tie group, scaled to (0, 1]
		out[i] = (float64(less) + float64(equal+1)/2) / float64(n)
	}
	return out
}

// consecutiveAtLeast marks positions where the last minDays entries of
// daily are all true.
func consecutiveAtLeast(daily []bool, minDays int) []bool {
	out := make([]bool, len(daily))
	run := 0
	for i, v := range daily {
		if v {
			run++
		} else {
			run = 0
		}
		out[i] = run >= minDays
	}
	return out
}

// atr returns Wilder's average true range over period.
func atr(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := nanSlice(n)
	if n < period+1 {
		return out
	}
	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// adx returns Wilder's average directional index over period.
func adx(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := nanSlice(n)
	if n < 2*period+1 {
		return out
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	// Wilder smoothing of TR and the directional movements.
	var trS, plusS, minusS float64
	for i := 1; i <= period; i++ {
		trS += tr[i]
		plusS += plusDM[i]
		minusS += minusDM[i]
	}
	dx := nanSlice(n)
	di := func(trS, plusS, minusS float64) float64 {
		if trS == 0 {
			return 0
		}
		plusDI := 100 * plusS / trS
		minusDI := 100 * minusS / trS
		if plusDI+minusDI == 0 {
			return 0
		}
		return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	dx[period] = di(trS, plusS, minusS)
	for i := period + 1; i < n; i++ {
		trS = trS - trS/float64(period) + tr[i]
		plusS = plusS - plusS/float64(period) + plusDM[i]
		minusS = minusS - minusS/float64(period) + minusDM[i]
		dx[i] = di(trS, plusS, minusS)
	}

	var dxSum float64
	for i := period; i < 2*period; i++ {
		dxSum += dx[i]
	}
	out[2*period-1] = dxSum / float64(period)
	for i := 2 * period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

// bollingerWidth returns (upper-lower)/middle*100 for 2-sigma bands.
func bollingerWidth(close []float64, period int) []float64 {
	mid := sma(close, period)
	std := rollingStd(close, period)
	out := nanSlice(len(close))
	for i := range close {
		if math.IsNaN(mid[i]) || math.IsNaN(std[i]) || mid[i] == 0 {
			continue
		}
		out[i] = 4 * std[i] / mid[i] * 100
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	out := math.Inf(-1)
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}

func minOf(values []float64) float64 {
	out := math.Inf(1)
	for _, v := range values {
		if v < out {
			out = v
		}
	}
	return out
}
