package feature

import (
	"math"
	"testing"
	"time"

	"alphaspike/internal/domain/models"
)

// seriesFromCloses builds a bar series where each day opens at the
// prior close, so candles carry no shadows unless a test adds them.
func seriesFromCloses(symbol string, closes, vols []float64) models.BarSeries {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(models.BarSeries, len(closes))
	prev := closes[0]
	for i, c := range closes {
		b := models.Bar{
			Symbol:   symbol,
			Date:     base.AddDate(0, 0, i).Format("20060102"),
			Open:     prev,
			High:     math.Max(prev, c),
			Low:      math.Min(prev, c),
			Close:    c,
			PreClose: prev,
			Volume:   vols[i],
		}
		if prev != 0 {
			b.PctChg = (c - prev) / prev * 100
		}
		out[i] = b
		prev = c
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestWeakToStrongFires(t *testing.T) {
	closes := []float64{10, 10, 10, 11, 12.1}
	vols := repeat(100, 5)
	s := seriesFromCloses("600000.SH", closes, vols)
	// Two limit-ups then a gap-down that never recovers.
	s[3].PctChg = 10.0
	s[4].PctChg = 10.0
	s = append(s, models.Bar{
		Symbol: "600000.SH", Date: "20180110",
		Open: 11.5, High: 11.8, Low: 11.2, Close: 11.6,
		PreClose: 12.1, PctChg: -4.1, Volume: 100,
	})

	r := WeakToStrong(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if r.Metrics["gap_pct"] >= 0 {
		t.Fatalf("gap_pct = %v, want negative", r.Metrics["gap_pct"])
	}
}

func TestWeakToStrongRejectsRecoveredHigh(t *testing.T) {
	closes := []float64{10, 10, 10, 11, 12.1}
	s := seriesFromCloses("600000.SH", closes, repeat(100, 5))
	s[3].PctChg = 10.0
	s[4].PctChg = 10.0
	// The high touches the previous close: weakness did not hold.
	s = append(s, models.Bar{
		Symbol: "600000.SH", Date: "20180110",
		Open: 11.5, High: 12.1, Low: 11.2, Close: 11.6,
		PreClose: 12.1, Volume: 100,
	})
	if WeakToStrong(s).Signal {
		t.Fatalf("unexpected signal")
	}
}

func TestWeakToStrongChiNextThreshold(t *testing.T) {
	closes := []float64{10, 10, 10, 11, 12.1}
	build := func(pct float64) models.BarSeries {
		s := seriesFromCloses("300750.SZ", closes, repeat(100, 5))
		s[3].PctChg = pct
		s[4].PctChg = pct
		return append(s, models.Bar{
			Symbol: "300750.SZ", Date: "20180110",
			Open: 11.5, High: 11.8, Low: 11.2, Close: 11.6,
			PreClose: 12.1, Volume: 100,
		})
	}

	// 10% is a limit-up on the main board but not on ChiNext.
	if WeakToStrong(build(10.0)).Signal {
		t.Fatalf("10%% must not count as a ChiNext limit-up")
	}
	if !WeakToStrong(build(19.9)).Signal {
		t.Fatalf("19.9%% must count as a ChiNext limit-up")
	}
}

func TestVolumeUpperShadowFires(t *testing.T) {
	n := 220
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 140:
			closes[i] = 20 // old high regime keeps the quantile low
		case i < 210:
			closes[i] = 9.0
		default:
			closes[i] = 9.0 + 0.05*float64(i-209) // gentle recovery
		}
	}
	vols := repeat(100, n)
	vols[n-1] = 150
	s := seriesFromCloses("600000.SH", closes, vols)
	s[n-1].High = 9.8 // upper shadow on the surge day

	r := VolumeUpperShadow(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if r.Metrics["upper_shadow"] <= 2 {
		t.Fatalf("upper_shadow = %v", r.Metrics["upper_shadow"])
	}
	if q := r.Metrics["price_quantile"]; q >= 0.45 {
		t.Fatalf("price_quantile = %v", q)
	}
}

func TestVolumeUpperShadowRejectsExcessVolume(t *testing.T) {
	n := 220
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 140:
			closes[i] = 20
		case i < 210:
			closes[i] = 9.0
		default:
			closes[i] = 9.0 + 0.05*float64(i-209)
		}
	}
	vols := repeat(100, n)
	vols[n-1] = 300 // blowoff volume, over the 2x cap
	s := seriesFromCloses("600000.SH", closes, vols)
	s[n-1].High = 9.8

	if VolumeUpperShadow(s).Signal {
		t.Fatalf("unexpected signal on 3x volume")
	}
}

func TestVolumeStagnationFires(t *testing.T) {
	n := 550
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 330:
			closes[i] = 20
		case i < 537:
			closes[i] = 9.0
		default:
			closes[i] = 9.0 + 0.02*float64(i-536)
		}
	}
	vols := repeat(100, n)
	// Three consecutive heavy days ending on the last bar.
	vols[n-3], vols[n-2], vols[n-1] = 400, 400, 400
	s := seriesFromCloses("600000.SH", closes, vols)

	r := VolumeStagnation(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if q := r.Metrics["price_quantile"]; q < 0.05 || q > 0.45 {
		t.Fatalf("price_quantile = %v", q)
	}
}

func TestVolumeStagnationNeedsThreeDays(t *testing.T) {
	n := 550
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 330:
			closes[i] = 20
		case i < 537:
			closes[i] = 9.0
		default:
			closes[i] = 9.0 + 0.02*float64(i-536)
		}
	}
	vols := repeat(100, n)
	vols[n-2], vols[n-1] = 400, 400 // only two heavy days
	s := seriesFromCloses("600000.SH", closes, vols)

	if VolumeStagnation(s).Signal {
		t.Fatalf("two heavy days must not fire")
	}
}

func TestHighRetracementFires(t *testing.T) {
	n := 1500
	closes := make([]float64, n)
	for i := range closes {
		if i < 800 {
			closes[i] = 20
		} else {
			closes[i] = 9.0
		}
	}
	vols := repeat(100, n)
	vols[n-2], vols[n-1] = 120, 120
	s := seriesFromCloses("600000.SH", closes, vols)
	s[n-2].High = 9.3 // two consecutive retracement candles
	s[n-1].High = 9.3

	r := HighRetracement(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if r.Metrics["upper_shadow"] <= 2 {
		t.Fatalf("upper_shadow = %v", r.Metrics["upper_shadow"])
	}
}

func TestHighRetracementSingleDayDoesNotFire(t *testing.T) {
	n := 1500
	closes := make([]float64, n)
	for i := range closes {
		if i < 800 {
			closes[i] = 20
		} else {
			closes[i] = 9.0
		}
	}
	vols := repeat(100, n)
	vols[n-1] = 120
	s := seriesFromCloses("600000.SH", closes, vols)
	s[n-1].High = 9.3

	if HighRetracement(s).Signal {
		t.Fatalf("one retracement candle must not fire")
	}
}

func TestBBCFires(t *testing.T) {
	n := 1000
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 980:
			closes[i] = 10
		case i < 998:
			closes[i] = 10 + 0.02*float64(i-979) // quiet uptrend into the pattern
		case i == 998:
			closes[i] = 11.4 // limit-up closing at its high
		default:
			closes[i] = 11.0
		}
	}
	vols := make([]float64, n)
	for i := range vols {
		if i < 500 {
			vols[i] = 200 // heavy past keeps the recent volume rank low
		} else {
			vols[i] = 100
		}
	}
	s := seriesFromCloses("600000.SH", closes, vols)
	s[900].High = 15 // 144-day ceiling over the reversal high
	// Gap-up reversal candle on the final day.
	s[n-1].Open = 11.8
	s[n-1].High = 11.9
	s[n-1].Low = 10.9

	r := BBC(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if r.Metrics["body_drop"] <= 0 {
		t.Fatalf("body_drop = %v", r.Metrics["body_drop"])
	}
}

func TestBBCNeedsLimitUpSetup(t *testing.T) {
	n := 1000
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 980:
			closes[i] = 10
		case i < 998:
			closes[i] = 10 + 0.02*float64(i-979)
		case i == 998:
			closes[i] = 10.8 // strong day, but no limit-up
		default:
			closes[i] = 10.4
		}
	}
	vols := make([]float64, n)
	for i := range vols {
		if i < 500 {
			vols[i] = 200
		} else {
			vols[i] = 100
		}
	}
	s := seriesFromCloses("600000.SH", closes, vols)
	s[900].High = 15
	s[n-1].Open = 11.2
	s[n-1].High = 11.3
	s[n-1].Low = 10.3

	if BBC(s).Signal {
		t.Fatalf("unexpected signal without a limit-up setup")
	}
}

func TestConsolidationBreakoutFires(t *testing.T) {
	n := 100
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 10 + 0.02*float64(i%2) // tight oscillation
	}
	closes[n-1] = 10.5
	vols := repeat(100, n)
	vols[n-1] = 300
	s := seriesFromCloses("600000.SH", closes, vols)

	r := ConsolidationBreakout(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if r.Metrics["vol_ratio"] <= 1.5 {
		t.Fatalf("vol_ratio = %v", r.Metrics["vol_ratio"])
	}
}

func TestConsolidationBreakoutNeedsVolume(t *testing.T) {
	n := 100
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 10 + 0.02*float64(i%2)
	}
	closes[n-1] = 10.5
	s := seriesFromCloses("600000.SH", closes, repeat(100, n))

	if ConsolidationBreakout(s).Signal {
		t.Fatalf("breakout without volume must not fire")
	}
}

func TestBullishCannonFires(t *testing.T) {
	n := 30
	s := seriesFromCloses("600000.SH", repeat(10, n), repeat(100, n))
	// First cannon.
	s[27] = models.Bar{
		Symbol: "600000.SH", Date: s[27].Date,
		Open: 10.1, High: 11.2, Low: 10.0, Close: 11.0,
		PreClose: 10, PctChg: 8.0, Volume: 500,
	}
	// One quiet body day holding above the cannon's open.
	s[28] = models.Bar{
		Symbol: "600000.SH", Date: s[28].Date,
		Open: 11.0, High: 11.1, Low: 10.9, Close: 11.0,
		PreClose: 11.0, Volume: 300,
	}
	// Second cannon closing near its high above the body.
	s[29] = models.Bar{
		Symbol: "600000.SH", Date: s[29].Date,
		Open: 11.1, High: 11.5, Low: 11.0, Close: 11.4,
		PreClose: 11.0, PctChg: 3.6, Volume: 350,
	}

	r := BullishCannon(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if r.Metrics["body_days"] != 1 {
		t.Fatalf("body_days = %v", r.Metrics["body_days"])
	}
}

func TestBullishCannonRejectsHeavyBodyVolume(t *testing.T) {
	n := 30
	s := seriesFromCloses("600000.SH", repeat(10, n), repeat(100, n))
	s[27] = models.Bar{
		Symbol: "600000.SH", Date: s[27].Date,
		Open: 10.1, High: 11.2, Low: 10.0, Close: 11.0,
		PreClose: 10, PctChg: 8.0, Volume: 500,
	}
	// Body volume does not shrink: distribution, not consolidation.
	s[28] = models.Bar{
		Symbol: "600000.SH", Date: s[28].Date,
		Open: 11.0, High: 11.1, Low: 10.9, Close: 11.0,
		PreClose: 11.0, Volume: 450,
	}
	s[29] = models.Bar{
		Symbol: "600000.SH", Date: s[29].Date,
		Open: 11.1, High: 11.5, Low: 11.0, Close: 11.4,
		PreClose: 11.0, PctChg: 3.6, Volume: 460,
	}

	if BullishCannon(s).Signal {
		t.Fatalf("unexpected signal with heavy body volume")
	}
}

// lowBaseSeries builds 220 bars: a high regime, a long low base, then
// a two-day recovery (9.0 -> 9.2 -> 9.3) with a volume surge and an
// upper shadow on the last day.
func lowBaseSeries(symbol string) models.BarSeries {
	n := 220
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 175:
			closes[i] = 20
		case i < 218:
			closes[i] = 9.0
		case i == 218:
			closes[i] = 9.2
		default:
			closes[i] = 9.3
		}
	}
	vols := repeat(100, n)
	vols[n-1] = 150
	s := seriesFromCloses(symbol, closes, vols)
	s[n-1].High = 9.6
	return s
}

func TestVolumeUpperShadowV2Fires(t *testing.T) {
	s := lowBaseSeries("600000.SH")
	s[len(s)-1].Low = 9.05 // long lower shadow shrinks the body share

	r := VolumeUpperShadowV2(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if br := r.Metrics["body_ratio"]; br >= 0.20 {
		t.Fatalf("body_ratio = %v", br)
	}
	if g := r.Metrics["gain_2d"]; g <= 3 {
		t.Fatalf("gain_2d = %v", g)
	}
	if q := r.Metrics["price_quantile"]; q >= 0.25 {
		t.Fatalf("price_quantile = %v", q)
	}
}

func TestVolumeUpperShadowV2RejectsFatBody(t *testing.T) {
	// Without the lower shadow the body takes a quarter of the range.
	s := lowBaseSeries("600000.SH")
	if VolumeUpperShadowV2(s).Signal {
		t.Fatalf("unexpected signal on a quarter-range body")
	}
}

func TestVolumeUpperShadowOpzFires(t *testing.T) {
	s := lowBaseSeries("600000.SH")

	r := VolumeUpperShadowOpz(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if vr := r.Metrics["vol_ratio"]; vr > 1.7 {
		t.Fatalf("vol_ratio = %v", vr)
	}
	if p := r.Metrics["pct_chg"]; p >= 1.5 {
		t.Fatalf("pct_chg = %v", p)
	}
}

func TestVolumeUpperShadowOpzRejectsSurgeOverCap(t *testing.T) {
	s := lowBaseSeries("600000.SH")
	s[len(s)-1].Volume = 180 // 1.8x passes v2 but not the 1.7x cap
	if VolumeUpperShadowOpz(s).Signal {
		t.Fatalf("unexpected signal on 1.8x volume")
	}
}

func TestVolumeUpperShadowOpzRejectsRecentLimitUp(t *testing.T) {
	s := lowBaseSeries("600000.SH")
	s[len(s)-3].PctChg = 10.0
	if VolumeUpperShadowOpz(s).Signal {
		t.Fatalf("unexpected signal after a limit-up")
	}
}

// trendingSeries builds a steady uptrend with a fixed 0.4 daily range,
// contracting volume into the last three days, and flat turnover.
func trendingSeries(symbol string) models.BarSeries {
	n := 130
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 10 + 0.02*float64(i)
	}
	vols := repeat(100, n)
	vols[n-3], vols[n-2], vols[n-1] = 80, 80, 80
	s := seriesFromCloses(symbol, closes, vols)
	for i := range s {
		s[i].High = closes[i] + 0.2
		s[i].Low = closes[i] - 0.2
		s[i].Amount = 100
	}
	return s
}

func TestFourEdgePullbackFires(t *testing.T) {
	s := trendingSeries("600000.SH")
	s[len(s)-1].Amount = 130 // turnover surge on the entry day

	r := FourEdge(s)
	if !r.Signal {
		t.Fatalf("expected signal")
	}
	if st := r.Metrics["struct_type"]; st != structPullback {
		t.Fatalf("struct_type = %v, want %v", st, structPullback)
	}
	if d := r.Metrics["days_ago"]; d != 0 {
		t.Fatalf("days_ago = %v", d)
	}
	if v := r.Metrics["atr_volatility"]; v < 0.025 {
		t.Fatalf("atr_volatility = %v", v)
	}
	if ar := r.Metrics["amount_ratio"]; ar < 1.2 {
		t.Fatalf("amount_ratio = %v", ar)
	}
}

func TestFourEdgeRejectsWithoutTurnover(t *testing.T) {
	// Same pullback structure, but no surge confirms the entry.
	s := trendingSeries("600000.SH")
	if FourEdge(s).Signal {
		t.Fatalf("unexpected signal on flat turnover")
	}
}

func TestFourEdgeRejectsQuietTape(t *testing.T) {
	s := trendingSeries("600000.SH")
	for i := range s {
		s[i].High = s[i].Close + 0.05
		s[i].Low = s[i].Close - 0.05
	}
	s[len(s)-1].Amount = 130
	if FourEdge(s).Signal {
		t.Fatalf("unexpected signal below the volatility floor")
	}
}

func TestDetectorsSkipShortHistory(t *testing.T) {
	short := seriesFromCloses("600000.SH", repeat(10, 4), repeat(100, 4))
	registry := NewRegistry()
	for _, cfg := range registry.All() {
		if cfg.Name == "weak_to_strong" {
			continue // its floor is below 4 bars
		}
		if cfg.Detect(short).Signal {
			t.Fatalf("%s fired on %d bars", cfg.Name, short.Len())
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()

	names := registry.Names()
	if len(names) != 10 {
		t.Fatalf("got %d features", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}

	cfg, ok := registry.Get("bullish_cannon")
	if !ok || cfg.MinDays != 30 {
		t.Fatalf("lookup failed: %+v ok=%v", cfg, ok)
	}
	if _, ok := registry.Get("nope"); ok {
		t.Fatalf("unexpected hit")
	}
}
