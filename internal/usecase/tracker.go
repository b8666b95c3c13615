package usecase

import (
	"context"
	"fmt"
	"time"

	"alphaspike/internal/domain/models"
	"alphaspike/internal/domain/repository"
	apprepo "alphaspike/internal/repository"
	applogger "alphaspike/pkg/logger"
)

// trackHorizons are the fixed short holding periods the tracker
// evaluates every persisted signal against.
var trackHorizons = []int{1, 2, 3}

// Classification buckets a signal by the signs of its 1/2/3-day
// returns. Signals missing any of the three returns (too recent) are
// excluded from classification entirely.
type Classification string

const (
	AllPositive Classification = "all_positive"
	Mixed       Classification = "mixed"
	AllNegative Classification = "all_negative"
)

// SignalDetail is one classified signal with its three returns.
type SignalDetail struct {
	Symbol     string  `json:"symbol"`
	SignalDate string  `json:"signal_date"`
	Return1D   float64 `json:"return_1d"`
	Return2D   float64 `json:"return_2d"`
	Return3D   float64 `json:"return_3d"`
}

// CategoryStats aggregates one classification bucket.
type CategoryStats struct {
	Count   int            `json:"count"`
	Ratio   float64        `json:"ratio"` // percent of classified signals
	Avg1D   float64        `json:"avg_1d"`
	Avg2D   float64        `json:"avg_2d"`
	Avg3D   float64        `json:"avg_3d"`
	Signals []SignalDetail `json:"signals"`
}

// FeaturePerformance is the tracker's verdict for one feature.
type FeaturePerformance struct {
	Feature      string                `json:"feature"`
	TotalSignals int                   `json:"total_signals"`
	ValidSignals int                   `json:"valid_signals"`
	StartDate    string                `json:"start_date"`
	EndDate      string                `json:"end_date"`
	Horizons     []models.HorizonStats `json:"horizons"`
	AllPositive  CategoryStats         `json:"all_positive"`
	Mixed        CategoryStats         `json:"mixed"`
	AllNegative  CategoryStats         `json:"all_negative"`
}

// Tracker evaluates persisted scan signals against what actually
// happened next: 1, 2 and 3 day forward returns, aggregate stats per
// horizon and a sign classification per signal.
type Tracker struct {
	store   *apprepo.Store
	loader  *BatchLoader
	metrics repository.Metrics
	l       *applogger.Logger
}

// NewTracker wires a tracking run.
func NewTracker(store *apprepo.Store, loader *BatchLoader, metrics repository.Metrics, l *applogger.Logger) *Tracker {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Tracker{store: store, loader: loader, metrics: metrics, l: l}
}

// Track reports performance for featureName ("" for every feature
// with stored signals), optionally restricted to signals from one
// scan date.
func (t *Tracker) Track(ctx context.Context, featureName, scanDate string) ([]FeaturePerformance, error) {
	began := time.Now()

	features := []string{featureName}
	if featureName == "" {
		var err error
		features, err = t.store.DistinctFeatures(ctx)
		if err != nil {
			return nil, fmt.Errorf("list features: %w", err)
		}
	}

	var out []FeaturePerformance
	for _, f := range features {
		perf, err := t.trackFeature(ctx, f, scanDate)
		if err != nil {
			return nil, err
		}
		if perf.TotalSignals > 0 {
			out = append(out, perf)
		}
	}

	t.metrics.ObserveDuration("track", time.Since(began).Seconds())
	return out, nil
}

func (t *Tracker) trackFeature(ctx context.Context, featureName, scanDate string) (FeaturePerformance, error) {
	from, to := "", ""
	if scanDate != "" {
		from, to = scanDate, scanDate
	}
	signals, err := t.store.ListSignals(ctx, featureName, from, to)
	if err != nil {
		return FeaturePerformance{}, fmt.Errorf("list signals %s: %w", featureName, err)
	}
	perf := FeaturePerformance{Feature: featureName, TotalSignals: len(signals)}
	if len(signals) == 0 {
		return perf, nil
	}

	seen := make(map[string]struct{})
	var symbols []string
	for _, s := range signals {
		if _, ok := seen[s.Symbol]; ok {
			continue
		}
		seen[s.Symbol] = struct{}{}
		symbols = append(symbols, s.Symbol)
	}
	series, _, err := t.loader.Load(ctx, symbols, "", "")
	if err != nil {
		return FeaturePerformance{}, err
	}

	perf.StartDate, perf.EndDate = signals[0].Date, signals[0].Date
	byHorizon := map[int][]ForwardReturn{1: nil, 2: nil, 3: nil}
	var details []struct {
		detail SignalDetail
		class  Classification
	}

	for _, sig := range signals {
		if sig.Date < perf.StartDate {
			perf.StartDate = sig.Date
		}
		if sig.Date > perf.EndDate {
			perf.EndDate = sig.Date
		}

		returns, ok := periodReturns(series[sig.Symbol], sig.Date, trackHorizons)
		if !ok {
			continue
		}
		perf.ValidSignals++
		for _, h := range trackHorizons {
			if fr, ok := returns[h]; ok {
				byHorizon[h] = append(byHorizon[h], fr)
			}
		}

		r1, ok1 := returns[1]
		r2, ok2 := returns[2]
		r3, ok3 := returns[3]
		if !(ok1 && ok2 && ok3) {
			continue
		}
		details = append(details, struct {
			detail SignalDetail
			class  Classification
		}{
			detail: SignalDetail{
				Symbol:     sig.Symbol,
				SignalDate: sig.Date,
				Return1D:   r1.Return,
				Return2D:   r2.Return,
				Return3D:   r3.Return,
			},
			class: classify(r1.Return, r2.Return, r3.Return),
		})
	}

	for _, h := range trackHorizons {
		perf.Horizons = append(perf.Horizons, horizonStats(h, byHorizon[h]))
	}

	classified := len(details)
	buckets := map[Classification]*CategoryStats{
		AllPositive: &perf.AllPositive,
		Mixed:       &perf.Mixed,
		AllNegative: &perf.AllNegative,
	}
	for _, d := range details {
		b := buckets[d.class]
		b.Count++
		b.Avg1D += d.detail.Return1D
		b.Avg2D += d.detail.Return2D
		b.Avg3D += d.detail.Return3D
		b.Signals = append(b.Signals, d.detail)
	}
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		n := float64(b.Count)
		b.Avg1D /= n
		b.Avg2D /= n
		b.Avg3D /= n
		b.Ratio = n / float64(classified) * 100
	}
	return perf, nil
}

// classify buckets a signal by return signs. Zero counts as
// non-positive, so an exactly flat signal lands in Mixed unless all
// three are negative.
func classify(r1, r2, r3 float64) Classification {
	switch {
	case r1 > 0 && r2 > 0 && r3 > 0:
		return AllPositive
	case r1 < 0 && r2 < 0 && r3 < 0:
		return AllNegative
	default:
		return Mixed
	}
}

func horizonStats(horizon int, returns []ForwardReturn) models.HorizonStats {
	stats := models.HorizonStats{Horizon: horizon, Count: len(returns)}
	if len(returns) == 0 {
		return stats
	}
	best, worst := returns[0], returns[0]
	var sum float64
	wins := 0
	for _, r := range returns {
		sum += r.Return
		if r.Return > 0 {
			wins++
		}
		if r.Return > best.Return {
			best = r
		}
		if r.Return < worst.Return {
			worst = r
		}
	}
	n := float64(len(returns))
	stats.WinRate = float64(wins) / n * 100
	stats.AvgReturn = sum / n
	stats.BestReturn = best.Return
	stats.BestSymbol = best.Symbol
	stats.BestDate = best.SignalDate
	stats.WorstReturn = worst.Return
	stats.WorstSymbol = worst.Symbol
	stats.WorstDate = worst.SignalDate
	return stats
}
