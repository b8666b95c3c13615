package usecase

import (
	"context"
	"math"
	"testing"

	"alphaspike/internal/domain/models"
)

func seedTrackedSignals(t *testing.T) *Tracker {
	t.Helper()
	store := newTestStore(t)
	ctx := context.Background()

	dates := []string{"20240102", "20240103", "20240104", "20240105", "20240108"}
	flat := []float64{10, 10, 10, 10, 10}
	seed := func(sym string, closes []float64) {
		t.Helper()
		if _, err := store.AppendBars(ctx, sym, priceBars(sym, dates, flat, closes)); err != nil {
			t.Fatalf("seed %s: %v", sym, err)
		}
	}
	// Entry for a 20240102 signal is the 20240103 open at 10.
	seed("600001.SH", []float64{10, 11, 12, 13, 13}) // rises every horizon
	seed("600002.SH", []float64{10, 9, 8, 7, 7})     // falls every horizon
	seed("600003.SH", []float64{10, 11, 9, 12, 12})  // sign flips
	seed("600004.SH", []float64{10, 10, 10, 10, 11}) // signal too recent for 2d/3d
	seed("600005.SH", []float64{10, 10, 10, 10, 10}) // signal on the last bar

	mustSave := func(date string, symbols ...string) {
		t.Helper()
		sigs := make([]models.FeatureSignal, 0, len(symbols))
		for _, sym := range symbols {
			sigs = append(sigs, models.FeatureSignal{Feature: "test_feature", Symbol: sym, Date: date})
		}
		if err := store.SaveSignals(ctx, "test_feature", date, sigs); err != nil {
			t.Fatalf("save signals: %v", err)
		}
	}
	mustSave("20240102", "600001.SH", "600002.SH", "600003.SH")
	mustSave("20240105", "600004.SH")
	mustSave("20240108", "600005.SH")

	return NewTracker(store, NewBatchLoader(store, nil, nil), nil, nil)
}

func TestTrackerClassifiesSignals(t *testing.T) {
	tracker := seedTrackedSignals(t)

	reports, err := tracker.Track(context.Background(), "test_feature", "")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports", len(reports))
	}
	perf := reports[0]

	if perf.TotalSignals != 5 {
		t.Fatalf("total = %d, want 5", perf.TotalSignals)
	}
	// 600005.SH has no entry bar; the other four are valid.
	if perf.ValidSignals != 4 {
		t.Fatalf("valid = %d, want 4", perf.ValidSignals)
	}
	if perf.StartDate != "20240102" || perf.EndDate != "20240108" {
		t.Fatalf("range %s..%s", perf.StartDate, perf.EndDate)
	}

	// 600004.SH is missing its 2d and 3d returns and must be excluded
	// from classification, leaving one signal per bucket.
	if perf.AllPositive.Count != 1 || perf.AllNegative.Count != 1 || perf.Mixed.Count != 1 {
		t.Fatalf("buckets %d/%d/%d, want 1/1/1",
			perf.AllPositive.Count, perf.Mixed.Count, perf.AllNegative.Count)
	}
	if perf.AllPositive.Signals[0].Symbol != "600001.SH" {
		t.Fatalf("all_positive holds %s", perf.AllPositive.Signals[0].Symbol)
	}
	if perf.AllNegative.Signals[0].Symbol != "600002.SH" {
		t.Fatalf("all_negative holds %s", perf.AllNegative.Signals[0].Symbol)
	}
	if got, want := perf.AllPositive.Avg1D, 10.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("all_positive avg 1d = %v, want %v", got, want)
	}
	if got, want := perf.AllPositive.Ratio, 100.0/3; math.Abs(got-want) > 1e-9 {
		t.Fatalf("all_positive ratio = %v", got)
	}
}

func TestTrackerHorizonStats(t *testing.T) {
	tracker := seedTrackedSignals(t)

	reports, err := tracker.Track(context.Background(), "test_feature", "")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	perf := reports[0]

	if len(perf.Horizons) != 3 {
		t.Fatalf("got %d horizons", len(perf.Horizons))
	}
	h1, h2, h3 := perf.Horizons[0], perf.Horizons[1], perf.Horizons[2]
	// The 20240105 signal only has a 1-day return.
	if h1.Count != 4 || h2.Count != 3 || h3.Count != 3 {
		t.Fatalf("horizon counts %d/%d/%d, want 4/3/3", h1.Count, h2.Count, h3.Count)
	}
	if h1.BestSymbol != "600001.SH" || h1.WorstSymbol != "600002.SH" {
		t.Fatalf("1d best/worst %s/%s", h1.BestSymbol, h1.WorstSymbol)
	}
	if got, want := h3.BestReturn, 30.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("3d best = %v, want %v", got, want)
	}
}

func TestTrackerScanDateFilter(t *testing.T) {
	tracker := seedTrackedSignals(t)

	reports, err := tracker.Track(context.Background(), "test_feature", "20240102")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(reports) != 1 || reports[0].TotalSignals != 3 {
		t.Fatalf("unexpected reports %+v", reports)
	}
}

func TestTrackerAllFeaturesWhenUnnamed(t *testing.T) {
	tracker := seedTrackedSignals(t)

	reports, err := tracker.Track(context.Background(), "", "")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(reports) != 1 || reports[0].Feature != "test_feature" {
		t.Fatalf("unexpected reports %+v", reports)
	}
}

func TestTrackerNoSignals(t *testing.T) {
	store := newTestStore(t)
	tracker := NewTracker(store, NewBatchLoader(store, nil, nil), nil, nil)

	reports, err := tracker.Track(context.Background(), "", "")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %+v", reports)
	}
}
