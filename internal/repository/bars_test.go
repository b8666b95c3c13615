package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"alphaspike/internal/domain/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testBars(symbol string, dates ...string) models.BarSeries {
	out := make(models.BarSeries, 0, len(dates))
	for i, d := range dates {
		px := 10.0 + float64(i)*0.1
		out = append(out, models.Bar{
			Symbol: symbol, Date: d,
			Open: px, High: px + 0.2, Low: px - 0.2, Close: px + 0.1,
			Volume: 1000,
		})
	}
	return out
}

func TestAppendBarsDeduplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n, err := store.AppendBars(ctx, "600000.SH", testBars("600000.SH", "20240102", "20240103"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 2 {
		t.Fatalf("added %d, want 2", n)
	}

	// Replaying an overlapping window only adds the new row.
	n, err = store.AppendBars(ctx, "600000.SH", testBars("600000.SH", "20240102", "20240103", "20240104"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 1 {
		t.Fatalf("added %d, want 1", n)
	}
	if total, _ := store.CountBars(ctx, "600000.SH"); total != 3 {
		t.Fatalf("count = %d, want 3", total)
	}
}

func TestAppendBarsRejectsDisorder(t *testing.T) {
	store := openTestStore(t)
	bars := testBars("600000.SH", "20240103", "20240102")
	if _, err := store.AppendBars(context.Background(), "600000.SH", bars); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestAppendBarsWatermarkTracksLastBar(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendBars(ctx, "600000.SH", testBars("600000.SH", "20240102", "20240103")); err != nil {
		t.Fatalf("append: %v", err)
	}
	status, err := store.GetSyncStatus(ctx, "600000.SH")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.LastSynced != "20240103" {
		t.Fatalf("last_synced = %s, want 20240103", status.LastSynced)
	}
	max, err := store.MaxBarDate(ctx, "600000.SH")
	if err != nil {
		t.Fatalf("max date: %v", err)
	}
	if status.LastSynced > max {
		t.Fatalf("watermark %s ahead of stored bars %s", status.LastSynced, max)
	}

	// An empty batch writes nothing, including the watermark.
	if _, err := store.AppendBars(ctx, "600000.SH", nil); err != nil {
		t.Fatalf("empty append: %v", err)
	}
	status, _ = store.GetSyncStatus(ctx, "600000.SH")
	if status.LastSynced != "20240103" {
		t.Fatalf("empty batch moved the watermark to %s", status.LastSynced)
	}
}

func TestSyncStatusUnknownSymbol(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetSyncStatus(context.Background(), "600000.SH"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.MaxBarDate(context.Background(), "600000.SH"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadBarsRangeAndEmptySeries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendBars(ctx, "600000.SH", testBars("600000.SH", "20240102", "20240103", "20240104")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	series, err := store.LoadBars(ctx, []string{"600000.SH", "000001.SZ"}, "20240103", "20240104")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := series["600000.SH"]
	if got.Len() != 2 || got[0].Date != "20240103" {
		t.Fatalf("unexpected series %+v", got)
	}
	// Unknown symbols come back as empty series, not missing keys.
	if empty, ok := series["000001.SZ"]; !ok || empty.Len() != 0 {
		t.Fatalf("expected empty series, got %+v ok=%v", empty, ok)
	}
}

func TestGetSignalSetDistinguishesEmptyFromUnknown(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSignalSet(ctx, "bbc", "20240105"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("never-scanned must be ErrNotFound")
	}

	if err := store.SaveSignals(ctx, "bbc", "20240105", nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	set, err := store.GetSignalSet(ctx, "bbc", "20240105")
	if err != nil {
		t.Fatalf("scanned-but-empty must not be ErrNotFound: %v", err)
	}
	if len(set.Symbols) != 0 {
		t.Fatalf("unexpected symbols %v", set.Symbols)
	}
}

func TestSaveSignalsReplacesSet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := []models.FeatureSignal{
		{Feature: "bbc", Symbol: "600000.SH", Date: "20240105", Metrics: map[string]float64{"score": 1}},
		{Feature: "bbc", Symbol: "600519.SH", Date: "20240105"},
	}
	if err := store.SaveSignals(ctx, "bbc", "20240105", first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := []models.FeatureSignal{
		{Feature: "bbc", Symbol: "000001.SZ", Date: "20240105"},
	}
	if err := store.SaveSignals(ctx, "bbc", "20240105", second); err != nil {
		t.Fatalf("resave: %v", err)
	}

	set, err := store.GetSignalSet(ctx, "bbc", "20240105")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(set.Symbols) != 1 || set.Symbols[0] != "000001.SZ" {
		t.Fatalf("old set leaked through: %v", set.Symbols)
	}
}
