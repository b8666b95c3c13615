package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"alphaspike/internal/domain/models"
	apprepo "alphaspike/internal/repository"
	"alphaspike/internal/service/tushare"
	appcache "alphaspike/pkg/cache"
)

type fakeCatalog struct {
	instruments []models.Instrument
}

func (f *fakeCatalog) Load(context.Context) ([]models.Instrument, error) {
	return f.instruments, nil
}

// fakeSource serves bars from a fixed per-symbol history, recording
// every requested window.
type fakeSource struct {
	mu    sync.Mutex
	bars  map[string]models.BarSeries
	fail  map[string]error
	calls map[string][]string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bars:  make(map[string]models.BarSeries),
		fail:  make(map[string]error),
		calls: make(map[string][]string),
	}
}

func (f *fakeSource) FetchDaily(_ context.Context, symbol, start, end string) (models.BarSeries, error) {
	f.mu.Lock()
	f.calls[symbol] = append(f.calls[symbol], start+".."+end)
	f.mu.Unlock()

	if err := f.fail[symbol]; err != nil {
		return nil, err
	}
	var out models.BarSeries
	for _, b := range f.bars[symbol] {
		if b.Date >= start && b.Date <= end {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, tushare.ErrNoData
	}
	return out, nil
}

func (f *fakeSource) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[symbol])
}

func barsFor(symbol string, dates ...string) models.BarSeries {
	out := make(models.BarSeries, 0, len(dates))
	for i, d := range dates {
		px := 10.0 + float64(i)*0.1
		out = append(out, models.Bar{
			Symbol: symbol, Date: d,
			Open: px, High: px * 1.02, Low: px * 0.98, Close: px * 1.01,
			Volume: 100000, Amount: px * 100000,
		})
	}
	return out
}

var janDates = []string{"20240102", "20240103", "20240104", "20240105"}

func TestSyncerFirstRunStartsAtListDate(t *testing.T) {
	store := newTestStore(t)
	source := newFakeSource()
	source.bars["600000.SH"] = barsFor("600000.SH", janDates...)
	source.bars["000001.SZ"] = barsFor("000001.SZ", janDates...)
	cat := &fakeCatalog{instruments: []models.Instrument{
		{Symbol: "600000.SH", Name: "PuFa Bank", Exchange: "SSE", ListDate: "19991110"},
		{Symbol: "000001.SZ", Name: "Ping An Bank", Exchange: "SZSE", ListDate: "19910403"},
	}}

	syncer := NewSyncOrchestrator(source, cat, store, nil, 2, nil, nil)
	summary, err := syncer.Run(context.Background(), "20240105")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 0 || summary.BarsAdded != 8 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := source.calls["600000.SH"]; len(got) != 1 || got[0] != "19991110..20240105" {
		t.Fatalf("unexpected window %v, want list date start", got)
	}

	status, err := store.GetSyncStatus(context.Background(), "600000.SH")
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	if status.LastSynced != "20240105" {
		t.Fatalf("watermark = %s, want 20240105", status.LastSynced)
	}
}

func TestSyncerRerunIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	source := newFakeSource()
	source.bars["600000.SH"] = barsFor("600000.SH", janDates...)
	cat := &fakeCatalog{instruments: []models.Instrument{
		{Symbol: "600000.SH", Name: "PuFa Bank", Exchange: "SSE", ListDate: "20240101"},
	}}

	syncer := NewSyncOrchestrator(source, cat, store, nil, 1, nil, nil)
	ctx := context.Background()
	if _, err := syncer.Run(ctx, "20240105"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Same end date again: the window (20240106..20240105) is empty, so
	// the symbol skips without a vendor call.
	summary, err := syncer.Run(ctx, "20240105")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if n := source.callCount("600000.SH"); n != 1 {
		t.Fatalf("vendor called %d times, want 1", n)
	}
	if n, err := store.CountBars(ctx, "600000.SH"); err != nil || n != 4 {
		t.Fatalf("bar count = %d (%v), want 4", n, err)
	}
}

func TestSyncerHotMarkerShortCircuits(t *testing.T) {
	store := newTestStore(t)
	hot := appcache.NewMemoryCache()
	defer hot.Close()
	coord := NewCacheCoordinator(hot, store, time.Hour, nil, nil)

	source := newFakeSource()
	source.bars["600000.SH"] = barsFor("600000.SH", janDates...)
	cat := &fakeCatalog{instruments: []models.Instrument{
		{Symbol: "600000.SH", Name: "PuFa Bank", Exchange: "SSE", ListDate: "20240101"},
	}}

	syncer := NewSyncOrchestrator(source, cat, store, coord, 1, nil, nil)
	ctx := context.Background()
	if _, err := syncer.Run(ctx, "20240105"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	summary, err := syncer.Run(ctx, "20240105")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	// The marker short-circuits before the store is even consulted.
	if n := source.callCount("600000.SH"); n != 1 {
		t.Fatalf("vendor called %d times, want 1", n)
	}
}

func TestSyncerSuspendedSymbolRetriesWindow(t *testing.T) {
	store := newTestStore(t)
	hot := appcache.NewMemoryCache()
	defer hot.Close()
	coord := NewCacheCoordinator(hot, store, time.Hour, nil, nil)
	source := newFakeSource() // no bars: every window comes back empty
	cat := &fakeCatalog{instruments: []models.Instrument{
		{Symbol: "600000.SH", Name: "PuFa Bank", Exchange: "SSE", ListDate: "20240101"},
	}}

	syncer := NewSyncOrchestrator(source, cat, store, coord, 1, nil, nil)
	ctx := context.Background()
	summary, err := syncer.Run(ctx, "20240105")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("empty window must skip, not fail: %+v", summary)
	}

	// No bars means no durable watermark: suspension never fabricates one.
	if _, err := store.GetSyncStatus(ctx, "600000.SH"); !errors.Is(err, apprepo.ErrNotFound) {
		t.Fatalf("empty window must not write a watermark, got %v", err)
	}

	// A rerun the same day skips on the hot marker alone.
	if _, err := syncer.Run(ctx, "20240105"); err != nil {
		t.Fatalf("same-day rerun: %v", err)
	}
	if n := source.callCount("600000.SH"); n != 1 {
		t.Fatalf("same-day rerun hit the vendor (%d calls)", n)
	}

	// Tomorrow the whole window is asked again, so a vendor that comes
	// back to life delivers the full history.
	source.bars["600000.SH"] = barsFor("600000.SH", janDates...)
	if _, err := syncer.Run(ctx, "20240108"); err != nil {
		t.Fatalf("next-day run: %v", err)
	}
	calls := source.calls["600000.SH"]
	if len(calls) != 2 || calls[1] != "20240101..20240108" {
		t.Fatalf("unexpected windows %v", calls)
	}
	if n, _ := store.CountBars(ctx, "600000.SH"); n != 4 {
		t.Fatalf("bar count = %d, want 4", n)
	}
}

func TestSyncerVendorLagLeavesNoGap(t *testing.T) {
	store := newTestStore(t)
	source := newFakeSource()
	// The vendor has published bars only through 20240103.
	source.bars["600000.SH"] = barsFor("600000.SH", "20240102", "20240103")
	cat := &fakeCatalog{instruments: []models.Instrument{
		{Symbol: "600000.SH", Name: "PuFa Bank", Exchange: "SSE", ListDate: "20240101"},
	}}

	syncer := NewSyncOrchestrator(source, cat, store, nil, 1, nil, nil)
	ctx := context.Background()
	if _, err := syncer.Run(ctx, "20240105"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The watermark stops at the last delivered bar, never at the
	// requested end date.
	status, err := store.GetSyncStatus(ctx, "600000.SH")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.LastSynced != "20240103" {
		t.Fatalf("watermark = %s, want 20240103", status.LastSynced)
	}
	max, _ := store.MaxBarDate(ctx, "600000.SH")
	if status.LastSynced > max {
		t.Fatalf("watermark %s ahead of stored bars %s", status.LastSynced, max)
	}

	// Once the vendor catches up, the next run starts right behind the
	// bars and the late days are filled in.
	source.bars["600000.SH"] = barsFor("600000.SH", janDates...)
	summary, err := syncer.Run(ctx, "20240108")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.BarsAdded != 2 {
		t.Fatalf("added %d bars, want the 2 late days", summary.BarsAdded)
	}
	calls := source.calls["600000.SH"]
	if calls[1] != "20240104..20240108" {
		t.Fatalf("unexpected second window %v", calls)
	}
	if n, _ := store.CountBars(ctx, "600000.SH"); n != 4 {
		t.Fatalf("bar count = %d, want 4 (no gap)", n)
	}
}

func TestSyncerIsolatesFailures(t *testing.T) {
	store := newTestStore(t)
	source := newFakeSource()
	source.bars["600000.SH"] = barsFor("600000.SH", janDates...)
	source.fail["600519.SH"] = fmt.Errorf("http 500")
	cat := &fakeCatalog{instruments: []models.Instrument{
		{Symbol: "600000.SH", Name: "PuFa Bank", Exchange: "SSE", ListDate: "20240101"},
		{Symbol: "600519.SH", Name: "Moutai", Exchange: "SSE", ListDate: "20010827"},
	}}

	syncer := NewSyncOrchestrator(source, cat, store, nil, 2, nil, nil)
	summary, err := syncer.Run(context.Background(), "20240105")
	if err != nil {
		t.Fatalf("batch must not fail on one symbol: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSyncerWatermarkNeverDecreases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.AppendBars(ctx, "600000.SH", barsFor("600000.SH", janDates...)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A replayed older batch must not move the watermark backwards.
	if _, err := store.AppendBars(ctx, "600000.SH", barsFor("600000.SH", "20240102", "20240103")); err != nil {
		t.Fatalf("replay: %v", err)
	}
	status, err := store.GetSyncStatus(ctx, "600000.SH")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.LastSynced != "20240105" {
		t.Fatalf("watermark regressed to %s", status.LastSynced)
	}
}

func TestSyncerCancelledBatch(t *testing.T) {
	store := newTestStore(t)
	source := newFakeSource()
	instruments := make([]models.Instrument, 20)
	for i := range instruments {
		sym := fmt.Sprintf("6000%02d.SH", i)
		instruments[i] = models.Instrument{Symbol: sym, Name: "Test", Exchange: "SSE", ListDate: "20240101"}
		source.bars[sym] = barsFor(sym, janDates...)
	}
	cat := &fakeCatalog{instruments: instruments}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := NewSyncOrchestrator(source, cat, store, nil, 2, nil, nil)
	summary, err := syncer.Run(ctx, "20240105")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed == 0 {
		t.Fatalf("cancelled units must surface as failures, got %+v", summary)
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatalf("sanity: ctx not cancelled")
	}
}
