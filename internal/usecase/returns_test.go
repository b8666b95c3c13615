package usecase

import (
	"math"
	"testing"

	"alphaspike/internal/domain/models"
)

func priceBars(symbol string, dates []string, opens, closes []float64) models.BarSeries {
	out := make(models.BarSeries, 0, len(dates))
	for i, d := range dates {
		hi := math.Max(opens[i], closes[i]) + 0.1
		lo := math.Min(opens[i], closes[i]) - 0.1
		out = append(out, models.Bar{
			Symbol: symbol, Date: d,
			Open: opens[i], High: hi, Low: lo, Close: closes[i],
			Volume: 100000,
		})
	}
	return out
}

func TestPeriodReturnsEntryAndExit(t *testing.T) {
	dates := []string{"20240102", "20240103", "20240104", "20240105", "20240108"}
	opens := []float64{9.0, 9.5, 10.0, 10.5, 11.0}
	closes := []float64{9.2, 9.8, 10.4, 11.0, 10.2}
	s := priceBars("600000.SH", dates, opens, closes)

	returns, ok := periodReturns(s, "20240103", []int{1, 2, 3})
	if !ok {
		t.Fatalf("expected ok")
	}
	if len(returns) != 3 {
		t.Fatalf("got %d horizons", len(returns))
	}

	// Entry is the next trading day's open: 20240104 at 10.0.
	r1 := returns[1]
	if r1.EntryDate != "20240104" || r1.EntryPrice != 10.0 {
		t.Fatalf("entry %s@%v, want 20240104@10.0", r1.EntryDate, r1.EntryPrice)
	}
	if r1.ExitDate != "20240104" || r1.ExitPrice != 10.4 {
		t.Fatalf("1d exit %s@%v", r1.ExitDate, r1.ExitPrice)
	}
	if got, want := r1.Return, 4.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("1d return = %v, want %v", got, want)
	}

	r3 := returns[3]
	if r3.ExitDate != "20240108" || r3.Holding != 3 {
		t.Fatalf("3d exit %s holding %d", r3.ExitDate, r3.Holding)
	}
	// Exit close is 10.2 but the best close during holding was 11.0.
	if got, want := r3.Return, 2.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("3d return = %v, want %v", got, want)
	}
	if got, want := r3.MaxReturn, 10.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("3d max return = %v, want %v", got, want)
	}
}

func TestPeriodReturnsOmitsIncompleteHorizons(t *testing.T) {
	dates := []string{"20240102", "20240103", "20240104"}
	opens := []float64{9.0, 9.5, 10.0}
	closes := []float64{9.2, 9.8, 10.4}
	s := priceBars("600000.SH", dates, opens, closes)

	// Entry exists (20240104) but only the 1-day exit does.
	returns, ok := periodReturns(s, "20240103", []int{1, 2, 3})
	if !ok {
		t.Fatalf("expected ok")
	}
	if _, exists := returns[1]; !exists {
		t.Fatalf("1d horizon missing")
	}
	if _, exists := returns[2]; exists {
		t.Fatalf("2d horizon must be omitted, not zero")
	}
	if _, exists := returns[3]; exists {
		t.Fatalf("3d horizon must be omitted, not zero")
	}
}

func TestPeriodReturnsNoEntryBar(t *testing.T) {
	dates := []string{"20240102", "20240103"}
	opens := []float64{9.0, 9.5}
	closes := []float64{9.2, 9.8}
	s := priceBars("600000.SH", dates, opens, closes)

	// Signal on the last bar: nothing to enter on.
	if _, ok := periodReturns(s, "20240103", []int{1}); ok {
		t.Fatalf("expected not ok for signal on final bar")
	}
	// Signal date after all data behaves the same.
	if _, ok := periodReturns(s, "20240110", []int{1}); ok {
		t.Fatalf("expected not ok past end of data")
	}
}

func TestPeriodReturnsRejectsZeroOpen(t *testing.T) {
	dates := []string{"20240102", "20240103"}
	opens := []float64{9.0, 0}
	closes := []float64{9.2, 9.8}
	s := priceBars("600000.SH", dates, opens, closes)

	if _, ok := periodReturns(s, "20240102", []int{1}); ok {
		t.Fatalf("expected not ok for zero entry open")
	}
}
