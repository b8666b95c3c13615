package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"alphaspike/internal/domain/models"
	"alphaspike/internal/domain/repository"
	"alphaspike/internal/feature"
	applogger "alphaspike/pkg/logger"
	"alphaspike/pkg/util"
)

// BacktestReport aggregates one feature's simulated trades over a
// calendar year.
type BacktestReport struct {
	Feature      string          `json:"feature"`
	Year         int             `json:"year"`
	HoldingDays  int             `json:"holding_days"`
	TradingDays  int             `json:"trading_days"`
	TotalSignals int             `json:"total_signals"`
	WinCount     int             `json:"win_count"`
	LossCount    int             `json:"loss_count"`
	WinRate      float64         `json:"win_rate"`     // percent, exit-close basis
	MaxWinCount  int             `json:"max_win_count"`
	MaxWinRate   float64         `json:"max_win_rate"` // percent, best-close basis
	AvgReturn    float64         `json:"avg_return"`
	MaxReturn    float64         `json:"max_return"`
	MinReturn    float64         `json:"min_return"`
	Trades       []ForwardReturn `json:"trades"`
}

// Backtester replays a detector over every trading day of a year and
// simulates the resulting trades. Signals too close to the end of the
// data to complete their holding window are omitted, not counted as
// zero-return trades.
type Backtester struct {
	registry *feature.Registry
	catalog  repository.Catalog
	loader   *BatchLoader
	workers  int
	metrics  repository.Metrics
	l        *applogger.Logger
}

// NewBacktester wires a backtest run.
func NewBacktester(registry *feature.Registry, catalog repository.Catalog, loader *BatchLoader, workers int, metrics repository.Metrics, l *applogger.Logger) *Backtester {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Backtester{registry: registry, catalog: catalog, loader: loader, workers: workers, metrics: metrics, l: l}
}

// Run backtests featureName across all of year with the given holding
// period.
func (b *Backtester) Run(ctx context.Context, featureName string, year, holdingDays int) (BacktestReport, error) {
	cfg, ok := b.registry.Get(featureName)
	if !ok {
		return BacktestReport{}, fmt.Errorf("unknown feature %q", featureName)
	}
	if holdingDays < 1 {
		holdingDays = 5
	}

	began := time.Now()

	instruments, err := b.catalog.Load(ctx)
	if err != nil {
		return BacktestReport{}, fmt.Errorf("load catalog: %w", err)
	}
	symbols := make([]string, len(instruments))
	for i, ins := range instruments {
		symbols[i] = ins.Symbol
	}

	// Full history per symbol: the prefix up to each signal date feeds
	// the detector, the suffix prices the trade.
	series, calendar, err := b.loader.Load(ctx, symbols, "", "")
	if err != nil {
		return BacktestReport{}, err
	}
	yearStart, yearEnd := util.YearRange(year)
	tradingDays := calendar.Between(yearStart, yearEnd)
	if len(tradingDays) == 0 {
		return BacktestReport{Feature: featureName, Year: year, HoldingDays: holdingDays}, nil
	}

	units := ParallelMap(ctx, symbols, b.workers, func(_ context.Context, symbol string) ([]ForwardReturn, error) {
		return b.backtestSymbol(series[symbol], cfg, tradingDays, holdingDays), nil
	})

	var trades []ForwardReturn
	for i, u := range units {
		if u.Err != nil {
			b.l.Warn("symbol backtest failed",
				applogger.String("symbol", symbols[i]),
				applogger.Error(u.Err),
			)
			continue
		}
		trades = append(trades, u.Value...)
	}
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].SignalDate != trades[j].SignalDate {
			return trades[i].SignalDate < trades[j].SignalDate
		}
		return trades[i].Symbol < trades[j].Symbol
	})

	report := b.aggregate(featureName, year, holdingDays, len(tradingDays), trades)
	b.metrics.ObserveDuration("backtest", time.Since(began).Seconds())
	b.l.Info("backtest finished",
		applogger.String("feature", featureName),
		applogger.Int("year", year),
		applogger.Int("signals", report.TotalSignals),
		applogger.Float64("win_rate", report.WinRate),
		applogger.Duration("elapsed", time.Since(began)),
	)
	return report, nil
}

func (b *Backtester) backtestSymbol(s models.BarSeries, cfg feature.Config, tradingDays []string, holdingDays int) []ForwardReturn {
	if s.Len() < cfg.MinDays {
		return nil
	}
	var out []ForwardReturn
	for _, day := range tradingDays {
		if s.IndexOf(day) < 0 {
			continue
		}
		window := s.CopyPrefix(day)
		if window.Len() < cfg.MinDays {
			continue
		}
		if !cfg.Detect(window).Signal {
			continue
		}
		returns, ok := periodReturns(s, day, []int{holdingDays})
		if !ok {
			continue
		}
		if fr, ok := returns[holdingDays]; ok {
			out = append(out, fr)
		}
	}
	return out
}

func (b *Backtester) aggregate(featureName string, year, holdingDays, tradingDays int, trades []ForwardReturn) BacktestReport {
	report := BacktestReport{
		Feature:     featureName,
		Year:        year,
		HoldingDays: holdingDays,
		TradingDays: tradingDays,
		Trades:      trades,
	}
	if len(trades) == 0 {
		return report
	}

	report.TotalSignals = len(trades)
	var sum float64
	report.MaxReturn = trades[0].Return
	report.MinReturn = trades[0].Return
	for _, t := range trades {
		sum += t.Return
		if t.Return > 0 {
			report.WinCount++
		} else {
			report.LossCount++
		}
		if t.MaxReturn > 0 {
			report.MaxWinCount++
		}
		if t.Return > report.MaxReturn {
			report.MaxReturn = t.Return
		}
		if t.Return < report.MinReturn {
			report.MinReturn = t.Return
		}
	}
	n := float64(len(trades))
	report.WinRate = float64(report.WinCount) / n * 100
	report.MaxWinRate = float64(report.MaxWinCount) / n * 100
	report.AvgReturn = sum / n
	return report
}
