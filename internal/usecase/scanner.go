package usecase

import (
	"context"
	"fmt"
	"time"

	"alphaspike/internal/domain/models"
	"alphaspike/internal/domain/repository"
	"alphaspike/internal/feature"
	applogger "alphaspike/pkg/logger"
)

// ScanStatus tells whether a feature's result came from cache or from
// running the detectors.
type ScanStatus string

const (
	StatusCached  ScanStatus = "cached"
	StatusScanned ScanStatus = "scanned"
)

// ScanResult is one feature's outcome for a scan run.
type ScanResult struct {
	Feature string     `json:"feature"`
	Status  ScanStatus `json:"status"`
	Date    string     `json:"date"`
	Symbols []string   `json:"symbols"`
	Scanned int        `json:"scanned"`
	Skipped int        `json:"skipped"`
	Errors  int        `json:"errors"`
}

// ScanEngine runs registered detectors over the whole universe as of
// an end date. Bar data is loaded once per run and shared across
// features; detection fans out over a bounded worker pool with
// per-symbol failure isolation.
type ScanEngine struct {
	registry  *feature.Registry
	catalog   repository.Catalog
	loader    *BatchLoader
	coord     *CacheCoordinator
	publisher repository.SignalPublisher
	workers   int
	metrics   repository.Metrics
	l         *applogger.Logger
}

// NewScanEngine wires a scan run. publisher may be nil.
func NewScanEngine(
	registry *feature.Registry,
	catalog repository.Catalog,
	loader *BatchLoader,
	coord *CacheCoordinator,
	publisher repository.SignalPublisher,
	workers int,
	metrics repository.Metrics,
	l *applogger.Logger,
) *ScanEngine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ScanEngine{
		registry:  registry,
		catalog:   catalog,
		loader:    loader,
		coord:     coord,
		publisher: publisher,
		workers:   workers,
		metrics:   metrics,
		l:         l,
	}
}

// Scan evaluates the named features (all registered ones if empty) at
// endDate. With force false, a feature whose result is already cached
// for endDate is answered from cache with zero detector invocations.
func (e *ScanEngine) Scan(ctx context.Context, endDate string, features []string, force bool) ([]ScanResult, error) {
	configs, err := e.resolve(features)
	if err != nil {
		return nil, err
	}

	results := make([]ScanResult, 0, len(configs))
	var pending []feature.Config

	for _, cfg := range configs {
		if !force {
			set, ok, err := e.coord.GetSignals(ctx, cfg.Name, endDate)
			if err != nil {
				return nil, fmt.Errorf("cache lookup %s: %w", cfg.Name, err)
			}
			if ok {
				results = append(results, ScanResult{
					Feature: cfg.Name,
					Status:  StatusCached,
					Date:    endDate,
					Symbols: set.Symbols,
				})
				continue
			}
		}
		pending = append(pending, cfg)
	}
	if len(pending) == 0 {
		return results, nil
	}

	instruments, err := e.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	symbols := make([]string, len(instruments))
	for i, ins := range instruments {
		symbols[i] = ins.Symbol
	}

	series, _, err := e.loader.Load(ctx, symbols, "", endDate)
	if err != nil {
		return nil, err
	}

	for _, cfg := range pending {
		res, err := e.scanFeature(ctx, cfg, endDate, symbols, series)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

type scanUnit struct {
	signal  *models.FeatureSignal
	skipped bool
}

func (e *ScanEngine) scanFeature(ctx context.Context, cfg feature.Config, endDate string, symbols []string, series map[string]models.BarSeries) (ScanResult, error) {
	began := time.Now()

	units := ParallelMap(ctx, symbols, e.workers, func(_ context.Context, symbol string) (scanUnit, error) {
		s := series[symbol]
		if s.Len() < cfg.MinDays {
			return scanUnit{skipped: true}, nil
		}
		r := cfg.Detect(s)
		if !r.Signal {
			return scanUnit{}, nil
		}
		return scanUnit{signal: &models.FeatureSignal{
			Feature: cfg.Name,
			Symbol:  symbol,
			Date:    endDate,
			Metrics: r.Metrics,
		}}, nil
	})

	res := ScanResult{Feature: cfg.Name, Status: StatusScanned, Date: endDate}
	var signals []models.FeatureSignal
	for i, u := range units {
		if u.Err != nil {
			res.Errors++
			e.l.Warn("detector failed",
				applogger.String("feature", cfg.Name),
				applogger.String("symbol", symbols[i]),
				applogger.Error(u.Err),
			)
			continue
		}
		if u.Value.skipped {
			res.Skipped++
			continue
		}
		res.Scanned++
		if u.Value.signal != nil {
			signals = append(signals, *u.Value.signal)
			res.Symbols = append(res.Symbols, u.Value.signal.Symbol)
		}
	}

	if err := e.coord.PutSignals(ctx, cfg.Name, endDate, signals); err != nil {
		return ScanResult{}, err
	}
	e.metrics.RecordSignals(cfg.Name, len(signals))
	e.metrics.ObserveDuration("scan_feature", time.Since(began).Seconds())

	if e.publisher != nil && len(res.Symbols) > 0 {
		set := models.SignalSet{Feature: cfg.Name, Date: endDate, Symbols: res.Symbols}
		if err := e.publisher.PublishSignals(ctx, set); err != nil {
			e.l.Warn("signal publish failed", applogger.String("feature", cfg.Name), applogger.Error(err))
		}
	}

	e.l.Info("feature scanned",
		applogger.String("feature", cfg.Name),
		applogger.Int("signals", len(signals)),
		applogger.Int("scanned", res.Scanned),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("errors", res.Errors),
		applogger.Duration("elapsed", time.Since(began)),
	)
	return res, nil
}

func (e *ScanEngine) resolve(names []string) ([]feature.Config, error) {
	if len(names) == 0 {
		return e.registry.All(), nil
	}
	out := make([]feature.Config, 0, len(names))
	for _, name := range names {
		cfg, ok := e.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		out = append(out, cfg)
	}
	return out, nil
}
