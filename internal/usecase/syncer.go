package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alphaspike/internal/domain/models"
	"alphaspike/internal/domain/repository"
	apprepo "alphaspike/internal/repository"
	"alphaspike/internal/service/tushare"
	applogger "alphaspike/pkg/logger"
	"alphaspike/pkg/util"
)

// Per-unit sync outcomes. Skip is not failure: an up-to-date or
// suspended symbol is a normal, quiet result.
const (
	outcomeOK   = "ok"
	outcomeSkip = "skip"
	outcomeFail = "fail"
)

// SyncOrchestrator brings every catalog symbol's bar history up to an
// end date. Each symbol syncs exactly its missing window: (last
// synced, end] for known symbols, [list date, end] for new ones. One
// symbol's failure never aborts the batch; the summary reports it.
type SyncOrchestrator struct {
	source  repository.BarSource
	catalog repository.Catalog
	store   *apprepo.Store
	coord   *CacheCoordinator
	workers int
	metrics repository.Metrics
	l       *applogger.Logger
}

// NewSyncOrchestrator wires a sync run. coord may be nil; hot sync
// markers are then disabled and every run hits the vendor.
func NewSyncOrchestrator(
	source repository.BarSource,
	catalog repository.Catalog,
	store *apprepo.Store,
	coord *CacheCoordinator,
	workers int,
	metrics repository.Metrics,
	l *applogger.Logger,
) *SyncOrchestrator {
	if workers <= 0 {
		workers = 4
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SyncOrchestrator{
		source:  source,
		catalog: catalog,
		store:   store,
		coord:   coord,
		workers: workers,
		metrics: metrics,
		l:       l,
	}
}

type syncUnit struct {
	outcome string
	bars    int
}

// Run syncs the whole catalog universe up to endDate and returns the
// per-outcome summary. The returned error covers batch-level problems
// only (catalog load, cancellation); per-symbol errors are counted as
// failures and logged.
func (o *SyncOrchestrator) Run(ctx context.Context, endDate string) (models.SyncSummary, error) {
	began := time.Now()

	instruments, err := o.catalog.Load(ctx)
	if err != nil {
		return models.SyncSummary{}, fmt.Errorf("load catalog: %w", err)
	}
	o.l.Info("sync starting",
		applogger.Int("instruments", len(instruments)),
		applogger.String("end_date", endDate),
	)

	results := ParallelMap(ctx, instruments, o.workers, func(ctx context.Context, ins models.Instrument) (syncUnit, error) {
		return o.syncOne(ctx, ins, endDate)
	})

	var summary models.SyncSummary
	for i, r := range results {
		if r.Err != nil {
			summary.Failed++
			o.metrics.RecordSyncOutcome(outcomeFail)
			o.l.Warn("symbol sync failed",
				applogger.String("symbol", instruments[i].Symbol),
				applogger.Error(r.Err),
			)
			continue
		}
		switch r.Value.outcome {
		case outcomeOK:
			summary.Succeeded++
			summary.BarsAdded += r.Value.bars
		case outcomeSkip:
			summary.Skipped++
		}
		o.metrics.RecordSyncOutcome(r.Value.outcome)
	}

	o.metrics.ObserveDuration("sync", time.Since(began).Seconds())
	o.l.Info("sync finished",
		applogger.Int("succeeded", summary.Succeeded),
		applogger.Int("skipped", summary.Skipped),
		applogger.Int("failed", summary.Failed),
		applogger.Int("bars_added", summary.BarsAdded),
		applogger.Duration("elapsed", time.Since(began)),
	)
	return summary, nil
}

func (o *SyncOrchestrator) syncOne(ctx context.Context, ins models.Instrument, endDate string) (syncUnit, error) {
	if o.coord != nil && o.coord.IsSynced(ctx, ins.Symbol, endDate) {
		return syncUnit{outcome: outcomeSkip}, nil
	}

	start, err := o.windowStart(ctx, ins)
	if err != nil {
		return syncUnit{}, err
	}
	if start > endDate {
		// Already current through endDate.
		o.markSynced(ctx, ins.Symbol, endDate)
		return syncUnit{outcome: outcomeSkip}, nil
	}

	bars, err := o.source.FetchDaily(ctx, ins.Symbol, start, endDate)
	if errors.Is(err, tushare.ErrNoData) {
		// Suspended or delisted over the whole window. The durable
		// watermark stays where the bars are; only the hot marker is
		// set, so the same day skips but tomorrow retries the window.
		o.markSynced(ctx, ins.Symbol, endDate)
		return syncUnit{outcome: outcomeSkip}, nil
	}
	if err != nil {
		return syncUnit{}, fmt.Errorf("fetch %s..%s: %w", start, endDate, err)
	}

	// The watermark lands on the last returned bar, not on endDate: a
	// vendor that has not published the newest days yet leaves them in
	// the next run's window instead of behind it.
	n, err := o.store.AppendBars(ctx, ins.Symbol, bars)
	if err != nil {
		return syncUnit{}, fmt.Errorf("append bars: %w", err)
	}
	o.metrics.RecordBarsSynced(ins.Exchange, n)
	o.markSynced(ctx, ins.Symbol, endDate)
	return syncUnit{outcome: outcomeOK, bars: n}, nil
}

// windowStart returns the first date the symbol is missing: the day
// after its watermark, or its list date on first sync.
func (o *SyncOrchestrator) windowStart(ctx context.Context, ins models.Instrument) (string, error) {
	status, err := o.store.GetSyncStatus(ctx, ins.Symbol)
	if errors.Is(err, apprepo.ErrNotFound) {
		return ins.ListDate, nil
	}
	if err != nil {
		return "", fmt.Errorf("sync status: %w", err)
	}
	return util.NextDay(status.LastSynced), nil
}

func (o *SyncOrchestrator) markSynced(ctx context.Context, symbol, endDate string) {
	if o.coord != nil {
		o.coord.MarkSynced(ctx, symbol, endDate)
	}
}
