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

// BatchLoader pulls bar histories for a whole symbol batch in one
// store round-trip and derives the trading calendar from what it
// loaded. A symbol with no rows in range yields an empty series, not
// an error; history sufficiency is the detectors' concern.
type BatchLoader struct {
	store   *apprepo.Store
	metrics repository.Metrics
	l       *applogger.Logger
}

// NewBatchLoader builds a loader over the durable store.
func NewBatchLoader(store *apprepo.Store, metrics repository.Metrics, l *applogger.Logger) *BatchLoader {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &BatchLoader{store: store, metrics: metrics, l: l}
}

// Load fetches all bars for symbols within [start, end]. Empty start
// or end leaves that side of the window open.
func (b *BatchLoader) Load(ctx context.Context, symbols []string, start, end string) (map[string]models.BarSeries, models.TradingCalendar, error) {
	began := time.Now()
	series, err := b.store.LoadBars(ctx, symbols, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("batch load: %w", err)
	}
	calendar := models.NewTradingCalendar(series)
	b.metrics.ObserveDuration("batch_load", time.Since(began).Seconds())

	loaded := 0
	for _, s := range series {
		loaded += s.Len()
	}
	b.l.Debug("batch loaded",
		applogger.Int("symbols", len(symbols)),
		applogger.Int("bars", loaded),
		applogger.Int("trading_days", len(calendar)),
	)
	return series, calendar, nil
}
