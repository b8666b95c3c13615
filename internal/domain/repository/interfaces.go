package repository

import (
	"context"

	"alphaspike/internal/domain/models"
)

// BarSource is the vendor market-data client: one ordered window of
// daily bars per call. Transport and quota errors surface as errors;
// an empty window surfaces as ErrNoData from the implementation.
type BarSource interface {
	FetchDaily(ctx context.Context, symbol, start, end string) (models.BarSeries, error)
}

// Catalog loads the active instrument universe.
type Catalog interface {
	Load(ctx context.Context) ([]models.Instrument, error)
}

// SignalPublisher pushes freshly scanned signal sets to an external
// consumer. Optional; a nil publisher disables publishing.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, set models.SignalSet) error
	Close() error
}

// Metrics is the observability hook handed to the engines.
type Metrics interface {
	RecordBarsSynced(exchange string, n int)
	RecordSyncOutcome(outcome string)
	RecordCacheLookup(tier, result string)
	RecordSignals(feature string, n int)
	ObserveDuration(operation string, seconds float64)
}

// NopMetrics is used where no recorder is wired (tests, one-shot CLIs).
type NopMetrics struct{}

func (NopMetrics) RecordBarsSynced(string, int)     {}
func (NopMetrics) RecordSyncOutcome(string)         {}
func (NopMetrics) RecordCacheLookup(string, string) {}
func (NopMetrics) RecordSignals(string, int)        {}
func (NopMetrics) ObserveDuration(string, float64)  {}
