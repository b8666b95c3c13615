package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes Prometheus instruments for the batch engines.
type Recorder struct {
	barsSynced   *prometheus.CounterVec
	syncOutcomes *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	signalsFound *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsSynced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaspike_bars_synced_total",
				Help: "Total daily bars appended to the durable store",
			},
			[]string{"exchange"},
		),
		syncOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaspike_sync_outcomes_total",
				Help: "Per-instrument sync outcomes",
			},
			[]string{"outcome"}, // ok | skip | fail
		),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaspike_cache_lookups_total",
				Help: "Feature cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),
		signalsFound: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphaspike_signals_found",
				Help: "Signals found in the most recent scan per feature",
			},
			[]string{"feature"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphaspike_operation_duration_seconds",
				Help:    "Duration of batch operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"operation"},
		),
	}
}

// RecordBarsSynced counts bars appended for an exchange.
func (r *Recorder) RecordBarsSynced(exchange string, n int) {
	r.barsSynced.WithLabelValues(exchange).Add(float64(n))
}

// RecordSyncOutcome counts one instrument's sync outcome.
func (r *Recorder) RecordSyncOutcome(outcome string) {
	r.syncOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a cache lookup result for a tier.
func (r *Recorder) RecordCacheLookup(tier, result string) {
	r.cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordSignals sets the last scan's signal count for a feature.
func (r *Recorder) RecordSignals(feature string, n int) {
	r.signalsFound.WithLabelValues(feature).Set(float64(n))
}

// ObserveDuration records one operation duration.
func (r *Recorder) ObserveDuration(operation string, seconds float64) {
	r.latency.WithLabelValues(operation).Observe(seconds)
}
