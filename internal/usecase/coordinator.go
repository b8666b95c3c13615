package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alphaspike/internal/domain/models"
	"alphaspike/internal/domain/repository"
	apprepo "alphaspike/internal/repository"
	appcache "alphaspike/pkg/cache"
	applogger "alphaspike/pkg/logger"
)

// CacheCoordinator layers a hot ephemeral tier over the durable store
// for scan results. The store is the sole source of truth: the hot
// tier can be wiped at any time and the coordinator repairs it from
// the store on the next read. Writes land durable-first, hot-second;
// a hot-tier failure degrades reads and writes to durable-only
// instead of failing the operation.
type CacheCoordinator struct {
	hot     appcache.Service
	store   *apprepo.Store
	ttl     time.Duration
	metrics repository.Metrics
	l       *applogger.Logger
}

// NewCacheCoordinator wires the two tiers. hot may be nil for a
// durable-only deployment.
func NewCacheCoordinator(hot appcache.Service, store *apprepo.Store, ttl time.Duration, metrics repository.Metrics, l *applogger.Logger) *CacheCoordinator {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &CacheCoordinator{hot: hot, store: store, ttl: ttl, metrics: metrics, l: l}
}

func signalKey(feature, endDate string) string {
	return fmt.Sprintf("feature:%s:%s", feature, endDate)
}

// GetSignals returns the cached signal set for (feature, endDate).
// ok=false means the scan has never been performed at that end date.
func (c *CacheCoordinator) GetSignals(ctx context.Context, feature, endDate string) (models.SignalSet, bool, error) {
	key := signalKey(feature, endDate)

	if c.hot != nil {
		var set models.SignalSet
		err := c.hot.Get(ctx, key, &set)
		switch {
		case err == nil:
			c.metrics.RecordCacheLookup("hot", "hit")
			return set, true, nil
		case errors.Is(err, appcache.ErrCacheMiss):
			c.metrics.RecordCacheLookup("hot", "miss")
		default:
			c.metrics.RecordCacheLookup("hot", "error")
			c.l.Warn("hot tier read failed, falling through to store",
				applogger.String("key", key), applogger.Error(err))
		}
	}

	set, err := c.store.GetSignalSet(ctx, feature, endDate)
	if errors.Is(err, apprepo.ErrNotFound) {
		c.metrics.RecordCacheLookup("durable", "miss")
		return models.SignalSet{}, false, nil
	}
	if err != nil {
		return models.SignalSet{}, false, fmt.Errorf("durable tier: %w", err)
	}
	c.metrics.RecordCacheLookup("durable", "hit")

	// Read-repair the hot tier.
	if c.hot != nil {
		if err := c.hot.Set(ctx, key, set, c.ttl); err != nil {
			c.l.Warn("hot tier repair failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return set, true, nil
}

// PutSignals persists a freshly computed scan result. The durable
// write is authoritative; the hot write is best-effort.
func (c *CacheCoordinator) PutSignals(ctx context.Context, feature, endDate string, signals []models.FeatureSignal) error {
	if err := c.store.SaveSignals(ctx, feature, endDate, signals); err != nil {
		return fmt.Errorf("save signals: %w", err)
	}

	if c.hot != nil {
		set := models.SignalSet{Feature: feature, Date: endDate, Symbols: make([]string, 0, len(signals))}
		for _, s := range signals {
			set.Symbols = append(set.Symbols, s.Symbol)
		}
		key := signalKey(feature, endDate)
		if err := c.hot.Set(ctx, key, set, c.ttl); err != nil {
			c.l.Warn("hot tier write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return nil
}

// InvalidateFeature drops every cached scan result for one feature
// from both tiers. Bars and sync state are primary data and are never
// touched by invalidation.
func (c *CacheCoordinator) InvalidateFeature(ctx context.Context, feature string) (int, error) {
	if c.hot != nil {
		if err := c.hot.DeleteByPattern(ctx, fmt.Sprintf("feature:%s:*", feature)); err != nil {
			c.l.Warn("hot tier invalidate failed", applogger.String("feature", feature), applogger.Error(err))
		}
	}
	n, err := c.store.DeleteFeatureData(ctx, feature)
	if err != nil {
		return 0, fmt.Errorf("delete feature data: %w", err)
	}
	return n, nil
}

// InvalidateAll drops every cached scan result for every feature plus
// the hot sync markers. Bars and sync state stay put; the next forced
// scan rebuilds everything from them.
func (c *CacheCoordinator) InvalidateAll(ctx context.Context) (int, error) {
	if c.hot != nil {
		if err := c.hot.DeleteByPattern(ctx, "feature:*"); err != nil {
			c.l.Warn("hot tier invalidate failed", applogger.Error(err))
		}
	}
	n, err := c.store.DeleteFeatureData(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("delete feature data: %w", err)
	}
	if err := c.InvalidateSyncMarkers(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// InvalidateSyncMarkers clears the hot per-day sync markers so the
// next sync re-fetches every symbol's window. Durable bars stay put.
func (c *CacheCoordinator) InvalidateSyncMarkers(ctx context.Context) error {
	if c.hot == nil {
		return nil
	}
	if err := c.hot.DeleteByPattern(ctx, "sync:*"); err != nil {
		return fmt.Errorf("clear sync markers: %w", err)
	}
	return nil
}

// MarkSynced records in the hot tier that symbol is current through
// endDate, so a rerun the same day can short-circuit the vendor call.
func (c *CacheCoordinator) MarkSynced(ctx context.Context, symbol, endDate string) {
	if c.hot == nil {
		return
	}
	key := fmt.Sprintf("sync:%s:%s", endDate, symbol)
	if err := c.hot.Set(ctx, key, true, c.ttl); err != nil {
		c.l.Warn("sync marker write failed", applogger.String("key", key), applogger.Error(err))
	}
}

// IsSynced reports whether symbol already carries a hot sync marker
// for endDate. Errors degrade to false (re-sync is always safe).
func (c *CacheCoordinator) IsSynced(ctx context.Context, symbol, endDate string) bool {
	if c.hot == nil {
		return false
	}
	ok, err := c.hot.Exists(ctx, fmt.Sprintf("sync:%s:%s", endDate, symbol))
	if err != nil {
		return false
	}
	return ok
}
