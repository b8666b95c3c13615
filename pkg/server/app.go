package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"alphaspike/internal/domain/repository"
	"alphaspike/internal/feature"
	"alphaspike/internal/handler/api"
	apprepo "alphaspike/internal/repository"
	"alphaspike/internal/scheduler"
	"alphaspike/internal/service/catalog"
	"alphaspike/internal/service/publisher"
	"alphaspike/internal/service/tushare"
	"alphaspike/internal/usecase"
	appcache "alphaspike/pkg/cache"
	"alphaspike/pkg/config"
	xhttp "alphaspike/pkg/http"
	appkafka "alphaspike/pkg/kafka"
	applogger "alphaspike/pkg/logger"
	"alphaspike/pkg/metrics"
)

// App assembles the full dependency graph from config. The CLI
// commands and serve mode both build on it.
type App struct {
	Cfg      *config.Config
	Log      *applogger.Logger
	Store    *apprepo.Store
	Hot      appcache.Service
	Coord    *usecase.CacheCoordinator
	Registry *feature.Registry
	Catalog  *catalog.FileCatalog
	Source   *tushare.Client
	Loader   *usecase.BatchLoader
	Syncer   *usecase.SyncOrchestrator
	Scanner  *usecase.ScanEngine
	Backtest *usecase.Backtester
	Tracker  *usecase.Tracker

	producer   *appkafka.Producer
	httpServer *xhttp.Server
	sched      *scheduler.Scheduler
}

// New builds the application from config. A Redis outage is not
// fatal: the hot tier is skipped and everything runs durable-only.
func New(cfg *config.Config) (*App, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := apprepo.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	app := &App{Cfg: cfg, Log: l, Store: store, Registry: feature.NewRegistry()}

	if cfg.Redis.Enabled {
		hot, err := appcache.NewRedisCache(
			appcache.WithRedisHost(cfg.Redis.Host),
			appcache.WithRedisPort(cfg.Redis.Port),
			appcache.WithRedisDB(cfg.Redis.DB),
			appcache.WithRedisPassword(cfg.Redis.Password),
			appcache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			l.Warn("redis unavailable, running durable-only", applogger.Error(err))
		} else {
			app.Hot = hot
		}
	}

	rec := metrics.New()
	app.Coord = usecase.NewCacheCoordinator(app.Hot, store, cfg.Scan.CacheTTL, rec, l)
	app.Catalog = catalog.New(cfg.Catalog.SSEFile, cfg.Catalog.SZSEFile,
		catalog.WithFilters(cfg.Catalog.ExcludeST, cfg.Catalog.MinListYears),
		catalog.WithLogger(l),
	)
	app.Source = tushare.New(cfg.Vendor.Token, cfg.Vendor.BaseURL,
		tushare.WithRate(cfg.Vendor.RateInterval),
		tushare.WithRetry(cfg.Vendor.MaxRetries, cfg.Vendor.RetryBackoff),
		tushare.WithTimeout(cfg.Vendor.Timeout),
		tushare.WithQuota(cfg.Vendor.QuotaPerMinute),
		tushare.WithLogger(l),
	)
	app.Loader = usecase.NewBatchLoader(store, rec, l)
	app.Syncer = usecase.NewSyncOrchestrator(app.Source, app.Catalog, store, app.Coord, cfg.Scan.SyncWorkers, rec, l)

	var pub *publisher.KafkaPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err := appkafka.NewProducer(
			appkafka.WithBrokers(cfg.Kafka.Brokers),
			appkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
			appkafka.WithCompression(cfg.Kafka.Compression),
			appkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
			appkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		)
		if err != nil {
			l.Warn("kafka unavailable, signal publishing disabled", applogger.Error(err))
		} else {
			app.producer = producer
			pub = publisher.New(producer, cfg.Kafka.Topic, l)
		}
	}

	// A typed-nil publisher would dodge the engine's nil check, so
	// only wrap it in the interface when it exists.
	var sigPub repository.SignalPublisher
	if pub != nil {
		sigPub = pub
	}
	app.Scanner = usecase.NewScanEngine(app.Registry, app.Catalog, app.Loader, app.Coord, sigPub, cfg.Scan.Workers, rec, l)
	app.Backtest = usecase.NewBacktester(app.Registry, app.Catalog, app.Loader, cfg.Scan.Workers, rec, l)
	app.Tracker = usecase.NewTracker(store, app.Loader, rec, l)

	return app, nil
}

// Serve runs the HTTP API (and the daily scheduler when enabled)
// until interrupted.
func (a *App) Serve() error {
	handler := api.NewHandler(a.Registry, a.Store, a.Scanner, a.Tracker, a.Syncer, a.Log)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.Cfg.Server.Port),
		xhttp.WithTimeouts(a.Cfg.Server.ReadTimeout, a.Cfg.Server.WriteTimeout, a.Cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.Log),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	if a.Cfg.Schedule.Enabled {
		a.sched = scheduler.New(a.Syncer, a.Scanner, a.Cfg.Schedule.SyncAt, a.Log)
		if err := a.sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	a.Log.Info("shutdown signal received")

	if a.sched != nil {
		a.sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.Log.Error("http shutdown error", applogger.Error(err))
	}
	return a.Close()
}

// Close releases all resources.
func (a *App) Close() error {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.Log.Warn("kafka close error", applogger.Error(err))
		}
	}
	if a.Hot != nil {
		if err := a.Hot.Close(); err != nil {
			a.Log.Warn("hot cache close error", applogger.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
