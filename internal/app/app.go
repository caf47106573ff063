// Package app initializes and holds long-lived application services, acting
// as the composition root for the audit daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/audithq/site-auditor/internal/analyzer"
	"github.com/audithq/site-auditor/internal/api"
	"github.com/audithq/site-auditor/internal/audit"
	memorycache "github.com/audithq/site-auditor/internal/cache/memory"
	"github.com/audithq/site-auditor/internal/clock/system"
	"github.com/audithq/site-auditor/internal/config"
	collyfetcher "github.com/audithq/site-auditor/internal/fetcher/colly"
	"github.com/audithq/site-auditor/internal/id/uuid"
	"github.com/audithq/site-auditor/internal/metrics"
	"github.com/audithq/site-auditor/internal/orchestrator"
	"github.com/audithq/site-auditor/internal/progress"
	"github.com/audithq/site-auditor/internal/queue"
	memoryqueue "github.com/audithq/site-auditor/internal/queue/memory"
	memorystore "github.com/audithq/site-auditor/internal/store/memory"
	"github.com/audithq/site-auditor/internal/store/postgres"
	"github.com/audithq/site-auditor/internal/telemetry"
	"github.com/audithq/site-auditor/internal/worker"
)

// App wires every long-lived service for one daemon process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	queues *queue.Set
	pool   *worker.Pool
	cache  *memorycache.Cache
	server *http.Server

	closeStore func()
}

// New builds the full service graph from configuration. It fails fast if
// any dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	if _, err := telemetry.InitTracerProvider(ctx, "site-auditor"); err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}

	clock := system.New()
	ids := uuid.New()
	cache := memorycache.New()

	store, closeStore, err := newRecordStore(ctx, cfg, clock, logger)
	if err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.ProbeTimeout(),
	})

	engines := []analyzer.Engine{
		analyzer.NewStructuralEngine(),
		analyzer.NewContentEngine(),
		analyzer.NewTechnicalEngine(probe, analyzer.TechnicalConfig{
			SpeedAPIKey:   cfg.PageSpeed.APIKey,
			SpeedEndpoint: cfg.PageSpeed.Endpoint,
			SpeedTimeout:  time.Duration(cfg.PageSpeed.TimeoutSeconds) * time.Second,
			FetchTimeout:  cfg.FetchTimeout(),
			ProbeTimeout:  cfg.ProbeTimeout(),
		}),
	}

	queueCfg := memoryqueue.Config{
		Attempts:         cfg.Queue.Attempts,
		BackoffBase:      cfg.BackoffBase(),
		RemoveOnComplete: cfg.Queue.RemoveOnComplete,
		RemoveOnFail:     cfg.Queue.RemoveOnFail,
	}
	queuesByType := make(map[audit.AnalyzerType]queue.Queue, len(engines))
	workers := make([]*worker.Worker, 0, len(engines))
	for _, engine := range engines {
		q := memoryqueue.NewQueue(engine.Type(), queueCfg, clock)
		queuesByType[engine.Type()] = q
		workers = append(workers, worker.New(
			q, engine, fetcher, cache, store, clock,
			worker.Config{CacheTTL: cfg.CacheTTL()},
			logger,
		))
	}
	queues := queue.NewSet(queuesByType)
	pool := worker.NewPool(workers, cfg.Queue.Concurrency)

	orch := orchestrator.New(queues, ids, clock, orchestrator.Config{Stagger: cfg.Stagger()}, logger)
	aggregator := progress.New(queues)
	server := api.NewServer(orch, aggregator, store, cache, cfg, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		queues: queues,
		pool:   pool,
		cache:  cache,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		closeStore: closeStore,
	}, nil
}

func newRecordStore(ctx context.Context, cfg config.Config, clock audit.Clock, logger *zap.Logger) (audit.RecordStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Info("no database configured, using in-memory record store")
		return memorystore.NewRecordStore(clock), func() {}, nil
	}

	logger.Info("connecting to postgres record store", zap.String("table", cfg.DB.Table))
	store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize record store: %w", err)
	}
	return store, store.Close, nil
}

// Run starts the worker pool and HTTP server, then blocks until the context
// is canceled and shutdown completes.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	a.pool.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.shutdown(stopWorkers)
		return fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("shutdown requested")
	a.shutdown(stopWorkers)
	return nil
}

// shutdown drains in order: stop accepting HTTP, close the queues so
// workers finish their current task and exit, then release the stores.
func (a *App) shutdown(stopWorkers context.CancelFunc) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	a.queues.Close()
	stopWorkers()
	a.pool.Wait()

	a.cache.Close()
	a.closeStore()
	a.logger.Info("shutdown complete")
}
