// Package worker implements the analysis task execution loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/audithq/site-auditor/internal/analyzer"
	"github.com/audithq/site-auditor/internal/audit"
	"github.com/audithq/site-auditor/internal/hash/sha256"
	"github.com/audithq/site-auditor/internal/metrics"
	"github.com/audithq/site-auditor/internal/queue"
	"github.com/audithq/site-auditor/internal/telemetry"
)

// Progress checkpoints emitted while a task runs. Completion implies 100.
const (
	progressStarted  = 10
	progressAnalyzed = 90
)

// Config controls Worker behavior.
type Config struct {
	// CacheTTL bounds how long a task's result envelope stays readable by
	// ID after completion.
	CacheTTL time.Duration
}

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	return time.Hour
}

// ResultEnvelope is the cached per-task result, keyed by task ID. It lets
// clients read a single engine's output without waiting for the session.
type ResultEnvelope struct {
	UserID string             `json:"userId"`
	Type   audit.AnalyzerType `json:"type"`
	Result json.RawMessage    `json:"result"`
}

// ResultCacheKey is the cache key for one task's result envelope.
func ResultCacheKey(taskID string) string {
	return "task:result:" + taskID
}

// Worker consumes one analyzer queue and executes its engine pipeline:
// fetch, analyze, cache, persist. Failures are reported back to the queue,
// which decides between retry and terminal failure.
type Worker struct {
	queue   queue.Queue
	engine  analyzer.Engine
	fetcher audit.Fetcher
	cache   audit.Cache
	store   audit.RecordStore
	clock   audit.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker for one analyzer queue.
func New(
	q queue.Queue,
	engine analyzer.Engine,
	fetcher audit.Fetcher,
	cache audit.Cache,
	store audit.RecordStore,
	clock audit.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:   q,
		engine:  engine,
		fetcher: fetcher,
		cache:   cache,
		store:   store,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(zap.String("analyzer", string(engine.Type()))),
	}
}

// Run blocks, consuming queue tasks until the context finishes or the queue
// closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			return
		}
		w.logger.Debug("dequeued task",
			zap.String("task_id", task.ID),
			zap.Int("attempt", task.Attempt),
		)
		w.processTask(ctx, task)
	}
}

func (w *Worker) processTask(ctx context.Context, task audit.Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	started := w.clock.Now()

	if err := w.runPipeline(ctx, task); err != nil {
		w.reportFailure(ctx, task, started, err)
		return
	}

	if err := w.queue.Complete(ctx, task.ID); err != nil {
		w.logger.Error("complete task failed", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	metrics.ObserveTask(string(task.Queue), "completed", w.clock.Now().Sub(started))
	w.logger.Info("task completed",
		zap.String("task_id", task.ID),
		zap.String("url", task.Payload.URL),
		zap.Int("attempt", task.Attempt),
	)
}

func (w *Worker) runPipeline(ctx context.Context, task audit.Task) error {
	ctx, span := telemetry.Tracer().Start(ctx, "worker.runPipeline")
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("analyzer", string(task.Queue)),
	)
	defer span.End()

	w.checkpoint(ctx, task.ID, progressStarted)

	page, err := w.fetcher.Fetch(ctx, task.Payload.URL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", task.Payload.URL, err)
	}
	w.logger.Debug("page fetched",
		zap.String("task_id", task.ID),
		zap.String("content_hash", sha256.Sum(page.Body)),
		zap.Int64("fetch_ms", page.Duration.Milliseconds()),
	)

	result, err := w.engine.Analyze(ctx, page)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	w.checkpoint(ctx, task.ID, progressAnalyzed)

	if err := w.cacheResult(ctx, task, result); err != nil {
		return &audit.PersistenceError{Op: "cache", Err: err}
	}

	title := fmt.Sprintf("SEO analysis - %s", task.Payload.URL)
	if err := w.store.UpsertResult(ctx, task.Payload.UserID, task.Payload.URL, task.Queue, title, result); err != nil {
		return &audit.PersistenceError{Op: "record", Err: err}
	}
	return nil
}

func (w *Worker) cacheResult(ctx context.Context, task audit.Task, result json.RawMessage) error {
	envelope, err := json.Marshal(ResultEnvelope{
		UserID: task.Payload.UserID,
		Type:   task.Queue,
		Result: result,
	})
	if err != nil {
		return err
	}
	return w.cache.Set(ctx, ResultCacheKey(task.ID), envelope, w.cfg.cacheTTL())
}

func (w *Worker) checkpoint(ctx context.Context, taskID string, progress int) {
	if err := w.queue.SetProgress(ctx, taskID, progress); err != nil {
		w.logger.Warn("set progress failed",
			zap.String("task_id", taskID),
			zap.Int("progress", progress),
			zap.Error(err),
		)
	}
}

func (w *Worker) reportFailure(ctx context.Context, task audit.Task, started time.Time, cause error) {
	state, err := w.queue.Fail(ctx, task.ID, cause.Error())
	if err != nil {
		w.logger.Error("fail task failed", zap.String("task_id", task.ID), zap.Error(err))
		return
	}

	if state == audit.TaskWaiting {
		metrics.ObserveRetry(string(task.Queue))
		w.logger.Warn("task attempt failed, retry scheduled",
			zap.String("task_id", task.ID),
			zap.Int("attempt", task.Attempt),
			zap.Int("max_attempts", task.MaxAttempts),
			zap.Error(cause),
		)
		return
	}

	metrics.ObserveTask(string(task.Queue), "failed", w.clock.Now().Sub(started))
	w.logger.Error("task failed terminally",
		zap.String("task_id", task.ID),
		zap.String("url", task.Payload.URL),
		zap.Int("attempt", task.Attempt),
		zap.Error(cause),
	)
}

// Pool runs a fixed number of workers per analyzer queue and waits for them
// on shutdown.
type Pool struct {
	workers     []*Worker
	concurrency int
	wg          sync.WaitGroup
}

// NewPool groups workers under a shared concurrency setting.
func NewPool(workers []*Worker, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{workers: workers, concurrency: concurrency}
}

// Start launches concurrency goroutines for each worker. It returns
// immediately; Wait blocks until all loops exit.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		for i := 0; i < p.concurrency; i++ {
			p.wg.Add(1)
			go func(w *Worker) {
				defer p.wg.Done()
				w.Run(ctx)
			}(w)
		}
	}
}

// Wait blocks until every worker loop has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
