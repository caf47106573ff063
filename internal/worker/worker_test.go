package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audithq/site-auditor/internal/audit"
	memorycache "github.com/audithq/site-auditor/internal/cache/memory"
	"github.com/audithq/site-auditor/internal/clock/system"
	"github.com/audithq/site-auditor/internal/metrics"
	memoryqueue "github.com/audithq/site-auditor/internal/queue/memory"
	memorystore "github.com/audithq/site-auditor/internal/store/memory"
)

type stubFetcher struct {
	page audit.Page
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (audit.Page, error) {
	if f.err != nil {
		return audit.Page{}, f.err
	}
	return f.page, nil
}

// stubEngine fails the first failUntil calls, then returns a fixed result.
type stubEngine struct {
	typ       audit.AnalyzerType
	result    json.RawMessage
	failUntil int
	calls     int
}

func (e *stubEngine) Type() audit.AnalyzerType { return e.typ }

func (e *stubEngine) Analyze(_ context.Context, _ audit.Page) (json.RawMessage, error) {
	e.calls++
	if e.calls <= e.failUntil {
		return nil, errors.New("analyzer exploded")
	}
	return e.result, nil
}

type workerFixture struct {
	queue  *memoryqueue.Queue
	engine *stubEngine
	cache  *memorycache.Cache
	store  *memorystore.RecordStore
	worker *Worker
}

func newWorkerFixture(t *testing.T, engine *stubEngine, fetcher audit.Fetcher) *workerFixture {
	t.Helper()
	metrics.Init()

	clock := system.New()
	q := memoryqueue.NewQueue(engine.typ, memoryqueue.Config{Attempts: 3, BackoffBase: time.Millisecond}, clock)
	t.Cleanup(q.Close)
	cache := memorycache.New()
	t.Cleanup(cache.Close)
	store := memorystore.NewRecordStore(clock)

	w := New(q, engine, fetcher, cache, store, clock, Config{CacheTTL: time.Minute}, zap.NewNop())
	return &workerFixture{queue: q, engine: engine, cache: cache, store: store, worker: w}
}

func enqueueTask(t *testing.T, fx *workerFixture, sessionID string) string {
	t.Helper()
	id := audit.TaskID(fx.engine.typ, sessionID)
	payload := audit.TaskPayload{URL: "https://example.com", UserID: "user-1", Type: fx.engine.typ}
	require.NoError(t, fx.queue.Enqueue(context.Background(), id, payload, audit.TaskOptions{}))
	return id
}

func TestWorker_ProcessTask_SuccessFlow(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{typ: audit.AnalyzerStructural, result: json.RawMessage(`{"score":90}`)}
	fetcher := &stubFetcher{page: audit.Page{URL: "https://example.com", Body: []byte("<html></html>")}}
	fx := newWorkerFixture(t, engine, fetcher)
	ctx := context.Background()

	taskID := enqueueTask(t, fx, "sess-1")
	task, err := fx.queue.Dequeue(ctx)
	require.NoError(t, err)
	fx.worker.processTask(ctx, task)

	final, err := fx.queue.Task(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, audit.TaskCompleted, final.State)
	require.Equal(t, 100, final.Progress)

	record, err := fx.store.Get(ctx, "user-1", "https://example.com")
	require.NoError(t, err)
	require.JSONEq(t, `{"score":90}`, string(record.Structural))
	require.Nil(t, record.Content)
	require.Nil(t, record.Technical)
	require.Equal(t, "SEO analysis - https://example.com", record.Title)

	raw, err := fx.cache.Get(ctx, ResultCacheKey(taskID))
	require.NoError(t, err)
	var envelope ResultEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.Equal(t, "user-1", envelope.UserID)
	require.Equal(t, audit.AnalyzerStructural, envelope.Type)
	require.JSONEq(t, `{"score":90}`, string(envelope.Result))
}

func TestWorker_ProcessTask_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{typ: audit.AnalyzerContent, result: json.RawMessage(`{"score":75}`), failUntil: 2}
	fetcher := &stubFetcher{page: audit.Page{URL: "https://example.com", Body: []byte("<html></html>")}}
	fx := newWorkerFixture(t, engine, fetcher)
	taskID := enqueueTask(t, fx, "sess-2")

	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		task, err := fx.queue.Dequeue(ctx)
		cancel()
		require.NoError(t, err)
		require.Equal(t, attempt, task.Attempt)
		fx.worker.processTask(context.Background(), task)
	}

	final, err := fx.queue.Task(context.Background(), taskID)
	require.NoError(t, err)
	require.Equal(t, audit.TaskCompleted, final.State)
	require.Equal(t, 3, final.Attempt)

	record, err := fx.store.Get(context.Background(), "user-1", "https://example.com")
	require.NoError(t, err)
	require.JSONEq(t, `{"score":75}`, string(record.Content))
}

func TestWorker_ProcessTask_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{typ: audit.AnalyzerTechnical, failUntil: 10}
	fetcher := &stubFetcher{page: audit.Page{URL: "https://example.com", Body: []byte("<html></html>")}}
	fx := newWorkerFixture(t, engine, fetcher)
	taskID := enqueueTask(t, fx, "sess-3")

	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		task, err := fx.queue.Dequeue(ctx)
		cancel()
		require.NoError(t, err)
		fx.worker.processTask(context.Background(), task)
	}

	final, err := fx.queue.Task(context.Background(), taskID)
	require.NoError(t, err)
	require.Equal(t, audit.TaskFailed, final.State)
	require.Equal(t, 0, final.Progress)
	require.Contains(t, final.FailureReason, "analyzer exploded")

	_, err = fx.store.Get(context.Background(), "user-1", "https://example.com")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestWorker_ProcessTask_FetchFailureRetries(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{typ: audit.AnalyzerStructural, result: json.RawMessage(`{}`)}
	fetcher := &stubFetcher{err: &audit.FetchError{URL: "https://example.com", Err: errors.New("refused")}}
	fx := newWorkerFixture(t, engine, fetcher)
	taskID := enqueueTask(t, fx, "sess-4")

	ctx := context.Background()
	task, err := fx.queue.Dequeue(ctx)
	require.NoError(t, err)
	fx.worker.processTask(ctx, task)

	// First failure reschedules rather than terminally failing.
	after, err := fx.queue.Task(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, audit.TaskWaiting, after.State)
	require.Equal(t, 0, after.Progress)
	require.Equal(t, 0, engine.calls, "engine must not run when fetch fails")
}

func TestPool_StartAndDrain(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{typ: audit.AnalyzerStructural, result: json.RawMessage(`{"score":100}`)}
	fetcher := &stubFetcher{page: audit.Page{URL: "https://example.com", Body: []byte("<html></html>")}}
	fx := newWorkerFixture(t, engine, fetcher)
	taskID := enqueueTask(t, fx, "sess-5")

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool([]*Worker{fx.worker}, 2)
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		task, err := fx.queue.Task(context.Background(), taskID)
		return err == nil && task.State == audit.TaskCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	fx.queue.Close()
	pool.Wait()
}

// failingStore rejects every upsert so the persistence retry path can be
// exercised in isolation.
type failingStore struct{}

func (s *failingStore) UpsertResult(context.Context, string, string, audit.AnalyzerType, string, json.RawMessage) error {
	return errors.New("connection reset")
}

func (s *failingStore) Get(context.Context, string, string) (audit.Record, error) {
	return audit.Record{}, audit.ErrNotFound
}

func TestWorker_ProcessTask_PersistFailureRetries(t *testing.T) {
	t.Parallel()
	metrics.Init()

	engine := &stubEngine{typ: audit.AnalyzerTechnical, result: json.RawMessage(`{"score":60}`)}
	fetcher := &stubFetcher{page: audit.Page{URL: "https://example.com", Body: []byte("<html></html>")}}
	clock := system.New()
	q := memoryqueue.NewQueue(engine.typ, memoryqueue.Config{Attempts: 3, BackoffBase: time.Millisecond}, clock)
	t.Cleanup(q.Close)
	cache := memorycache.New()
	t.Cleanup(cache.Close)

	w := New(q, engine, fetcher, cache, &failingStore{}, clock, Config{CacheTTL: time.Minute}, zap.NewNop())

	ctx := context.Background()
	taskID := audit.TaskID(engine.typ, "sess-6")
	payload := audit.TaskPayload{URL: "https://example.com", UserID: "user-1", Type: engine.typ}
	require.NoError(t, q.Enqueue(ctx, taskID, payload, audit.TaskOptions{}))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	w.processTask(ctx, task)

	after, err := q.Task(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, audit.TaskWaiting, after.State)
	require.Equal(t, 0, after.Progress)
	require.Contains(t, after.FailureReason, "connection reset")

	// The cached envelope survives even though the record write failed.
	_, err = cache.Get(ctx, ResultCacheKey(taskID))
	require.NoError(t, err)
}

// failingCache rejects every write so cache outages can be simulated.
type failingCache struct{}

func (c *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache unavailable")
}

func (c *failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, audit.ErrNotFound
}

func TestWorker_ProcessTask_CacheFailureRetries(t *testing.T) {
	t.Parallel()
	metrics.Init()

	engine := &stubEngine{typ: audit.AnalyzerStructural, result: json.RawMessage(`{"score":80}`)}
	fetcher := &stubFetcher{page: audit.Page{URL: "https://example.com", Body: []byte("<html></html>")}}
	clock := system.New()
	q := memoryqueue.NewQueue(engine.typ, memoryqueue.Config{Attempts: 3, BackoffBase: time.Millisecond}, clock)
	t.Cleanup(q.Close)
	store := memorystore.NewRecordStore(clock)

	w := New(q, engine, fetcher, &failingCache{}, store, clock, Config{CacheTTL: time.Minute}, zap.NewNop())

	ctx := context.Background()
	taskID := audit.TaskID(engine.typ, "sess-7")
	payload := audit.TaskPayload{URL: "https://example.com", UserID: "user-1", Type: engine.typ}
	require.NoError(t, q.Enqueue(ctx, taskID, payload, audit.TaskOptions{}))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	w.processTask(ctx, task)

	after, err := q.Task(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, audit.TaskWaiting, after.State)
	require.Equal(t, 0, after.Progress)
	require.Contains(t, after.FailureReason, "cache unavailable")

	// The record write never ran; the whole task reruns on retry.
	_, err = store.Get(ctx, "user-1", "https://example.com")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

// startCheckFetcher records the task's progress at fetch time.
type startCheckFetcher struct {
	q        *memoryqueue.Queue
	taskID   string
	progress int
}

func (f *startCheckFetcher) Fetch(ctx context.Context, url string) (audit.Page, error) {
	if task, err := f.q.Task(ctx, f.taskID); err == nil {
		f.progress = task.Progress
	}
	return audit.Page{URL: url, Body: []byte("<html></html>")}, nil
}

func TestWorker_ProcessTask_MarksStartBeforeFetch(t *testing.T) {
	t.Parallel()
	metrics.Init()

	engine := &stubEngine{typ: audit.AnalyzerContent, result: json.RawMessage(`{"score":50}`)}
	clock := system.New()
	q := memoryqueue.NewQueue(engine.typ, memoryqueue.Config{}, clock)
	t.Cleanup(q.Close)
	cache := memorycache.New()
	t.Cleanup(cache.Close)
	store := memorystore.NewRecordStore(clock)

	ctx := context.Background()
	taskID := audit.TaskID(engine.typ, "sess-8")
	payload := audit.TaskPayload{URL: "https://example.com", UserID: "user-1", Type: engine.typ}
	require.NoError(t, q.Enqueue(ctx, taskID, payload, audit.TaskOptions{}))

	fetcher := &startCheckFetcher{q: q, taskID: taskID}
	w := New(q, engine, fetcher, cache, store, clock, Config{}, zap.NewNop())

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	w.processTask(ctx, task)

	require.Equal(t, 10, fetcher.progress, "start checkpoint precedes the page fetch")
}
