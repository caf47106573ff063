// Package memory provides the single-node task queue implementation.
package memory

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/audithq/site-auditor/internal/audit"
)

// Config controls retry and retention behavior for one queue.
type Config struct {
	// Attempts is the default maximum delivery count per task.
	Attempts int
	// BackoffBase is the first retry delay; each subsequent retry doubles it.
	BackoffBase time.Duration
	// RemoveOnComplete bounds how many completed tasks stay queryable.
	RemoveOnComplete int
	// RemoveOnFail bounds how many terminally failed tasks stay queryable.
	RemoveOnFail int
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.RemoveOnComplete <= 0 {
		c.RemoveOnComplete = 10
	}
	if c.RemoveOnFail <= 0 {
		c.RemoveOnFail = 5
	}
	return c
}

// pendingItem orders ready tasks by priority, then arrival.
type pendingItem struct {
	id       string
	priority int
	seq      uint64
}

type pendingHeap []pendingItem

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pendingItem)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is one in-memory analyzer queue with delayed delivery, priority
// ordering, bounded retries with exponential backoff, and bounded terminal
// retention.
type Queue struct {
	name  audit.AnalyzerType
	cfg   Config
	clock audit.Clock

	mu        sync.Mutex
	tasks     map[string]*audit.Task
	backoffs  map[string]time.Duration
	pending   pendingHeap
	timers    map[string]*time.Timer
	completed []string
	failed    []string
	seq       uint64
	closed    bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue constructs a queue for one analyzer type.
func NewQueue(name audit.AnalyzerType, cfg Config, clock audit.Clock) *Queue {
	return &Queue{
		name:     name,
		cfg:      cfg.withDefaults(),
		clock:    clock,
		tasks:    make(map[string]*audit.Task),
		backoffs: make(map[string]time.Duration),
		timers:   make(map[string]*time.Timer),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue registers a task under id. A duplicate id whose task is still
// waiting or active is a no-op; a terminal duplicate is replaced.
func (q *Queue) Enqueue(_ context.Context, id string, payload audit.TaskPayload, opts audit.TaskOptions) error {
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue closed")
	}

	if existing, ok := q.tasks[id]; ok && !existing.State.Terminal() {
		return nil
	}
	q.dropTerminal(id)

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = q.cfg.Attempts
	}

	task := &audit.Task{
		ID:          id,
		Queue:       q.name,
		State:       audit.TaskWaiting,
		MaxAttempts: attempts,
		Payload:     payload,
		EnqueuedAt:  q.clock.Now(),
	}
	q.tasks[id] = task
	if opts.BackoffBase > 0 {
		q.backoffs[id] = opts.BackoffBase
	}

	if opts.Delay > 0 {
		q.scheduleLocked(id, opts.Priority, opts.Delay)
		return nil
	}
	q.pushReadyLocked(id, opts.Priority)
	return nil
}

// scheduleLocked arms a timer that moves the task to the ready heap once its
// delay elapses. Caller holds q.mu.
func (q *Queue) scheduleLocked(id string, priority int, delay time.Duration) {
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.timers, id)
		if q.closed {
			return
		}
		if t, ok := q.tasks[id]; ok && t.State == audit.TaskWaiting {
			q.pushReadyLocked(id, priority)
		}
	})
}

func (q *Queue) pushReadyLocked(id string, priority int) {
	q.seq++
	heap.Push(&q.pending, pendingItem{id: id, priority: priority, seq: q.seq})
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue blocks for the next ready task, transitions it to active, and
// increments its attempt counter.
func (q *Queue) Dequeue(ctx context.Context) (audit.Task, error) {
	for {
		q.mu.Lock()
		for q.pending.Len() > 0 {
			item := heap.Pop(&q.pending).(pendingItem)
			task, ok := q.tasks[item.id]
			if !ok || task.State != audit.TaskWaiting {
				continue
			}
			task.State = audit.TaskActive
			task.Attempt++
			snapshot := *task
			q.mu.Unlock()
			return snapshot, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return audit.Task{}, errors.New("queue closed")
		}

		select {
		case <-ctx.Done():
			return audit.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.done:
			return audit.Task{}, errors.New("queue closed")
		case <-q.wake:
		}
	}
}

// SetProgress records a checkpoint for an active task. Values are clamped
// to [0,100].
func (q *Queue) SetProgress(_ context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return audit.ErrNotFound
	}
	if task.State != audit.TaskActive {
		return fmt.Errorf("task %s is %s, not active", id, task.State)
	}
	task.Progress = progress
	return nil
}

// Complete finishes a task successfully and trims completed retention.
func (q *Queue) Complete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return audit.ErrNotFound
	}
	if task.State.Terminal() {
		return fmt.Errorf("task %s already %s", id, task.State)
	}
	now := q.clock.Now()
	task.State = audit.TaskCompleted
	task.Progress = 100
	task.FailureReason = ""
	task.FinishedAt = &now

	q.completed = append(q.completed, id)
	q.trimLocked(&q.completed, q.cfg.RemoveOnComplete)
	return nil
}

// Fail records a failed attempt. Progress resets to zero either way. With
// attempts remaining the task is rescheduled after BackoffBase doubled per
// prior retry; otherwise it fails terminally and failed retention is
// trimmed. The resulting state tells the caller which happened.
func (q *Queue) Fail(_ context.Context, id string, reason string) (audit.TaskState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return "", audit.ErrNotFound
	}
	if task.State.Terminal() {
		return task.State, fmt.Errorf("task %s already %s", id, task.State)
	}

	task.Progress = 0
	task.FailureReason = reason

	if task.Attempt < task.MaxAttempts {
		task.State = audit.TaskWaiting
		if q.closed {
			return audit.TaskWaiting, nil
		}
		base := q.cfg.BackoffBase
		if override, ok := q.backoffs[id]; ok {
			base = override
		}
		q.scheduleLocked(id, 0, base<<(task.Attempt-1))
		return audit.TaskWaiting, nil
	}

	now := q.clock.Now()
	task.State = audit.TaskFailed
	task.FinishedAt = &now
	q.failed = append(q.failed, id)
	q.trimLocked(&q.failed, q.cfg.RemoveOnFail)
	return audit.TaskFailed, nil
}

// Task returns a snapshot of the task state.
func (q *Queue) Task(_ context.Context, id string) (audit.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return audit.Task{}, audit.ErrNotFound
	}
	return *task, nil
}

// Close stops timers and unblocks consumers. Tasks already terminal stay
// queryable until the process exits.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	close(q.done)
}

// trimLocked evicts the oldest terminal tasks past the retention limit.
// Caller holds q.mu.
func (q *Queue) trimLocked(order *[]string, limit int) {
	for len(*order) > limit {
		oldest := (*order)[0]
		*order = (*order)[1:]
		delete(q.tasks, oldest)
		delete(q.backoffs, oldest)
	}
}

// dropTerminal removes a terminal task's retention entry before its ID is
// reused. Caller holds q.mu.
func (q *Queue) dropTerminal(id string) {
	task, ok := q.tasks[id]
	if !ok || !task.State.Terminal() {
		return
	}
	delete(q.tasks, id)
	delete(q.backoffs, id)
	q.completed = removeID(q.completed, id)
	q.failed = removeID(q.failed, id)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
