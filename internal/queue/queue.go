// Package queue defines the task queue contract the analysis pipeline runs
// on. This abstraction keeps the application independent of a specific
// backing implementation (in-memory for a single node, or a broker later).
package queue

import (
	"context"
	"strings"

	"github.com/audithq/site-auditor/internal/audit"
)

// Queue is one named task queue. Each analyzer type owns exactly one queue;
// task IDs are unique within it.
type Queue interface {
	// Enqueue registers a task. Enqueueing an ID that is already waiting or
	// active is a no-op, which makes session fan-out idempotent. A terminal
	// task with the same ID is replaced.
	Enqueue(ctx context.Context, id string, payload audit.TaskPayload, opts audit.TaskOptions) error

	// Dequeue blocks until a task is ready (its delay elapsed), marks it
	// active, and returns a snapshot of it.
	Dequeue(ctx context.Context) (audit.Task, error)

	// SetProgress records a progress checkpoint for an active task.
	SetProgress(ctx context.Context, id string, progress int) error

	// Complete transitions an active task to completed with progress 100.
	Complete(ctx context.Context, id string) error

	// Fail records a failed attempt. If attempts remain the task is
	// rescheduled with exponential backoff and the returned state is
	// waiting; otherwise the task is terminally failed.
	Fail(ctx context.Context, id string, reason string) (audit.TaskState, error)

	// Task returns a snapshot of the task, or ErrNotFound if it never
	// existed or has aged out of the retention window.
	Task(ctx context.Context, id string) (audit.Task, error)

	// Close releases pending timers and unblocks consumers.
	Close()
}

// Set routes operations to per-analyzer queues. It satisfies
// audit.TaskReader by deriving the owning queue from the task ID prefix.
type Set struct {
	queues map[audit.AnalyzerType]Queue
}

// NewSet builds a Set over the given queues.
func NewSet(queues map[audit.AnalyzerType]Queue) *Set {
	return &Set{queues: queues}
}

// Queue returns the queue owning the given analyzer type.
func (s *Set) Queue(t audit.AnalyzerType) (Queue, bool) {
	q, ok := s.queues[t]
	return q, ok
}

// Enqueue routes the payload to its analyzer's queue under the
// deterministic task ID for the session.
func (s *Set) Enqueue(ctx context.Context, t audit.AnalyzerType, sessionID string, payload audit.TaskPayload, opts audit.TaskOptions) error {
	q, ok := s.queues[t]
	if !ok {
		return audit.ErrNotFound
	}
	return q.Enqueue(ctx, audit.TaskID(t, sessionID), payload, opts)
}

// Task resolves a task by its full ID. The analyzer prefix selects the
// queue.
func (s *Set) Task(ctx context.Context, id string) (audit.Task, error) {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return audit.Task{}, audit.ErrNotFound
	}
	q, ok := s.queues[audit.AnalyzerType(prefix)]
	if !ok {
		return audit.Task{}, audit.ErrNotFound
	}
	return q.Task(ctx, id)
}

// Close closes every queue in the set.
func (s *Set) Close() {
	for _, q := range s.queues {
		q.Close()
	}
}
