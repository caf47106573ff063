// Package progress aggregates per-task queue state into one session-level
// progress view.
package progress

import (
	"context"
	"errors"
	"math"

	"github.com/audithq/site-auditor/internal/audit"
)

// Status is the client-facing state of a task or session.
type Status string

// Task and session statuses.
const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNotFound   Status = "not_found"
)

// TaskProgress is one analyzer's contribution to a session.
type TaskProgress struct {
	ID       string             `json:"id"`
	Type     audit.AnalyzerType `json:"type"`
	Status   Status             `json:"status"`
	Progress int                `json:"progress"`
	Attempt  int                `json:"attempt,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// SessionProgress is the aggregate returned to polling clients. Overall
// progress is the rounded mean of the three task progress values; the
// session is completed only when every task is.
type SessionProgress struct {
	SessionID       string         `json:"sessionId"`
	UserID          string         `json:"userId,omitempty"`
	Status          Status         `json:"status"`
	OverallProgress int            `json:"overallProgress"`
	IsReady         bool           `json:"isReady"`
	Jobs            []TaskProgress `json:"jobs"`
}

// Job returns the entry for one analyzer type, or false when absent.
func (p SessionProgress) Job(typ audit.AnalyzerType) (TaskProgress, bool) {
	for _, job := range p.Jobs {
		if job.Type == typ {
			return job, true
		}
	}
	return TaskProgress{}, false
}

// Aggregator reads task state from the queue layer.
type Aggregator struct {
	tasks audit.TaskReader
}

// New constructs an Aggregator over any task reader.
func New(tasks audit.TaskReader) *Aggregator {
	return &Aggregator{tasks: tasks}
}

// Session assembles the progress view for one session ID. Tasks that have
// aged out of queue retention report not_found with zero progress; an
// entirely unknown session reports not_found overall.
func (a *Aggregator) Session(ctx context.Context, sessionID string) (SessionProgress, error) {
	analyzers := audit.AnalyzerTypes()
	out := SessionProgress{
		SessionID: sessionID,
		Jobs:      make([]TaskProgress, 0, len(analyzers)),
	}

	total := 0
	completed, failed, missing := 0, 0, 0
	for _, analyzerType := range analyzers {
		tp, owner := a.taskProgress(ctx, audit.TaskID(analyzerType, sessionID))
		tp.Type = analyzerType
		out.Jobs = append(out.Jobs, tp)
		if out.UserID == "" {
			out.UserID = owner
		}
		total += tp.Progress
		switch tp.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		case StatusNotFound:
			missing++
		}
	}

	out.OverallProgress = int(math.Round(float64(total) / float64(len(analyzers))))
	out.Status = overallStatus(len(analyzers), completed, failed, missing)
	out.IsReady = out.Status == StatusCompleted
	return out, nil
}

func (a *Aggregator) taskProgress(ctx context.Context, taskID string) (TaskProgress, string) {
	task, err := a.tasks.Task(ctx, taskID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return TaskProgress{ID: taskID, Status: StatusNotFound}, ""
		}
		return TaskProgress{ID: taskID, Status: StatusNotFound, Error: err.Error()}, ""
	}

	owner := task.Payload.UserID
	switch task.State {
	case audit.TaskCompleted:
		return TaskProgress{ID: taskID, Status: StatusCompleted, Progress: 100, Attempt: task.Attempt}, owner
	case audit.TaskFailed:
		return TaskProgress{ID: taskID, Status: StatusFailed, Attempt: task.Attempt, Error: task.FailureReason}, owner
	case audit.TaskActive:
		return TaskProgress{ID: taskID, Status: StatusProcessing, Progress: task.Progress, Attempt: task.Attempt}, owner
	default:
		return TaskProgress{ID: taskID, Status: StatusWaiting, Progress: task.Progress, Attempt: task.Attempt}, owner
	}
}

func overallStatus(n, completed, failed, missing int) Status {
	switch {
	case missing == n:
		return StatusNotFound
	case completed == n:
		return StatusCompleted
	case completed+failed+missing == n && failed > 0:
		return StatusFailed
	default:
		return StatusProcessing
	}
}
