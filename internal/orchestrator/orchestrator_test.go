package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/audithq/site-auditor/internal/audit"
	"github.com/audithq/site-auditor/internal/clock/system"
	"github.com/audithq/site-auditor/internal/id/uuid"
	"github.com/audithq/site-auditor/internal/metrics"
	"github.com/audithq/site-auditor/internal/queue"
	memoryqueue "github.com/audithq/site-auditor/internal/queue/memory"
)

func newOrchestrator(t *testing.T) (*Orchestrator, *queue.Set) {
	t.Helper()
	metrics.Init()

	clock := system.New()
	queues := make(map[audit.AnalyzerType]queue.Queue)
	for _, at := range audit.AnalyzerTypes() {
		queues[at] = memoryqueue.NewQueue(at, memoryqueue.Config{}, clock)
	}
	set := queue.NewSet(queues)
	t.Cleanup(set.Close)

	return New(set, uuid.New(), clock, Config{}, zap.NewNop()), set
}

func TestOrchestrator_StartSession_FansOutThreeTasks(t *testing.T) {
	t.Parallel()

	orch, set := newOrchestrator(t)
	ctx := context.Background()

	session, err := orch.StartSession(ctx, "user-1", "https://Example.com/page#top", Options{IncludeImages: true})
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)
	require.Equal(t, "/v1/analyses/"+session.SessionID+"/progress", session.TrackingPath)
	require.Len(t, session.TaskIDs, 3)

	for _, at := range audit.AnalyzerTypes() {
		taskID := session.TaskIDs[at]
		require.Equal(t, audit.TaskID(at, session.SessionID), taskID)

		task, err := set.Task(ctx, taskID)
		require.NoError(t, err)
		require.Equal(t, at, task.Queue)
		require.Equal(t, audit.TaskWaiting, task.State)
		require.Equal(t, "user-1", task.Payload.UserID)
		require.Equal(t, "https://example.com/page", task.Payload.URL, "URL is normalized before fan-out")
		require.True(t, task.Payload.IncludeImgs)
	}
}

func TestOrchestrator_StartSession_UniqueSessionIDs(t *testing.T) {
	t.Parallel()

	orch, _ := newOrchestrator(t)
	ctx := context.Background()

	first, err := orch.StartSession(ctx, "user-1", "https://example.com", Options{})
	require.NoError(t, err)
	second, err := orch.StartSession(ctx, "user-1", "https://example.com", Options{})
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)
}

func TestOrchestrator_StartSession_RejectsBadInput(t *testing.T) {
	t.Parallel()

	orch, _ := newOrchestrator(t)
	ctx := context.Background()

	_, err := orch.StartSession(ctx, "user-1", "ftp://example.com", Options{})
	require.ErrorIs(t, err, audit.ErrInvalidURL)

	_, err = orch.StartSession(ctx, "", "https://example.com", Options{})
	require.Error(t, err)
}

func TestOrchestrator_StartTask_SingleAnalyzer(t *testing.T) {
	t.Parallel()

	orch, set := newOrchestrator(t)
	ctx := context.Background()

	taskID, err := orch.StartTask(ctx, "user-1", "https://example.com", audit.AnalyzerTechnical, Options{})
	require.NoError(t, err)

	task, err := set.Task(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, audit.AnalyzerTechnical, task.Queue)

	// The sibling analyzers were not enqueued.
	for _, at := range []audit.AnalyzerType{audit.AnalyzerStructural, audit.AnalyzerContent} {
		q, ok := set.Queue(at)
		require.True(t, ok)
		_, err := q.Task(ctx, audit.TaskID(at, task.ID))
		require.ErrorIs(t, err, audit.ErrNotFound)
	}
}

func TestOrchestrator_StartTask_RejectsUnknownAnalyzer(t *testing.T) {
	t.Parallel()

	orch, _ := newOrchestrator(t)
	_, err := orch.StartTask(context.Background(), "user-1", "https://example.com", "semantic", Options{})
	require.Error(t, err)
}
