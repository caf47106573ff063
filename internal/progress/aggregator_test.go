package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/audithq/site-auditor/internal/audit"
)

type fakeTaskReader struct {
	tasks map[string]audit.Task
}

func (f *fakeTaskReader) Task(_ context.Context, id string) (audit.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return audit.Task{}, audit.ErrNotFound
	}
	return task, nil
}

func readerWith(sessionID string, states map[audit.AnalyzerType]audit.Task) *fakeTaskReader {
	tasks := make(map[string]audit.Task, len(states))
	for at, task := range states {
		tasks[audit.TaskID(at, sessionID)] = task
	}
	return &fakeTaskReader{tasks: tasks}
}

func mustJob(t *testing.T, view SessionProgress, typ audit.AnalyzerType) TaskProgress {
	t.Helper()
	job, ok := view.Job(typ)
	require.True(t, ok, "missing job for %s", typ)
	return job
}

func TestAggregator_Session_MixedProgress(t *testing.T) {
	t.Parallel()

	reader := readerWith("sess-1", map[audit.AnalyzerType]audit.Task{
		audit.AnalyzerStructural: {State: audit.TaskCompleted, Progress: 100, Attempt: 1, Payload: audit.TaskPayload{UserID: "user-1"}},
		audit.AnalyzerContent:    {State: audit.TaskActive, Progress: 50, Attempt: 1, Payload: audit.TaskPayload{UserID: "user-1"}},
		audit.AnalyzerTechnical:  {State: audit.TaskWaiting, Progress: 0, Payload: audit.TaskPayload{UserID: "user-1"}},
	})

	view, err := New(reader).Session(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 50, view.OverallProgress)
	require.Equal(t, StatusProcessing, view.Status)
	require.False(t, view.IsReady)
	require.Equal(t, "user-1", view.UserID)
	require.Len(t, view.Jobs, 3)
	require.Equal(t, StatusCompleted, mustJob(t, view, audit.AnalyzerStructural).Status)
	require.Equal(t, StatusProcessing, mustJob(t, view, audit.AnalyzerContent).Status)
	require.Equal(t, StatusWaiting, mustJob(t, view, audit.AnalyzerTechnical).Status)
	require.Equal(t, audit.TaskID(audit.AnalyzerContent, "sess-1"), mustJob(t, view, audit.AnalyzerContent).ID)
}

func TestAggregator_Session_AllCompleted(t *testing.T) {
	t.Parallel()

	reader := readerWith("sess-2", map[audit.AnalyzerType]audit.Task{
		audit.AnalyzerStructural: {State: audit.TaskCompleted, Progress: 100},
		audit.AnalyzerContent:    {State: audit.TaskCompleted, Progress: 100},
		audit.AnalyzerTechnical:  {State: audit.TaskCompleted, Progress: 100},
	})

	view, err := New(reader).Session(context.Background(), "sess-2")
	require.NoError(t, err)
	require.Equal(t, 100, view.OverallProgress)
	require.Equal(t, StatusCompleted, view.Status)
	require.True(t, view.IsReady)
}

func TestAggregator_Session_TerminalWithFailure(t *testing.T) {
	t.Parallel()

	reader := readerWith("sess-3", map[audit.AnalyzerType]audit.Task{
		audit.AnalyzerStructural: {State: audit.TaskCompleted, Progress: 100},
		audit.AnalyzerContent:    {State: audit.TaskFailed, FailureReason: "fetch refused", Attempt: 3},
		audit.AnalyzerTechnical:  {State: audit.TaskCompleted, Progress: 100},
	})

	view, err := New(reader).Session(context.Background(), "sess-3")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, view.Status)
	require.False(t, view.IsReady)
	require.Equal(t, 67, view.OverallProgress, "200/3 rounds to 67")
	require.Equal(t, "fetch refused", mustJob(t, view, audit.AnalyzerContent).Error)
	require.Equal(t, 0, mustJob(t, view, audit.AnalyzerContent).Progress)
}

func TestAggregator_Session_UnknownSession(t *testing.T) {
	t.Parallel()

	view, err := New(&fakeTaskReader{}).Session(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, view.Status)
	require.Equal(t, 0, view.OverallProgress)
	require.Empty(t, view.UserID)
	for _, at := range audit.AnalyzerTypes() {
		require.Equal(t, StatusNotFound, mustJob(t, view, at).Status)
	}
}

func TestAggregator_Session_PartiallyAgedOut(t *testing.T) {
	t.Parallel()

	reader := readerWith("sess-4", map[audit.AnalyzerType]audit.Task{
		audit.AnalyzerStructural: {State: audit.TaskCompleted, Progress: 100},
	})

	view, err := New(reader).Session(context.Background(), "sess-4")
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, view.Status)
	require.Equal(t, 33, view.OverallProgress)
}
