package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/audithq/site-auditor/internal/audit"
	"github.com/audithq/site-auditor/internal/clock/system"
)

func TestRecordStore_PartialMerge(t *testing.T) {
	t.Parallel()

	store := NewRecordStore(system.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.com", audit.AnalyzerStructural,
		"SEO analysis - https://example.com", json.RawMessage(`{"score":80}`)))

	rec, err := store.Get(ctx, "u1", "https://example.com")
	require.NoError(t, err)
	require.JSONEq(t, `{"score":80}`, string(rec.Structural))
	require.Nil(t, rec.Content)
	require.Nil(t, rec.Technical)

	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.com", audit.AnalyzerContent,
		"SEO analysis - https://example.com", json.RawMessage(`{"score":70}`)))
	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.com", audit.AnalyzerTechnical,
		"SEO analysis - https://example.com", json.RawMessage(`{"score":60}`)))

	rec, err = store.Get(ctx, "u1", "https://example.com")
	require.NoError(t, err)
	require.JSONEq(t, `{"score":80}`, string(rec.Structural))
	require.JSONEq(t, `{"score":70}`, string(rec.Content))
	require.JSONEq(t, `{"score":60}`, string(rec.Technical))
	require.False(t, rec.UpdatedAt.Before(rec.CreatedAt))
}

func TestRecordStore_RepeatedUpsertOverwritesSameField(t *testing.T) {
	t.Parallel()

	store := NewRecordStore(system.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.com", audit.AnalyzerStructural,
		"t", json.RawMessage(`{"score":10}`)))
	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.com", audit.AnalyzerStructural,
		"t", json.RawMessage(`{"score":95}`)))

	rec, err := store.Get(ctx, "u1", "https://example.com")
	require.NoError(t, err)
	require.JSONEq(t, `{"score":95}`, string(rec.Structural))
}

func TestRecordStore_OneRecordPerUserAndURL(t *testing.T) {
	t.Parallel()

	store := NewRecordStore(system.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.com", audit.AnalyzerStructural, "t", json.RawMessage(`{}`)))
	require.NoError(t, store.UpsertResult(ctx, "u2", "https://example.com", audit.AnalyzerStructural, "t", json.RawMessage(`{}`)))
	require.NoError(t, store.UpsertResult(ctx, "u1", "https://example.org", audit.AnalyzerStructural, "t", json.RawMessage(`{}`)))

	for _, pair := range [][2]string{{"u1", "https://example.com"}, {"u2", "https://example.com"}, {"u1", "https://example.org"}} {
		_, err := store.Get(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}
}

func TestRecordStore_GetMissing(t *testing.T) {
	t.Parallel()

	store := NewRecordStore(system.New())
	_, err := store.Get(context.Background(), "u1", "https://nowhere.example")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestRecordStore_RejectsUnknownAnalyzer(t *testing.T) {
	t.Parallel()

	store := NewRecordStore(system.New())
	err := store.UpsertResult(context.Background(), "u1", "https://example.com", "semantic", "t", json.RawMessage(`{}`))
	require.Error(t, err)
}
