package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/audithq/site-auditor/internal/audit"
)

func newMockStore(t *testing.T) (*RecordStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewRecordStoreWithPool(mock, "analysis_records")
	require.NoError(t, err)
	return store, mock
}

func TestNewRecordStoreWithPool_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStoreWithPool(nil, "analysis_records")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, `bad";drop table students;--`)
	require.Error(t, err)
}

func TestRecordStore_UpsertResult_BindsOnlyOwnColumn(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	result := json.RawMessage(`{"score":88}`)

	mock.ExpectExec(`(?s)INSERT INTO analysis_records.*ON CONFLICT \(user_id, url\) DO UPDATE SET`).
		WithArgs("u1", "https://example.com", "SEO analysis - https://example.com",
			[]byte(result), []byte(nil), []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertResult(context.Background(), "u1", "https://example.com",
		audit.AnalyzerStructural, "SEO analysis - https://example.com", result)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_UpsertResult_ContentColumn(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	result := json.RawMessage(`{"score":42}`)

	mock.ExpectExec(`INSERT INTO analysis_records`).
		WithArgs("u1", "https://example.com", "t", []byte(nil), []byte(result), []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertResult(context.Background(), "u1", "https://example.com",
		audit.AnalyzerContent, "t", result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_UpsertResult_RejectsUnknownAnalyzer(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	err := store.UpsertResult(context.Background(), "u1", "https://example.com", "semantic", "t", nil)
	require.Error(t, err)
}

func TestRecordStore_Get(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"user_id", "url", "title", "structural", "content", "technical", "created_at", "updated_at",
	}).AddRow("u1", "https://example.com", "t", []byte(`{"score":80}`), []byte(nil), []byte(nil), now, now)

	mock.ExpectQuery(`SELECT user_id, url, title, structural, content, technical, created_at, updated_at`).
		WithArgs("u1", "https://example.com").
		WillReturnRows(rows)

	rec, err := store.Get(context.Background(), "u1", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", rec.UserID)
	require.JSONEq(t, `{"score":80}`, string(rec.Structural))
	require.Nil(t, rec.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Get_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT user_id, url, title`).
		WithArgs("u1", "https://missing.example").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "u1", "https://missing.example")
	require.ErrorIs(t, err, audit.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
