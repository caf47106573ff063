package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audithq/site-auditor/internal/audit"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	const body = "<html><head><title>ok</title></head><body>hello</body></html>"
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "site-auditor-bot/1.0", Timeout: 5 * time.Second})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, body, string(page.Body))
	require.Equal(t, srv.URL, page.URL)
	require.Greater(t, page.Duration, time.Duration(0))
	require.Equal(t, "site-auditor-bot/1.0", gotAgent)
}

func TestFetcher_FetchNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	var fetchErr *audit.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, srv.URL+"/missing", fetchErr.URL)
}

func TestFetcher_FetchUnreachable(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nothing")
	require.Error(t, err)
	var fetchErr *audit.FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestFetcher_ContextDeadlineBoundsTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("slow"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 30 * time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}
