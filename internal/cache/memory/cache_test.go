package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audithq/site-auditor/internal/audit"
)

func TestCache_SetGet(t *testing.T) {
	t.Parallel()

	c := New()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestCache_GetMissing(t *testing.T) {
	t.Parallel()

	c := New()
	defer c.Close()

	_, err := c.Get(context.Background(), "absent")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestCache_EntryExpires(t *testing.T) {
	t.Parallel()

	c := New()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestCache_ValueIsCopied(t *testing.T) {
	t.Parallel()

	c := New()
	defer c.Close()
	ctx := context.Background()

	original := []byte("immutable")
	require.NoError(t, c.Set(ctx, "k", original, time.Minute))
	original[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("immutable"), got)

	got[0] = 'Y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("immutable"), again)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New()
	c.Close()
	c.Close()
}
