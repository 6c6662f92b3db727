package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestProgressStore(t *testing.T, ttl time.Duration) (*ProgressStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewProgressStore(client, ttl), mr
}

func TestProgressStoreRoundTrip(t *testing.T) {
	store, _ := newTestProgressStore(t, time.Hour)
	ctx := context.Background()

	in := Progress{
		BatchID:   testBatchID,
		Status:    "running",
		TotalRows: 500,
		Processed: 150,
		Created:   40,
		Updated:   100,
		Errored:   10,
		RowErrors: []RowError{{Row: 7, Message: "no usable identity fields"}},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Write(ctx, in))

	out, err := store.Get(ctx, testBatchID)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestProgressStoreOverwrites(t *testing.T) {
	store, _ := newTestProgressStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, Progress{BatchID: testBatchID, Status: "queued"}))
	require.NoError(t, store.Write(ctx, Progress{BatchID: testBatchID, Status: "completed", Processed: 9}))

	out, err := store.Get(ctx, testBatchID)
	require.NoError(t, err)
	require.Equal(t, "completed", out.Status)
	require.Equal(t, 9, out.Processed)
}

func TestProgressStoreMissingBatch(t *testing.T) {
	store, _ := newTestProgressStore(t, time.Hour)

	_, err := store.Get(context.Background(), testBatchID)
	require.True(t, errors.Is(err, ErrProgressNotFound))
}

func TestProgressStoreExpires(t *testing.T) {
	store, mr := newTestProgressStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, Progress{BatchID: testBatchID, Status: "completed"}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, testBatchID)
	require.True(t, errors.Is(err, ErrProgressNotFound))
}
