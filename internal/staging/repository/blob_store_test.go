package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	apperrors "github.com/allisson/qbdrelay/internal/errors"
)

func newTestStore(t *testing.T) *BlobStore {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() {
		_ = bucket.Close()
	})
	return NewBlobStore(bucket)
}

func TestBlobStoreWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	key, err := store.Write(ctx, "conn-1/primary_pending/orders_ORD-1_.json", []byte(`[{"id":"ORD-1"}]`))
	require.NoError(t, err)
	assert.Equal(t, "conn-1/primary_pending/orders_ORD-1_.json", key)

	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"ORD-1"}]`, string(data))
}

func TestBlobStoreWriteCollisionSuffix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Write(ctx, "conn-1/primary_pending/orders_ORD-1_.json", []byte(`[{"id":"ORD-1"}]`))
	require.NoError(t, err)

	second, err := store.Write(ctx, "conn-1/primary_pending/orders_ORD-1_.json", []byte(`[{"id":"ORD-1","retry":true}]`))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "conn-1/primary_pending/orders_ORD-1_(1).json", second)

	third, err := store.Write(ctx, "conn-1/primary_pending/orders_ORD-1_.json", []byte(`[{"id":"ORD-1"}]`))
	require.NoError(t, err)
	assert.Equal(t, "conn-1/primary_pending/orders_ORD-1_(2).json", third)
}

func TestBlobStoreList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Write(ctx, "conn-1/primary_pending/orders_ORD-1_.json", []byte(`[]`))
	require.NoError(t, err)
	_, err = store.Write(ctx, "conn-1/primary_pending/customers_jo@example.com_.json", []byte(`[]`))
	require.NoError(t, err)
	_, err = store.Write(ctx, "conn-1/primary_ready/orders_ORD-2_.json", []byte(`[]`))
	require.NoError(t, err)

	keys, err := store.List(ctx, "conn-1/primary_pending/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	keys, err = store.List(ctx, "conn-1/primary_pending/orders_")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-1/primary_pending/orders_ORD-1_.json"}, keys)

	keys, err = store.List(ctx, "conn-2/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBlobStoreReadNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Read(ctx, "conn-1/primary_pending/orders_missing_.json")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBlobStoreMove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	from := "conn-1/primary_pending/orders_ORD-1_.json"
	to := "conn-1/primary_ready/orders_ORD-1_.json"

	_, err := store.Write(ctx, from, []byte(`[{"id":"ORD-1"}]`))
	require.NoError(t, err)

	moved, err := store.Move(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, to, moved)

	_, err = store.Read(ctx, from)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	data, err := store.Read(ctx, to)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"ORD-1"}]`, string(data))
}

func TestBlobStoreMoveMissingSource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Move(ctx, "conn-1/primary_pending/orders_missing_.json", "conn-1/primary_ready/orders_missing_.json")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBlobStoreMoveCollision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	from := "conn-1/primary_pending/orders_ORD-1_.json"
	to := "conn-1/primary_ready/orders_ORD-1_.json"

	_, err := store.Write(ctx, from, []byte(`[{"id":"ORD-1"}]`))
	require.NoError(t, err)
	_, err = store.Write(ctx, to, []byte(`[{"id":"ORD-1","older":true}]`))
	require.NoError(t, err)

	moved, err := store.Move(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, "conn-1/primary_ready/orders_ORD-1_(1).json", moved)
}

func TestBlobStoreCopyAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	from := "conn-1/primary_ready/orders_ORD-1_.json"
	to := "conn-1/primary_ready/notification_processed_orders_ORD-1_.json"

	_, err := store.Write(ctx, from, []byte(`[{"id":"ORD-1"}]`))
	require.NoError(t, err)

	copied, err := store.Copy(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, to, copied)

	// Source still present after a copy.
	_, err = store.Read(ctx, from)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, from))
	_, err = store.Read(ctx, from)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = store.Delete(ctx, from)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
