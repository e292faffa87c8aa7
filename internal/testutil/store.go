// Package testutil provides testing utilities for staging store tests.
//
// Store Setup:
//
//	store := testutil.NewMemoryStore(t)
//
// or, to exercise the filesystem driver:
//
//	store := testutil.NewFileStore(t)
//
// Fixtures:
//
//	testutil.SeedRecord(t, store, "conn-1/primary_pending/orders_ORD-1_.json", payload)
//	keys := testutil.Keys(t, store, "conn-1/primary_pending/")
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	"github.com/allisson/qbdrelay/internal/staging/codec"
	"github.com/allisson/qbdrelay/internal/staging/repository"
)

// NewMemoryStore creates an in-memory object store, closed when the test ends.
func NewMemoryStore(t *testing.T) repository.ObjectStore {
	t.Helper()

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() {
		require.NoError(t, bucket.Close())
	})

	return repository.NewBlobStore(bucket)
}

// NewFileStore creates an object store over a temporary directory using the
// filesystem driver, closed when the test ends.
func NewFileStore(t *testing.T) repository.ObjectStore {
	t.Helper()

	bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
	require.NoError(t, err, "failed to open file bucket")
	t.Cleanup(func() {
		require.NoError(t, bucket.Close())
	})

	return repository.NewBlobStore(bucket)
}

// SeedRecord writes one encoded payload under the given key, bypassing the
// staging engine. Useful for placing records directly into a stage.
func SeedRecord(t *testing.T, store repository.ObjectStore, key string, payload map[string]any) {
	t.Helper()

	data, err := codec.EncodeOne(payload)
	require.NoError(t, err, "failed to encode seed payload")

	_, err = store.Write(context.Background(), key, data)
	require.NoError(t, err, "failed to seed record: "+key)
}

// Keys lists every key under the given prefix.
func Keys(t *testing.T, store repository.ObjectStore, prefix string) []string {
	t.Helper()

	keys, err := store.List(context.Background(), prefix)
	require.NoError(t, err, "failed to list keys under "+prefix)
	return keys
}
