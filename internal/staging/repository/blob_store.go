// Package repository provides the durable object store adapter backed by
// gocloud.dev/blob. The staging core only relies on the small ObjectStore
// capability surface; everything else about the backing service is hidden
// behind the bucket URL.
package repository

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	apperrors "github.com/allisson/qbdrelay/internal/errors"

	// Register blob drivers for the supported bucket URL schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// ObjectStore is the capability interface the staging core consumes. The
// backing store offers only prefix listing, so every lookup is expressed as a
// key prefix. Write and Move never overwrite an existing key; they
// disambiguate with a collision suffix and return the key actually used.
type ObjectStore interface {
	// Write stores data under key, appending a collision suffix when the key
	// already exists. Returns the key actually written.
	Write(ctx context.Context, key string, data []byte) (string, error)

	// List returns all keys starting with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Read returns the content of key. Fails with ErrNotFound when absent.
	Read(ctx context.Context, key string) ([]byte, error)

	// Move relocates from to to, disambiguating on collision. Returns the
	// destination key actually used. Fails with ErrNotFound when from is absent.
	Move(ctx context.Context, from, to string) (string, error)

	// Copy duplicates from under to, disambiguating on collision. Returns the
	// destination key actually used.
	Copy(ctx context.Context, from, to string) (string, error)

	// Delete removes key. Fails with ErrNotFound when absent.
	Delete(ctx context.Context, key string) error
}

// BlobStore implements ObjectStore on top of a gocloud.dev blob bucket.
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore creates a store over an already opened bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// OpenBlobStore opens the bucket identified by urlstr (file://, mem://, s3://)
// and returns the store plus a cleanup function closing the bucket.
func OpenBlobStore(ctx context.Context, urlstr string) (*BlobStore, func(), error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bucket %q: %w", urlstr, err)
	}
	cleanup := func() {
		_ = bucket.Close()
	}
	return NewBlobStore(bucket), cleanup, nil
}

// Write stores data under key. When the key exists, a "(n)" suffix is
// inserted before the file extension until a free key is found, mirroring the
// disambiguation behavior of the original S3 layout.
func (s *BlobStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	target, err := s.disambiguate(ctx, key)
	if err != nil {
		return "", err
	}
	if err := s.bucket.WriteAll(ctx, target, data, nil); err != nil {
		return "", mapStoreError(err, "failed to write "+target)
	}
	return target, nil
}

// List returns every key under prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mapStoreError(err, "failed to list "+prefix)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Read returns the content stored under key.
func (s *BlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, mapStoreError(err, "failed to read "+key)
	}
	return data, nil
}

// Move relocates a single object. The copy happens before the delete so a
// crash in between leaves a duplicate rather than a loss; relocations are
// retried by sweeping callers, never reversed.
func (s *BlobStore) Move(ctx context.Context, from, to string) (string, error) {
	target, err := s.Copy(ctx, from, to)
	if err != nil {
		return "", err
	}
	if err := s.bucket.Delete(ctx, from); err != nil {
		return "", mapStoreError(err, "failed to delete "+from+" after move")
	}
	return target, nil
}

// Copy duplicates an object, disambiguating the destination on collision.
func (s *BlobStore) Copy(ctx context.Context, from, to string) (string, error) {
	target, err := s.disambiguate(ctx, to)
	if err != nil {
		return "", err
	}
	if err := s.bucket.Copy(ctx, target, from, nil); err != nil {
		return "", mapStoreError(err, "failed to copy "+from)
	}
	return target, nil
}

// Delete removes an object.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		return mapStoreError(err, "failed to delete "+key)
	}
	return nil
}

// disambiguate returns key unchanged when free, otherwise the first variant
// with a "(n)" suffix before the extension that does not exist yet.
func (s *BlobStore) disambiguate(ctx context.Context, key string) (string, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return "", mapStoreError(err, "failed to check "+key)
	}
	if !exists {
		return key, nil
	}

	base, ext := key, ""
	if i := strings.LastIndex(key, "."); i > strings.LastIndex(key, "/") {
		base, ext = key[:i], key[i:]
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s(%d)%s", base, n, ext)
		exists, err := s.bucket.Exists(ctx, candidate)
		if err != nil {
			return "", mapStoreError(err, "failed to check "+candidate)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// mapStoreError translates gocloud error codes into domain errors. Anything
// that is not a missing key is treated as the store being unavailable.
func mapStoreError(err error, message string) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return apperrors.Wrap(apperrors.ErrNotFound, message)
	}
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, message+": "+err.Error())
}
