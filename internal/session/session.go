// Package session provides short-lived correlation records. A session
// snapshots a record at the moment a destination-bound request is issued, so
// the full context can be recovered when a later asynchronous reply only
// carries the session identifier.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/allisson/qbdrelay/internal/staging/codec"
	"github.com/allisson/qbdrelay/internal/staging/domain"
	"github.com/allisson/qbdrelay/internal/staging/repository"
)

// Store persists session snapshots in the object store under the namespace's
// sessions prefix. Sessions are never mutated; single-use consumers must
// delete explicitly after a successful load to avoid unbounded growth.
type Store struct {
	store repository.ObjectStore
}

// NewStore creates a session store over the given object store.
func NewStore(store repository.ObjectStore) *Store {
	return &Store{store: store}
}

// Save persists a snapshot under a fresh random identifier and returns it.
// A non-empty tag prefixes the identifier so two in-flight requests built
// from the same record (e.g. a shipment and its derived order) stay apart.
func (s *Store) Save(ctx context.Context, ns domain.Namespace, payload map[string]any, tag string) (string, error) {
	id := uuid.NewString()
	if tag != "" {
		id = tag + "-" + id
	}

	data, err := codec.EncodeOne(payload)
	if err != nil {
		return "", err
	}
	if _, err := s.store.Write(ctx, s.key(ns, id), data); err != nil {
		return "", err
	}
	return id, nil
}

// Load returns the snapshot stored under id. Fails with ErrNotFound when the
// session is absent or already consumed. Load never deletes by itself.
func (s *Store) Load(ctx context.Context, ns domain.Namespace, id string) (map[string]any, error) {
	data, err := s.store.Read(ctx, s.key(ns, id))
	if err != nil {
		return nil, err
	}
	return codec.DecodeOne(data)
}

// Delete removes a consumed session.
func (s *Store) Delete(ctx context.Context, ns domain.Namespace, id string) error {
	return s.store.Delete(ctx, s.key(ns, id))
}

func (s *Store) key(ns domain.Namespace, id string) string {
	return ns.SessionPrefix() + id + domain.FileExt
}
