package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/allisson/qbdrelay/internal/session"
	"github.com/allisson/qbdrelay/internal/staging/domain"
	"github.com/allisson/qbdrelay/internal/staging/usecase"
	"github.com/allisson/qbdrelay/internal/testutil"
)

// capturingBuilder records every batch handed to it.
type capturingBuilder struct {
	mu      sync.Mutex
	batches map[string][]usecase.DispatchItem
}

func newCapturingBuilder() *capturingBuilder {
	return &capturingBuilder{batches: make(map[string][]usecase.DispatchItem)}
}

func (b *capturingBuilder) Build(ctx context.Context, ns domain.Namespace, items []usecase.DispatchItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches[ns.ConnectionID] = append(b.batches[ns.ConnectionID], items...)
	return nil
}

func (b *capturingBuilder) batch(connectionID string) []usecase.DispatchItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batches[connectionID]
}

func newTestEngine(t *testing.T) *usecase.Engine {
	t.Helper()

	store := testutil.NewMemoryStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return usecase.NewEngine(store, session.NewStore(store), logger)
}

func TestPoller_ProcessConnections(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Success_DispatchesHighestTier", func(t *testing.T) {
		engine := newTestEngine(t)
		ns := domain.NewNamespace("conn-1", "")

		// An order expands into dependents (tier 1) plus the order itself in
		// the two-phase holding stage.
		require.NoError(t, engine.Save(context.Background(), ns, domain.ObjectTypeOrder, []map[string]any{
			{
				"id":    "ORD-1",
				"email": "jane@example.com",
				"line_items": []any{
					map[string]any{"product_id": "SKU-1", "price": "10.00"},
				},
			},
		}))

		builder := newCapturingBuilder()
		p := New(Config{
			Interval:      time.Minute,
			ConnectionIDs: []string{"conn-1"},
		}, engine, builder, logger)

		// First round drains tier 1 dependents only.
		require.NoError(t, p.ProcessConnections(context.Background()))

		items := builder.batch("conn-1")
		require.NotEmpty(t, items)
		for _, item := range items {
			assert.Equal(t, 1, item.ObjectType.DispatchTier())
		}

		// Finalize the dispatched dependents so the ready stage drains.
		var processed []usecase.RecordRef
		for _, item := range items {
			key := domain.Record{ObjectType: item.ObjectType, Payload: item.Payload}.NaturalKey()
			processed = append(processed, usecase.RecordRef{ObjectType: item.ObjectType, NaturalKey: key})
		}
		require.NoError(t, engine.Finalize(context.Background(), ns, usecase.Outcomes{Processed: processed}))

		// Second round promotes the two-phase order and dispatches it.
		builder.batches = map[string][]usecase.DispatchItem{}
		require.NoError(t, p.ProcessConnections(context.Background()))

		items = builder.batch("conn-1")
		require.Len(t, items, 1)
		assert.Equal(t, domain.ObjectTypeOrder, items[0].ObjectType)
	})

	t.Run("Success_EmptyNamespaceDispatchesNothing", func(t *testing.T) {
		engine := newTestEngine(t)
		builder := newCapturingBuilder()
		p := New(Config{
			Interval:      time.Minute,
			ConnectionIDs: []string{"conn-1", "conn-2"},
		}, engine, builder, logger)

		require.NoError(t, p.ProcessConnections(context.Background()))
		assert.Empty(t, builder.batch("conn-1"))
		assert.Empty(t, builder.batch("conn-2"))
	})

	t.Run("Success_SweepsConnectionsIndependently", func(t *testing.T) {
		engine := newTestEngine(t)
		require.NoError(t, engine.Save(
			context.Background(),
			domain.NewNamespace("conn-2", ""),
			domain.ObjectTypeProduct,
			[]map[string]any{{"id": "SKU-9"}},
		))

		builder := newCapturingBuilder()
		p := New(Config{
			Interval:      time.Minute,
			ConnectionIDs: []string{"conn-1", "conn-2"},
		}, engine, builder, logger)

		require.NoError(t, p.ProcessConnections(context.Background()))
		assert.Empty(t, builder.batch("conn-1"))
		assert.Len(t, builder.batch("conn-2"), 1)
	})
}

func TestPoller_StartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := newTestEngine(t)
	p := New(Config{
		Interval:      10 * time.Millisecond,
		ConnectionIDs: []string{"conn-1"},
	}, engine, NewLogRequestBuilder(logger), logger)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Start(ctx)
	}()

	// Let at least one round run, then stop.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
