// Package poller drives the outbound dispatch cycle. Each round promotes
// two-phase records, relocates pending records to the ready stage and hands
// the highest-precedence ready batch to a RequestBuilder for delivery to the
// accounting destination.
package poller

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/qbdrelay/internal/staging/domain"
	"github.com/allisson/qbdrelay/internal/staging/usecase"
)

// Config holds poller configuration.
type Config struct {
	Interval      time.Duration
	Origin        string
	ConnectionIDs []string

	// MaxConcurrency bounds how many connections are swept in parallel.
	// Zero means a sensible default.
	MaxConcurrency int
}

// RequestBuilder turns dispatch-selected records into destination requests.
// Implementations report outcomes back through the staging engine
// (UpdateWithDestinationIDs, Finalize or FailFromSession).
type RequestBuilder interface {
	Build(ctx context.Context, ns domain.Namespace, items []usecase.DispatchItem) error
}

// Poller sweeps the configured connections on a fixed interval.
type Poller struct {
	config  Config
	staging usecase.StagingUseCase
	builder RequestBuilder
	logger  *slog.Logger
}

// New creates a new Poller.
func New(config Config, staging usecase.StagingUseCase, builder RequestBuilder, logger *slog.Logger) *Poller {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	return &Poller{
		config:  config,
		staging: staging,
		builder: builder,
		logger:  logger,
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("starting dispatch poller",
		slog.Duration("interval", p.config.Interval),
		slog.Int("connections", len(p.config.ConnectionIDs)),
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping dispatch poller")
			return ctx.Err()
		case <-ticker.C:
			if err := p.ProcessConnections(ctx); err != nil {
				p.logger.Error("dispatch round failed", slog.Any("error", err))
			}
		}
	}
}

// ProcessConnections runs one dispatch round across every configured
// connection. Connections are independent; one failing sweep does not stop
// the others, and the first error is returned after all finish.
func (p *Poller) ProcessConnections(ctx context.Context) error {
	g := new(errgroup.Group)
	g.SetLimit(p.config.MaxConcurrency)

	for _, connectionID := range p.config.ConnectionIDs {
		ns := domain.NewNamespace(connectionID, p.config.Origin)
		g.Go(func() error {
			if err := p.processNamespace(ctx, ns); err != nil {
				p.logger.Error("connection sweep failed",
					slog.String("connection_id", ns.ConnectionID),
					slog.Any("error", err),
				)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// processNamespace runs one sweep for a single namespace: promote two-phase
// records, move pending records to ready, then dispatch the highest populated
// precedence tier.
func (p *Poller) processNamespace(ctx context.Context, ns domain.Namespace) error {
	if err := p.staging.PromoteTwoPhasePending(ctx, ns); err != nil {
		return err
	}

	if _, err := p.staging.ListPendingForDispatch(ctx, ns); err != nil {
		return err
	}

	// Re-read the full ready set so records updated in earlier rounds are
	// dispatched too.
	items, err := p.staging.ListReadyForDispatch(ctx, ns)
	if err != nil {
		return err
	}

	selected := usecase.SelectForDispatch(items)
	if len(selected) == 0 {
		return nil
	}

	p.logger.Info("dispatching records",
		slog.String("connection_id", ns.ConnectionID),
		slog.Int("count", len(selected)),
	)

	return p.builder.Build(ctx, ns, selected)
}

// LogRequestBuilder is a default RequestBuilder that only logs the selected
// batch. Deployments replace it with a destination-specific builder.
type LogRequestBuilder struct {
	logger *slog.Logger
}

// NewLogRequestBuilder creates a new LogRequestBuilder.
func NewLogRequestBuilder(logger *slog.Logger) *LogRequestBuilder {
	return &LogRequestBuilder{logger: logger}
}

// Build logs each selected record.
func (b *LogRequestBuilder) Build(ctx context.Context, ns domain.Namespace, items []usecase.DispatchItem) error {
	for _, item := range items {
		b.logger.Info("dispatch item",
			slog.String("connection_id", ns.ConnectionID),
			slog.String("object_type", string(item.ObjectType)),
			slog.String("list_id", item.ListID),
		)
	}
	return nil
}
