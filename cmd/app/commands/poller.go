package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allisson/qbdrelay/internal/app"
	"github.com/allisson/qbdrelay/internal/config"
)

// RunPoller starts the dispatch poller with graceful shutdown support.
// The poller sweeps every configured connection on the poll interval,
// promoting staged records and handing ready batches to the request builder.
// Blocks until receiving SIGINT/SIGTERM.
func RunPoller(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	if len(cfg.ConnectionIDs) == 0 {
		return fmt.Errorf("no connections configured: set CONNECTION_IDS")
	}

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting poller", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get poller from container (this initializes all dependencies)
	dispatcher, err := container.Poller()
	if err != nil {
		return fmt.Errorf("failed to initialize poller: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := dispatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("poller error: %w", err)
	}

	logger.Info("poller stopped")
	return nil
}
