package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allisson/qbdrelay/internal/app"
	"github.com/allisson/qbdrelay/internal/config"
	"github.com/allisson/qbdrelay/internal/staging/domain"
)

// RunDrainNotifications drains the accumulated notifications for one
// connection and object type, printing them grouped by status and message.
// This read is destructive: drained notifications move to the processed stage.
func RunDrainNotifications(ctx context.Context, connectionID, objectTypeName, origin, format string, io IOTuple) error {
	objectType, ok := domain.ParseObjectType(objectTypeName)
	if !ok {
		return fmt.Errorf("unknown object type: %s", objectTypeName)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}

	// Load configuration
	cfg := config.Load()
	if origin == "" {
		origin = cfg.Origin
	}

	// Create DI container
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	useCase, err := container.StagingUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize staging use case: %w", err)
	}

	ns := domain.NewNamespace(connectionID, origin)
	groups, err := useCase.CollectNotifications(ctx, ns, objectType)
	if err != nil {
		return fmt.Errorf("failed to collect notifications: %w", err)
	}

	if format == "json" {
		data, err := json.MarshalIndent(groups, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode notifications: %w", err)
		}
		fmt.Fprintln(io.Writer, string(data))
		return nil
	}

	if groups.Empty() {
		fmt.Fprintln(io.Writer, "no notifications")
		return nil
	}
	for message, refs := range groups.Processed {
		for _, ref := range refs {
			fmt.Fprintf(io.Writer, "processed\t%s\t%s\n", ref, message)
		}
	}
	for message, refs := range groups.Failed {
		for _, ref := range refs {
			fmt.Fprintf(io.Writer, "failed\t%s\t%s\n", ref, message)
		}
	}
	return nil
}
