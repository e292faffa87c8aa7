// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/qbdrelay/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "qbdrelay",
		Usage:   "Durable staging relay for accounting destination records",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "poller",
				Usage: "Start the dispatch poller",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunPoller(ctx, version)
				},
			},
			{
				Name:  "drain-notifications",
				Usage: "Drain and print the pending notifications for a connection",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "connection-id",
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "Connection whose notifications to drain",
					},
					&cli.StringFlag{
						Name:     "object-type",
						Aliases:  []string{"t"},
						Required: true,
						Usage:    "Object type (e.g., order, customer, product)",
					},
					&cli.StringFlag{
						Name:    "origin",
						Aliases: []string{"o"},
						Value:   "",
						Usage:   "Origin tag (defaults to the configured ORIGIN)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunDrainNotifications(
						ctx,
						cmd.String("connection-id"),
						cmd.String("object-type"),
						cmd.String("origin"),
						cmd.String("format"),
						commands.DefaultIO(),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
