// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Field encryption service with envelope key management",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the API and metrics servers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "create-kek",
				Usage: "Generate a new base64 key-encryption key for the ENCRYPTION_KEK environment variable",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateKek(commands.DefaultIO())
				},
			},
			{
				Name:  "bootstrap",
				Usage: "Create the first active DEK and the write label (idempotent)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "aes-gcm",
						Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunBootstrap(ctx, cmd.String("algorithm"))
				},
			},
			{
				Name:  "crypto-status",
				Usage: "Print the key subsystem status as JSON",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunStatus(ctx, commands.DefaultIO())
				},
			},
			{
				Name:  "force-new-active-dek",
				Usage: "Replace the active DEK without migrating data (refused once encrypted records exist)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "aes-gcm",
						Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunForceNewActiveDek(ctx, cmd.String("algorithm"))
				},
			},
			{
				Name:  "dek-rotate-begin",
				Usage: "Open a DEK rotation: new writes use the new generation immediately",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"alg"},
						Value:   "aes-gcm",
						Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRotateBegin(ctx, cmd.String("algorithm"))
				},
			},
			{
				Name:  "dek-rotate-run",
				Usage: "Re-encrypt lagging records in batches until none remain (resumable)",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "batch-size",
						Aliases: []string{"b"},
						Value:   0,
						Usage:   "Records per batch (0 uses ROTATE_BATCH_SIZE)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRotateRun(ctx, int(cmd.Int("batch-size")))
				},
			},
			{
				Name:  "dek-rotate-finalize",
				Usage: "Promote the rotating DEK to active once all records are migrated",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRotateFinalize(ctx)
				},
			},
			{
				Name:  "rewrap",
				Usage: "Rewrap every stored DEK under a new KEK or KMS key (data rows untouched)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Required: true,
						Usage:    "Rewrap target: 'env' (ENCRYPTION_KEK_NEW) or 'kms' (KMS_KEY_URI)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRewrap(ctx, cmd.String("target"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
