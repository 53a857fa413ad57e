package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

// RunRewrap replaces the wrap envelope of every key row without touching
// DEKs or data rows. target selects the new envelope: "env" wraps under the
// replacement KEK from ENCRYPTION_KEK_NEW, "kms" wraps under the configured
// KMS key. After a successful env rewrap, move the new KEK value into
// ENCRYPTION_KEK before the next restart.
func RunRewrap(ctx context.Context, target string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	logger.Info("starting rewrap", slog.String("target", target))

	rewrapUseCase, err := container.RewrapUseCase(target)
	if err != nil {
		return fmt.Errorf("failed to initialize rewrap use case: %w", err)
	}

	count, err := rewrapUseCase.Rewrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to rewrap key rows: %w", err)
	}

	logger.Info("rewrap completed",
		slog.Int("rewrapped_keys", count),
		slog.String("target", target),
	)

	return nil
}
