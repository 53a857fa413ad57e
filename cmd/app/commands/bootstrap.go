package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

// RunBootstrap initializes the key subsystem: generates the first DEK, wraps
// it under the configured backend, stores it as the active key, and points
// the write label at it. Idempotent; safe to run on every deploy.
func RunBootstrap(ctx context.Context, algorithmStr string) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	keyUseCase, err := container.KeyUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key use case: %w", err)
	}

	if err := keyUseCase.EnsureActiveKey(ctx, algorithm); err != nil {
		return fmt.Errorf("failed to bootstrap key subsystem: %w", err)
	}

	logger.Info("key subsystem bootstrapped",
		slog.String("algorithm", string(algorithm)),
		slog.String("wrap_scheme", cfg.WrapScheme),
	)

	return nil
}
