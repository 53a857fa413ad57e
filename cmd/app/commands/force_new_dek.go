package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

// RunForceNewActiveDek replaces the active DEK without migrating data. Only
// permitted while no encrypted records exist and no rotation is open; with
// existing records, use the rotation commands instead.
func RunForceNewActiveDek(ctx context.Context, algorithmStr string) error {
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

	if err := keyUseCase.ForceNewActiveDek(ctx, algorithm); err != nil {
		return fmt.Errorf("failed to force new active DEK: %w", err)
	}

	logger.Info("active DEK replaced",
		slog.String("algorithm", string(algorithm)),
	)

	return nil
}
