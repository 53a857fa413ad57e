package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

// RunRotateBegin opens a DEK rotation: generates a new DEK under a rotating
// label and repoints the write label at it. New writes use the rotating
// generation immediately; existing records are migrated by dek-rotate-run.
func RunRotateBegin(ctx context.Context, algorithmStr string) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	rotationUseCase, err := container.RotationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize rotation use case: %w", err)
	}

	label, err := rotationUseCase.Begin(ctx, algorithm)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}

	logger.Info("rotation started",
		slog.String("rotating_label", label),
		slog.String("algorithm", string(algorithm)),
	)

	return nil
}

// RunRotateRun migrates records to the rotating DEK generation in batches
// until none remain. Resumable: an interrupted run picks up where it left
// off, and already-migrated rows are never re-encrypted.
func RunRotateRun(ctx context.Context, batchSize int) error {
	cfg := config.Load()
	if batchSize <= 0 {
		batchSize = cfg.RotateBatchSize
	}

	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	logger.Info("starting rotation run", slog.Int("batch_size", batchSize))

	rotationUseCase, err := container.RotationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize rotation use case: %w", err)
	}

	var totalMigrated int64
	for {
		progress, err := rotationUseCase.Run(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("failed to run rotation batch: %w", err)
		}

		totalMigrated += progress.Migrated
		logger.Info("rotation batch completed",
			slog.Int64("migrated_in_batch", progress.Migrated),
			slog.Int64("total_migrated", totalMigrated),
			slog.Int64("remaining", progress.Remaining),
		)

		if progress.Remaining == 0 {
			break
		}
	}

	logger.Info("rotation run completed",
		slog.Int64("total_migrated", totalMigrated),
	)

	return nil
}

// RunRotateFinalize completes the rotation: verifies no records lag the
// rotating generation, promotes the rotating key to active, and retires the
// old active key. Fails while records remain; run dek-rotate-run first.
func RunRotateFinalize(ctx context.Context) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	rotationUseCase, err := container.RotationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize rotation use case: %w", err)
	}

	if err := rotationUseCase.Finalize(ctx); err != nil {
		return fmt.Errorf("failed to finalize rotation: %w", err)
	}

	logger.Info("rotation finalized")

	return nil
}
