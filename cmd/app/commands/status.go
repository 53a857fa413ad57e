package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

// RunStatus prints the operator-facing state of the key subsystem as JSON:
// the write label, readiness flags, rotation progress, and every key
// generation. DEK material is never included.
func RunStatus(ctx context.Context, io IOTuple) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	keyUseCase, err := container.KeyUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key use case: %w", err)
	}

	status, err := keyUseCase.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get key status: %w", err)
	}

	encoder := json.NewEncoder(io.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		return fmt.Errorf("failed to encode key status: %w", err)
	}

	return nil
}
