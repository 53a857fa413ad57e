package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Begin records metrics for rotation begin operations.
func (r *rotationUseCaseWithMetrics) Begin(ctx context.Context, alg cryptoDomain.Algorithm) (string, error) {
	start := time.Now()
	label, err := r.next.Begin(ctx, alg)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "crypto", "rotation_begin", status)
	r.metrics.RecordDuration(ctx, "crypto", "rotation_begin", time.Since(start), status)

	return label, err
}

// Run records metrics for rotation batch runs.
func (r *rotationUseCaseWithMetrics) Run(ctx context.Context, batchSize int) (*cryptoDomain.RotationProgress, error) {
	start := time.Now()
	progress, err := r.next.Run(ctx, batchSize)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "crypto", "rotation_run", status)
	r.metrics.RecordDuration(ctx, "crypto", "rotation_run", time.Since(start), status)

	return progress, err
}

// Finalize records metrics for rotation finalize operations.
func (r *rotationUseCaseWithMetrics) Finalize(ctx context.Context) error {
	start := time.Now()
	err := r.next.Finalize(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "crypto", "rotation_finalize", status)
	r.metrics.RecordDuration(ctx, "crypto", "rotation_finalize", time.Since(start), status)

	return err
}

// rewrapUseCaseWithMetrics decorates RewrapUseCase with metrics instrumentation.
type rewrapUseCaseWithMetrics struct {
	next    RewrapUseCase
	metrics metrics.BusinessMetrics
}

// NewRewrapUseCaseWithMetrics wraps a RewrapUseCase with metrics recording.
func NewRewrapUseCaseWithMetrics(useCase RewrapUseCase, m metrics.BusinessMetrics) RewrapUseCase {
	return &rewrapUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Rewrap records metrics for wrap-envelope rewrap operations.
func (r *rewrapUseCaseWithMetrics) Rewrap(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := r.next.Rewrap(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "crypto", "rewrap", status)
	r.metrics.RecordDuration(ctx, "crypto", "rewrap", time.Since(start), status)

	return count, err
}
