package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// accountUseCaseWithMetrics decorates AccountUseCase with metrics instrumentation.
type accountUseCaseWithMetrics struct {
	next    AccountUseCase
	metrics metrics.BusinessMetrics
}

// NewAccountUseCaseWithMetrics wraps an AccountUseCase with metrics recording.
func NewAccountUseCaseWithMetrics(useCase AccountUseCase, m metrics.BusinessMetrics) AccountUseCase {
	return &accountUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for account creation operations.
func (a *accountUseCaseWithMetrics) Create(
	ctx context.Context,
	input accountsDomain.CreateAccountInput,
) (*accountsDomain.AccountOutput, error) {
	start := time.Now()
	account, err := a.next.Create(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "accounts", "account_create", status)
	a.metrics.RecordDuration(ctx, "accounts", "account_create", time.Since(start), status)

	return account, err
}

// Get records metrics for account read operations.
func (a *accountUseCaseWithMetrics) Get(
	ctx context.Context,
	accountID uuid.UUID,
) (*accountsDomain.AccountOutput, error) {
	start := time.Now()
	account, err := a.next.Get(ctx, accountID)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "accounts", "account_get", status)
	a.metrics.RecordDuration(ctx, "accounts", "account_get", time.Since(start), status)

	return account, err
}
