package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// accountUseCase implements AccountUseCase. Encryption and decryption go
// through the field accessor, which guarantees all of a record's fields are
// sealed under one DEK generation and stamps the record's label.
type accountUseCase struct {
	accountRepo AccountRepository
	accessor    *cryptoService.FieldAccessor
}

// NewAccountUseCase creates a new account use case.
func NewAccountUseCase(accountRepo AccountRepository, accessor *cryptoService.FieldAccessor) AccountUseCase {
	return &accountUseCase{accountRepo: accountRepo, accessor: accessor}
}

// Create validates the input, encrypts the contact fields, and persists the
// account.
func (a *accountUseCase) Create(ctx context.Context, input accountsDomain.CreateAccountInput) (*accountsDomain.AccountOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	account := &accountsDomain.Account{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      input.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	fields, err := a.accessor.Seal(ctx, account, []byte(input.Email), []byte(input.Phone))
	if err != nil {
		return nil, err
	}
	account.Email = *fields[0]
	account.Phone = *fields[1]

	if err := a.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return &accountsDomain.AccountOutput{
		ID:        account.ID,
		Name:      account.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}, nil
}

// Get retrieves an account and decrypts its contact fields using the DEK
// generation recorded on the row.
func (a *accountUseCase) Get(ctx context.Context, accountID uuid.UUID) (*accountsDomain.AccountOutput, error) {
	account, err := a.accountRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	email, err := a.accessor.Open(ctx, account, &account.Email)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(email)

	phone, err := a.accessor.Open(ctx, account, &account.Phone)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(phone)

	return &accountsDomain.AccountOutput{
		ID:        account.ID,
		Name:      account.Name,
		Email:     string(email),
		Phone:     string(phone),
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}, nil
}
