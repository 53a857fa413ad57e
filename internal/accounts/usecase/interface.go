// Package usecase implements account business logic: creating and reading
// accounts with encrypted contact fields, and migrating account rows between
// DEK generations during rotation.
package usecase

import (
	"context"

	"github.com/google/uuid"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
)

// AccountRepository defines the interface for account persistence.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, account *accountsDomain.Account) error

	// Get retrieves an account by ID, ErrAccountNotFound if absent.
	Get(ctx context.Context, accountID uuid.UUID) (*accountsDomain.Account, error)

	// ListPending claims up to limit accounts whose label differs from
	// label; must run inside a transaction.
	ListPending(ctx context.Context, label string, limit int) ([]*accountsDomain.Account, error)

	// CountPending counts accounts whose label differs from label.
	CountPending(ctx context.Context, label string) (int64, error)

	// CountAll counts all accounts.
	CountAll(ctx context.Context) (int64, error)

	// UpdateEncryptedFields replaces ciphertexts and label, guarded by the
	// previous label; returns the number of rows updated (0 or 1).
	UpdateEncryptedFields(ctx context.Context, account *accountsDomain.Account, previousLabel string) (int64, error)

	// RelabelAll rewrites the label column from one label to another.
	RelabelAll(ctx context.Context, from, to string) (int64, error)
}

// AccountUseCase defines account business logic operations.
type AccountUseCase interface {
	// Create validates the input, encrypts the contact fields under the
	// current write DEK, and persists the account.
	Create(ctx context.Context, input accountsDomain.CreateAccountInput) (*accountsDomain.AccountOutput, error)

	// Get retrieves an account and decrypts its contact fields.
	Get(ctx context.Context, accountID uuid.UUID) (*accountsDomain.AccountOutput, error)
}
