// Package domain defines the account entity. Accounts carry the encrypted
// contact fields that the envelope encryption subsystem protects.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/validation"
	"github.com/jellydator/validation/is"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// Account domain errors.
var (
	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = apperrors.Wrap(apperrors.ErrNotFound, "account not found")
)

// Account represents a customer account. Email and phone are stored
// encrypted; Label names the DEK generation every encrypted field of this
// row was sealed under.
type Account struct {
	ID        uuid.UUID
	Name      string
	Email     cryptoDomain.EncryptedField
	Phone     cryptoDomain.EncryptedField
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EncLabel returns the DEK generation label of the row.
func (a *Account) EncLabel() string { return a.Label }

// SetEncLabel sets the DEK generation label of the row.
func (a *Account) SetEncLabel(label string) { a.Label = label }

// CreateAccountInput carries the plaintext fields of a new account.
type CreateAccountInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Validate validates the create account input.
func (i CreateAccountInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&i.Email, validation.Required, is.Email),
		validation.Field(&i.Phone, validation.Required, validation.Length(5, 32)),
	)
}

// AccountOutput is the decrypted representation returned to callers.
type AccountOutput struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
