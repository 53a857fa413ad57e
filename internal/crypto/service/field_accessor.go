package service

import (
	"context"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// FieldAccessor is the convenience layer record repositories use. Seal
// stamps the record's label in the same call that encrypts its fields, so a
// record can never mix DEK generations.
type FieldAccessor struct {
	keyManager KeyManager
}

// NewFieldAccessor creates a new FieldAccessor.
func NewFieldAccessor(keyManager KeyManager) *FieldAccessor {
	return &FieldAccessor{keyManager: keyManager}
}

// Seal encrypts all of a record's sensitive fields under the current write
// DEK and sets the record's label to the generation used.
func (a *FieldAccessor) Seal(ctx context.Context, record cryptoDomain.EncryptedRecord, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, error) {
	fields, label, err := a.keyManager.EncryptFields(ctx, plaintexts...)
	if err != nil {
		return nil, err
	}

	record.SetEncLabel(label)
	return fields, nil
}

// Open decrypts one of a record's fields using the record's label.
func (a *FieldAccessor) Open(ctx context.Context, record cryptoDomain.EncryptedRecord, field *cryptoDomain.EncryptedField) ([]byte, error) {
	return a.keyManager.DecryptField(ctx, field, record.EncLabel())
}
