package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/validation"
)

// EncryptionKey is one DEK generation: the wrapped DEK plus the metadata
// needed to unwrap it. The plaintext DEK is never persisted.
type EncryptionKey struct {
	// ID is the unique identifier (UUIDv7).
	ID uuid.UUID
	// Label ties this generation to the records encrypted under it
	// ("active", "rotating::<ts>" or "retired::<ts>"). Labels change over a
	// key's lifetime; the row itself is never deleted by the subsystem.
	Label string
	// Algorithm is the AEAD algorithm this generation's DEK drives.
	Algorithm Algorithm
	// DekWrapped is the DEK ciphertext, wrapped under the KEK or the KMS key.
	DekWrapped []byte
	// DekWrapNonce is the wrap nonce; present only for env_kek wrapping.
	// Empty signals a KMS-wrapped DEK.
	DekWrapNonce []byte
	// WrapScheme identifies the backend that wrapped (and can unwrap) the DEK.
	WrapScheme WrapScheme
	// KMSKeyID is the external key URI; required when WrapScheme is kms.
	KMSKeyID string
	// CreatedAt is the UTC timestamp when this generation was created.
	CreatedAt time.Time
}

// Validate checks the structural invariants of a key row before persistence.
func (k *EncryptionKey) Validate() error {
	return validation.ValidateStruct(k,
		validation.Field(&k.Label, validation.Required, validation.By(labelRule)),
		validation.Field(&k.Algorithm, validation.Required, validation.In(AESGCM, ChaCha20)),
		validation.Field(&k.DekWrapped, validation.Required),
		validation.Field(&k.WrapScheme, validation.Required, validation.In(SchemeEnvKEK, SchemeKMS)),
		validation.Field(&k.KMSKeyID, validation.When(k.WrapScheme == SchemeKMS, validation.Required)),
		validation.Field(&k.DekWrapNonce, validation.When(k.WrapScheme == SchemeEnvKEK, validation.Required)),
	)
}

func labelRule(value interface{}) error {
	label, _ := value.(string)
	if !ValidLabel(label) {
		return validation.NewError("validation_label", "must be active, rotating::<ts> or retired::<ts>")
	}
	return nil
}

// EncryptionSettings is the singleton row holding the write label: the label
// every new or updated field value must be encrypted under. It equals the
// active label except during a rotation, when it points at the rotating key.
type EncryptionSettings struct {
	WriteLabel string
	UpdatedAt  time.Time
}
