// Package service implements the cryptographic services of the envelope
// encryption subsystem: AEAD ciphers, the two DEK wrap backends, and the
// key manager that resolves labels to plaintext DEKs.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD cipher instances for a key and algorithm.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// WrapBackend wraps and unwraps DEKs. The two implementations are
// EnvKekBackend (local AES-GCM under an operator KEK) and KMSBackend
// (delegation to an external service). Unwrap fails with
// domain.ErrUnwrapAuth on authentication-tag mismatch and
// domain.ErrBackendUnavailable when the backend cannot be reached.
type WrapBackend interface {
	Scheme() cryptoDomain.WrapScheme
	Wrap(ctx context.Context, dek []byte) (*cryptoDomain.WrappedDEK, error)
	Unwrap(ctx context.Context, key *cryptoDomain.EncryptionKey) ([]byte, error)
}

// BackendRegistry resolves the wrap backend for a scheme. Callers never
// branch on the scheme themselves.
type BackendRegistry interface {
	ForScheme(scheme cryptoDomain.WrapScheme) (WrapBackend, error)
}

// KeyStore is the slice of the key repository the key manager needs.
type KeyStore interface {
	GetByLabel(ctx context.Context, label string) (*cryptoDomain.EncryptionKey, error)
}

// SettingsStore reads the singleton settings row holding the write label.
type SettingsStore interface {
	Get(ctx context.Context) (*cryptoDomain.EncryptionSettings, error)
}

// KeyManager resolves labels to DEKs and performs field encryption. It is
// safe for concurrent use; plaintext DEKs are cached per label for the
// process lifetime.
type KeyManager interface {
	// EncryptFields encrypts the given plaintexts under the current write
	// label's DEK and returns the fields plus the label used. Encrypting all
	// of a record's sensitive fields in one call guarantees they share one
	// DEK generation.
	EncryptFields(ctx context.Context, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, string, error)

	// EncryptFieldsWithLabel encrypts under a specific label's DEK. Used by
	// the rotation orchestrator, which re-encrypts under the rotating label
	// it is migrating to.
	EncryptFieldsWithLabel(ctx context.Context, label string, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, error)

	// DecryptField decrypts one field using the DEK generation named by the
	// owning record's label. Fails with domain.ErrDecryptFailed on
	// authentication-tag mismatch; never substitutes a default value.
	DecryptField(ctx context.Context, field *cryptoDomain.EncryptedField, label string) ([]byte, error)

	// Warm attempts to resolve the write DEK so readiness can flip to true.
	// It refuses to retry after an unwrap authentication failure.
	Warm(ctx context.Context) error

	// Ready reports whether the write DEK has been unwrapped successfully at
	// least once since process start and no authentication failure occurred.
	Ready() bool

	// AuthFailed reports whether an unwrap authentication failure has been
	// observed; once set it only clears on process restart.
	AuthFailed() bool

	// Promote repoints the in-process DEK cache after a label transition:
	// the promoted entry becomes the active one and the previous active entry
	// moves to its retired label. An empty or uncached promoted label drops
	// the active entry so it is re-resolved from storage.
	Promote(promotedLabel, retiredLabel string)
}
