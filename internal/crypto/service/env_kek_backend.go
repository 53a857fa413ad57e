package service

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// EnvKekBackend wraps DEKs locally with AES-256-GCM under an
// operator-supplied key-encryption key. Pure local computation; never blocks.
type EnvKekBackend struct {
	kek         *cryptoDomain.KEK
	aeadManager AEADManager
}

// NewEnvKekBackend creates an environment-KEK wrap backend.
func NewEnvKekBackend(kek *cryptoDomain.KEK, aeadManager AEADManager) *EnvKekBackend {
	return &EnvKekBackend{kek: kek, aeadManager: aeadManager}
}

// Scheme returns SchemeEnvKEK.
func (b *EnvKekBackend) Scheme() cryptoDomain.WrapScheme {
	return cryptoDomain.SchemeEnvKEK
}

// Wrap encrypts the DEK under the KEK with a fresh random nonce. The nonce
// must be stored alongside the ciphertext; GCM forbids nonce reuse per key.
func (b *EnvKekBackend) Wrap(ctx context.Context, dek []byte) (*cryptoDomain.WrappedDEK, error) {
	cipher, err := b.aeadManager.CreateCipher(b.kek.Key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := cipher.Encrypt(dek, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap dek: %w", err)
	}

	return &cryptoDomain.WrappedDEK{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Scheme:     cryptoDomain.SchemeEnvKEK,
	}, nil
}

// Unwrap decrypts the DEK under the KEK. An authentication-tag mismatch
// (wrong KEK or tampered row) surfaces as ErrUnwrapAuth.
func (b *EnvKekBackend) Unwrap(ctx context.Context, key *cryptoDomain.EncryptionKey) ([]byte, error) {
	cipher, err := b.aeadManager.CreateCipher(b.kek.Key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, err
	}

	dek, err := cipher.Decrypt(key.DekWrapped, key.DekWrapNonce, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: label %s", cryptoDomain.ErrUnwrapAuth, key.Label)
	}

	return dek, nil
}
