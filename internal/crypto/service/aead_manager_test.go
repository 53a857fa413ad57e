package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	am := NewAEADManager()
	key := randomKey(t)

	t.Run("create AES-GCM cipher", func(t *testing.T) {
		cipher, err := am.CreateCipher(key, cryptoDomain.AESGCM)
		require.NoError(t, err)
		assert.IsType(t, &AESGCMCipher{}, cipher)
	})

	t.Run("create ChaCha20-Poly1305 cipher", func(t *testing.T) {
		cipher, err := am.CreateCipher(key, cryptoDomain.ChaCha20)
		require.NoError(t, err)
		assert.IsType(t, &ChaCha20Poly1305Cipher{}, cipher)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := am.CreateCipher(key, cryptoDomain.Algorithm("invalid"))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})

	t.Run("invalid key size", func(t *testing.T) {
		_, err := am.CreateCipher(make([]byte, 16), cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})
}

func TestAEADRoundTrip(t *testing.T) {
	am := NewAEADManager()
	key := randomKey(t)

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			cipher, err := am.CreateCipher(key, alg)
			require.NoError(t, err)

			plaintext := []byte("sensitive field value")
			ciphertext, nonce, err := cipher.Encrypt(plaintext, nil)
			require.NoError(t, err)
			assert.NotEqual(t, plaintext, ciphertext)
			assert.Len(t, nonce, 12)

			decrypted, err := cipher.Decrypt(ciphertext, nonce, nil)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})

		t.Run(string(alg)+" tampered ciphertext fails", func(t *testing.T) {
			cipher, err := am.CreateCipher(key, alg)
			require.NoError(t, err)

			ciphertext, nonce, err := cipher.Encrypt([]byte("data"), nil)
			require.NoError(t, err)

			ciphertext[0] ^= 0xFF
			_, err = cipher.Decrypt(ciphertext, nonce, nil)
			assert.Error(t, err)
		})

		t.Run(string(alg)+" wrong key fails", func(t *testing.T) {
			cipher, err := am.CreateCipher(key, alg)
			require.NoError(t, err)

			ciphertext, nonce, err := cipher.Encrypt([]byte("data"), nil)
			require.NoError(t, err)

			other, err := am.CreateCipher(randomKey(t), alg)
			require.NoError(t, err)

			_, err = other.Decrypt(ciphertext, nonce, nil)
			assert.Error(t, err)
		})
	}
}

func TestAEADNonceUniqueness(t *testing.T) {
	am := NewAEADManager()
	cipher, err := am.CreateCipher(randomKey(t), cryptoDomain.AESGCM)
	require.NoError(t, err)

	_, nonce1, err := cipher.Encrypt([]byte("same plaintext"), nil)
	require.NoError(t, err)
	_, nonce2, err := cipher.Encrypt([]byte("same plaintext"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, nonce1, nonce2)
}
