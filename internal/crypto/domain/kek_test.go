package domain

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKEKFromEnv(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		raw := make([]byte, KeySize)
		for i := range raw {
			raw[i] = byte(i)
		}
		t.Setenv(KekEnvVar, base64.StdEncoding.EncodeToString(raw))

		kek, err := LoadKEKFromEnv(KekEnvVar)
		require.NoError(t, err)
		assert.Equal(t, raw, kek.Key)

		kek.Close()
		assert.Nil(t, kek.Key)
	})

	t.Run("not set", func(t *testing.T) {
		t.Setenv(NewKekEnvVar, "")
		_, err := LoadKEKFromEnv(NewKekEnvVar)
		assert.ErrorIs(t, err, ErrKEKNotSet)
	})

	t.Run("invalid base64", func(t *testing.T) {
		t.Setenv(KekEnvVar, "not-base64!!!")
		_, err := LoadKEKFromEnv(KekEnvVar)
		assert.ErrorIs(t, err, ErrInvalidKEKBase64)
	})

	t.Run("wrong size", func(t *testing.T) {
		t.Setenv(KekEnvVar, base64.StdEncoding.EncodeToString([]byte("short")))
		_, err := LoadKEKFromEnv(KekEnvVar)
		assert.ErrorIs(t, err, ErrInvalidKeySize)
	})
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)

	Zero(nil) // must not panic
}
