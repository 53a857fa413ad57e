package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    cryptoDomain.Algorithm
		wantErr bool
	}{
		{"aes-gcm", cryptoDomain.AESGCM, false},
		{"chacha20-poly1305", cryptoDomain.ChaCha20, false},
		{"aes-cbc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAlgorithm(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
