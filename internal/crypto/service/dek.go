package service

import (
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// GenerateDEK returns a fresh random 256-bit data-encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate dek: %w", err)
	}
	return dek, nil
}
