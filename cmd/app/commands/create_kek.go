package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// RunCreateKek generates a new random key-encryption key and prints it as
// standard base64, ready for the ENCRYPTION_KEK (or ENCRYPTION_KEK_NEW)
// environment variable. The key is never persisted.
func RunCreateKek(io IOTuple) error {
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate kek: %w", err)
	}
	defer cryptoDomain.Zero(key)

	encoded := base64.StdEncoding.EncodeToString(key)

	fmt.Fprintln(io.Writer, "Generated a new 256-bit key-encryption key.")
	fmt.Fprintln(io.Writer, "Store it in your secret manager and export it before starting the server:")
	fmt.Fprintln(io.Writer, "")
	fmt.Fprintf(io.Writer, "  export %s=%s\n", cryptoDomain.KekEnvVar, encoded)

	return nil
}
