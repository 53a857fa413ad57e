package domain

import (
	"encoding/base64"
	"fmt"
	"os"
)

// Environment variable names for key-encryption keys. The current KEK is
// always read from KekEnvVar; KEK replacement reads the replacement from
// NewKekEnvVar so both keys are available to the rewrap operation.
const (
	KekEnvVar    = "ENCRYPTION_KEK"
	NewKekEnvVar = "ENCRYPTION_KEK_NEW"
)

// KEK is an operator-supplied key-encryption key. It exists only in process
// memory and in the operator's environment; the subsystem never persists it.
type KEK struct {
	Key []byte
}

// Close zeroes the key material.
func (k *KEK) Close() {
	Zero(k.Key)
	k.Key = nil
}

// LoadKEKFromEnv reads a base64-encoded 32-byte KEK from the named
// environment variable.
func LoadKEKFromEnv(envVar string) (*KEK, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s", ErrKEKNotSet, envVar)
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKEKBase64, envVar, err)
	}
	if len(key) != KeySize {
		Zero(key)
		return nil, fmt.Errorf("%w: %s must be %d bytes, got %d", ErrInvalidKeySize, envVar, KeySize, len(key))
	}

	return &KEK{Key: key}, nil
}
