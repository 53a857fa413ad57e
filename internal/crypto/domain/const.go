// Package domain defines the core models for the envelope-encryption key
// subsystem: wrapped DEK generations, the write-label settings row, and the
// encrypted-field value stored on owning records.
//
// Key hierarchy: KEK (operator environment) or KMS key → DEK → field data.
// Each DEK generation is a row in the key store identified by a label; the
// label recorded on an owning record ties its ciphertext to the generation
// that can decrypt it.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Algorithm represents the AEAD algorithm a DEK drives.
type Algorithm string

const (
	// AESGCM is AES-256-GCM: 256-bit key, 12-byte nonce, 16-byte tag.
	// Preferred on CPUs with AES-NI.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305: 256-bit key, 12-byte nonce, 16-byte tag.
	// Constant-time in software; preferred without AES hardware support.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// WrapScheme identifies how a DEK is wrapped at rest.
type WrapScheme string

const (
	// SchemeEnvKEK wraps the DEK locally with AES-256-GCM under an
	// operator-supplied key-encryption key.
	SchemeEnvKEK WrapScheme = "env_kek"

	// SchemeKMS delegates wrap/unwrap to an external Key Management Service;
	// the wrapping key never enters the process.
	SchemeKMS WrapScheme = "kms"
)

// KeySize is the required byte length for KEKs and DEKs (256-bit keys).
const KeySize = 32

// Key labels. Exactly one row carries LabelActive at any time; at most one
// row carries a rotating label; retired labels accumulate until their
// records have been migrated and the operator deletes the rows.
const (
	// LabelActive marks the key generation used for new writes outside of a
	// rotation window.
	LabelActive = "active"

	rotatingPrefix = "rotating::"
	retiredPrefix  = "retired::"
)

// NewRotatingLabel builds a rotating label for a rotation begun at ts.
func NewRotatingLabel(ts time.Time) string {
	return fmt.Sprintf("%s%d", rotatingPrefix, ts.UTC().Unix())
}

// NewRetiredLabel builds a retired label for a key demoted at ts. Nanosecond
// precision keeps retirements in the same second from colliding on the label
// unique index.
func NewRetiredLabel(ts time.Time) string {
	return fmt.Sprintf("%s%d", retiredPrefix, ts.UTC().UnixNano())
}

// IsRotatingLabel reports whether label has the rotating shape.
func IsRotatingLabel(label string) bool {
	return strings.HasPrefix(label, rotatingPrefix)
}

// IsRetiredLabel reports whether label has the retired shape.
func IsRetiredLabel(label string) bool {
	return strings.HasPrefix(label, retiredPrefix)
}

// ValidLabel reports whether label has one of the three permitted shapes.
func ValidLabel(label string) bool {
	return label == LabelActive || IsRotatingLabel(label) || IsRetiredLabel(label)
}
