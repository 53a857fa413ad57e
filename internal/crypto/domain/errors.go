package domain

import (
	"github.com/allisson/fieldcrypt/internal/errors"
)

// Crypto-subsystem error taxonomy. Callers branch on these with errors.Is;
// no error is ever swallowed inside the subsystem.
var (
	// ErrUnwrapAuth indicates wrong key material or tampered DEK ciphertext.
	// Fatal for readiness; never retried. With zero encrypted records,
	// force-new-active-dek is the escape hatch; otherwise the correct KEK or
	// KMS key must be restored.
	ErrUnwrapAuth = errors.Wrap(errors.ErrInvalidInput, "dek unwrap authentication failed")

	// ErrBackendUnavailable indicates the KMS could not be reached. Transient;
	// retried with backoff, and readiness reports not-ready until resolved.
	ErrBackendUnavailable = errors.Wrap(errors.ErrUnavailable, "wrap backend unavailable")

	// ErrDecryptFailed indicates a field failed authenticated decryption:
	// corrupted data or the wrong key for the record's label.
	ErrDecryptFailed = errors.Wrap(errors.ErrInvalidInput, "field decryption failed")

	// ErrRotationIncomplete is returned by finalize while records remain under
	// an old label; the remedy is running more batches, not an alarm.
	ErrRotationIncomplete = errors.Wrap(errors.ErrConflict, "rotation incomplete")

	// ErrNoRotationInProgress is returned by run/finalize when no rotating key
	// exists.
	ErrNoRotationInProgress = errors.Wrap(errors.ErrConflict, "no rotation in progress")

	// ErrRotationInProgress is returned by begin (and force-new-active-dek)
	// while a rotating key already exists.
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "rotation already in progress")

	// ErrEncryptedRecordsExist blocks force-new-active-dek once any record has
	// been encrypted, since activating a fresh DEK would orphan them.
	ErrEncryptedRecordsExist = errors.Wrap(errors.ErrConflict, "encrypted records exist")

	// ErrWrapSchemeMismatch is returned by rotation begin when the configured
	// write backend does not match the active key's wrap scheme. Rotation
	// replaces the DEK, never how it is wrapped; scheme changes go through
	// rewrap.
	ErrWrapSchemeMismatch = errors.Wrap(errors.ErrConflict, "wrap scheme mismatch")

	// ErrKeyNotFound indicates no key row matches the requested label.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "encryption key not found")

	// ErrSettingsNotFound indicates the singleton settings row is missing.
	ErrSettingsNotFound = errors.Wrap(errors.ErrNotFound, "encryption settings not found")

	// ErrUnsupportedAlgorithm indicates an unknown AEAD algorithm.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrUnsupportedScheme indicates an unknown wrap scheme.
	ErrUnsupportedScheme = errors.Wrap(errors.ErrInvalidInput, "unsupported wrap scheme")

	// ErrInvalidKeySize indicates a KEK or DEK is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrKEKNotSet indicates the KEK environment variable is not configured.
	ErrKEKNotSet = errors.Wrap(errors.ErrInvalidInput, "kek not set")

	// ErrInvalidKEKBase64 indicates the KEK environment variable is not valid
	// standard base64.
	ErrInvalidKEKBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid kek base64")
)
