// Package usecase implements the business logic of the envelope encryption
// subsystem: bootstrap, DEK rotation, and wrap-envelope rewrap. Use cases
// coordinate the key manager service, the key and settings repositories, and
// the record migrators of the tables carrying encrypted fields, using
// TxManager to keep multi-step label transitions atomic.
package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// KeyRepository defines the interface for encryption key persistence.
//
// Implementations must be transaction-aware through context propagation
// (database.GetTx) so that label transitions performed by rotation finalize
// commit or roll back as a unit.
type KeyRepository interface {
	// Create stores a new encryption key row. The label unique index rejects
	// a second row with the same label.
	Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error

	// GetByLabel retrieves a key by label, ErrKeyNotFound if absent.
	GetByLabel(ctx context.Context, label string) (*cryptoDomain.EncryptionKey, error)

	// GetRotating retrieves the single rotating-labeled key, ErrKeyNotFound
	// if no rotation is open.
	GetRotating(ctx context.Context) (*cryptoDomain.EncryptionKey, error)

	// List retrieves all key rows ordered by creation time.
	List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error)

	// UpdateLabel relabels a key row.
	UpdateLabel(ctx context.Context, keyID uuid.UUID, label string) error

	// UpdateWrapFields replaces the wrap envelope of a key row in place.
	UpdateWrapFields(ctx context.Context, keyID uuid.UUID, wrapped *cryptoDomain.WrappedDEK) error
}

// SettingsRepository defines the interface for the singleton settings row.
type SettingsRepository interface {
	// Get retrieves the settings row, ErrSettingsNotFound before bootstrap.
	Get(ctx context.Context) (*cryptoDomain.EncryptionSettings, error)

	// Upsert creates or repoints the settings row.
	Upsert(ctx context.Context, settings *cryptoDomain.EncryptionSettings) error
}

// RecordMigrator is implemented once per table carrying encrypted fields.
// The rotation use case drives migrators generically; it never touches data
// rows itself.
type RecordMigrator interface {
	// Table names the underlying table, used in logs and progress output.
	Table() string

	// CountPending counts rows whose label differs from label.
	CountPending(ctx context.Context, label string) (int64, error)

	// CountEncrypted counts all rows carrying encrypted fields.
	CountEncrypted(ctx context.Context) (int64, error)

	// ReencryptBatch re-encrypts up to batchSize lagging rows under label and
	// returns how many rows it migrated. Idempotent: rows already carrying
	// label are never picked up, and a row migrated concurrently is skipped.
	ReencryptBatch(ctx context.Context, label string, batchSize int) (int64, error)

	// Relabel rewrites the label column only, from one label to another,
	// leaving ciphertexts untouched. Used by rotation finalize.
	Relabel(ctx context.Context, from, to string) (int64, error)
}

// KeyUseCase manages the non-rotation key lifecycle.
type KeyUseCase interface {
	// EnsureActiveKey bootstraps the subsystem: if no settings row exists it
	// generates a DEK, wraps it under the configured backend, stores it as
	// the active key, and points the write label at it. Idempotent.
	EnsureActiveKey(ctx context.Context, alg cryptoDomain.Algorithm) error

	// Status reports the operator-facing state of the subsystem.
	Status(ctx context.Context) (*cryptoDomain.KeyStatus, error)

	// ForceNewActiveDek replaces the active DEK without migrating data. It
	// refuses while a rotation is open (ErrRotationInProgress) and when
	// encrypted records exist (ErrEncryptedRecordsExist), because existing
	// ciphertexts would become orphaned from the write path.
	ForceNewActiveDek(ctx context.Context, alg cryptoDomain.Algorithm) error
}

// RotationUseCase drives the three-step DEK rotation state machine. Each step
// is independently invocable and crash-safe: the rotating label and the write
// label persist all intermediate state, so an interrupted rotation resumes
// with another Run call.
type RotationUseCase interface {
	// Begin opens a rotation: generates a new DEK under a rotating label and
	// repoints the write label at it, atomically. Returns the rotating label.
	// Fails with ErrRotationInProgress if a rotation is already open.
	Begin(ctx context.Context, alg cryptoDomain.Algorithm) (string, error)

	// Run migrates one batch of lagging rows per registered migrator and
	// reports progress. Callers loop until Remaining reaches zero. Fails with
	// ErrNoRotationInProgress if no rotation is open.
	Run(ctx context.Context, batchSize int) (*cryptoDomain.RotationProgress, error)

	// Finalize verifies no rows lag the rotating generation, then atomically
	// promotes the rotating key to active, retires the old active key, and
	// relabels migrated rows back to the active label. Fails with
	// ErrRotationIncomplete while lagging rows remain.
	Finalize(ctx context.Context) error
}

// RewrapUseCase replaces the wrap envelope of every key row, switching to a
// new KEK or to a KMS key. DEKs and data rows are never touched.
type RewrapUseCase interface {
	// Rewrap unwraps every key row through its recorded scheme and rewraps
	// it under the target backend, committing all rows in one transaction.
	// Returns the number of rewrapped rows.
	Rewrap(ctx context.Context) (int, error)
}
