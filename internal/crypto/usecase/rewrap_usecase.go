package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/database"
)

// rewrapUseCase implements RewrapUseCase.
//
// Rewrap changes only the wrap envelope of key rows: each DEK is unwrapped
// through the backend its row records (the old KEK, or the old KMS key) and
// rewrapped under the target backend. Data rows, labels, and the DEKs
// themselves never change, so the operation is invisible to readers and
// writers.
type rewrapUseCase struct {
	txManager database.TxManager
	keyRepo   KeyRepository
	source    cryptoService.BackendRegistry
	target    cryptoService.WrapBackend
}

// NewRewrapUseCase creates a new rewrap use case. source resolves the
// backend for each row's recorded scheme; target produces the new envelope.
func NewRewrapUseCase(
	txManager database.TxManager,
	keyRepo KeyRepository,
	source cryptoService.BackendRegistry,
	target cryptoService.WrapBackend,
) RewrapUseCase {
	return &rewrapUseCase{
		txManager: txManager,
		keyRepo:   keyRepo,
		source:    source,
		target:    target,
	}
}

// Rewrap rewraps every key row under the target backend. The unwrap and wrap
// calls (which may hit an external KMS) run outside the transaction; only
// the row updates are transactional, committing all envelopes or none.
func (r *rewrapUseCase) Rewrap(ctx context.Context) (int, error) {
	keys, err := r.keyRepo.List(ctx)
	if err != nil {
		return 0, err
	}

	type rewrapped struct {
		keyID   uuid.UUID
		wrapped *cryptoDomain.WrappedDEK
	}

	updates := make([]rewrapped, 0, len(keys))
	for _, key := range keys {
		backend, err := r.source.ForScheme(key.WrapScheme)
		if err != nil {
			return 0, err
		}

		dek, err := backend.Unwrap(ctx, key)
		if err != nil {
			return 0, err
		}

		wrapped, err := r.target.Wrap(ctx, dek)
		cryptoDomain.Zero(dek)
		if err != nil {
			return 0, err
		}

		updates = append(updates, rewrapped{keyID: key.ID, wrapped: wrapped})
	}

	err = r.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, u := range updates {
			if err := r.keyRepo.UpdateWrapFields(ctx, u.keyID, u.wrapped); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(updates), nil
}
