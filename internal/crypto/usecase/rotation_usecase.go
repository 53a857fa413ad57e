package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/database"
)

// rotationUseCase implements RotationUseCase.
//
// Rotation state lives entirely in the database: the rotating-labeled key
// row and the write label pointing at it. A process crash at any point
// leaves a resumable rotation; re-running Run continues where the last batch
// stopped, and Begin/Finalize refuse to run in the wrong state.
type rotationUseCase struct {
	txManager    database.TxManager
	keyRepo      KeyRepository
	settingsRepo SettingsRepository
	backend      cryptoService.WrapBackend
	keyManager   cryptoService.KeyManager
	migrators    []RecordMigrator
}

// NewRotationUseCase creates a new rotation use case. backend is the
// configured write backend; the rotation DEK is wrapped under it.
func NewRotationUseCase(
	txManager database.TxManager,
	keyRepo KeyRepository,
	settingsRepo SettingsRepository,
	backend cryptoService.WrapBackend,
	keyManager cryptoService.KeyManager,
	migrators []RecordMigrator,
) RotationUseCase {
	return &rotationUseCase{
		txManager:    txManager,
		keyRepo:      keyRepo,
		settingsRepo: settingsRepo,
		backend:      backend,
		keyManager:   keyManager,
		migrators:    migrators,
	}
}

// Begin opens a rotation. The new DEK row and the write-label repoint commit
// in one transaction, so new writes start using the rotating generation the
// moment the rotation exists.
func (r *rotationUseCase) Begin(ctx context.Context, alg cryptoDomain.Algorithm) (string, error) {
	var label string

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		settings, err := r.settingsRepo.Get(ctx)
		if err != nil {
			return err
		}
		if cryptoDomain.IsRotatingLabel(settings.WriteLabel) {
			return cryptoDomain.ErrRotationInProgress
		}

		if _, err := r.keyRepo.GetRotating(ctx); err == nil {
			return cryptoDomain.ErrRotationInProgress
		} else if !errors.Is(err, cryptoDomain.ErrKeyNotFound) {
			return err
		}

		// Rotation never migrates wrap schemes; that is rewrap's job.
		active, err := r.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		if err != nil {
			return err
		}
		if active.WrapScheme != r.backend.Scheme() {
			return fmt.Errorf("%w: active key is %s, write backend is %s",
				cryptoDomain.ErrWrapSchemeMismatch, active.WrapScheme, r.backend.Scheme())
		}

		label = cryptoDomain.NewRotatingLabel(time.Now())
		if _, err := createEncryptionKey(ctx, r.keyRepo, r.backend, label, alg); err != nil {
			return err
		}

		return r.settingsRepo.Upsert(ctx, &cryptoDomain.EncryptionSettings{
			WriteLabel: label,
			UpdatedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return "", err
	}

	return label, nil
}

// Run migrates one batch per registered migrator. Each batch commits in its
// own transaction, so progress survives interruption and the batch size
// bounds both lock time and memory.
func (r *rotationUseCase) Run(ctx context.Context, batchSize int) (*cryptoDomain.RotationProgress, error) {
	settings, err := r.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cryptoDomain.IsRotatingLabel(settings.WriteLabel) {
		return nil, cryptoDomain.ErrNoRotationInProgress
	}

	progress := &cryptoDomain.RotationProgress{}
	for _, m := range r.migrators {
		err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
			migrated, err := m.ReencryptBatch(ctx, settings.WriteLabel, batchSize)
			if err != nil {
				return err
			}
			progress.Migrated += migrated
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to re-encrypt batch for table %s: %w", m.Table(), err)
		}
	}

	for _, m := range r.migrators {
		remaining, err := m.CountPending(ctx, settings.WriteLabel)
		if err != nil {
			return nil, err
		}
		progress.Remaining += remaining
	}

	return progress, nil
}

// Finalize promotes the rotating generation. The pending-row verification,
// both key relabels, the data-row relabel, and the write-label repoint all
// commit in one transaction; afterwards the in-process DEK cache is
// repointed so reads continue without a restart.
func (r *rotationUseCase) Finalize(ctx context.Context) error {
	var rotatingLabel, retiredLabel string

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		settings, err := r.settingsRepo.Get(ctx)
		if err != nil {
			return err
		}
		if !cryptoDomain.IsRotatingLabel(settings.WriteLabel) {
			return cryptoDomain.ErrNoRotationInProgress
		}
		rotatingLabel = settings.WriteLabel

		for _, m := range r.migrators {
			pending, err := m.CountPending(ctx, rotatingLabel)
			if err != nil {
				return err
			}
			if pending > 0 {
				return fmt.Errorf("%w: %d rows pending in table %s", cryptoDomain.ErrRotationIncomplete, pending, m.Table())
			}
		}

		rotatingKey, err := r.keyRepo.GetByLabel(ctx, rotatingLabel)
		if err != nil {
			return err
		}
		activeKey, err := r.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		if err != nil {
			return err
		}

		retiredLabel = cryptoDomain.NewRetiredLabel(time.Now())
		if err := r.keyRepo.UpdateLabel(ctx, activeKey.ID, retiredLabel); err != nil {
			return err
		}
		if err := r.keyRepo.UpdateLabel(ctx, rotatingKey.ID, cryptoDomain.LabelActive); err != nil {
			return err
		}

		// Rows migrated during the rotation carry the rotating label; move
		// them to the promoted active label in the same transaction so no
		// row ever points at a label without a key row.
		for _, m := range r.migrators {
			if _, err := m.Relabel(ctx, rotatingLabel, cryptoDomain.LabelActive); err != nil {
				return err
			}
		}

		return r.settingsRepo.Upsert(ctx, &cryptoDomain.EncryptionSettings{
			WriteLabel: cryptoDomain.LabelActive,
			UpdatedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	r.keyManager.Promote(rotatingLabel, retiredLabel)
	return nil
}
