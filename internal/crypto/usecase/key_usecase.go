package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/database"
)

// keyUseCase implements KeyUseCase.
//
// It orchestrates the non-rotation key lifecycle: bootstrap of the first
// active DEK, operator status reporting, and the forced DEK replacement used
// when no encrypted data exists yet. All multi-step label changes run inside
// a transaction so a crash never leaves the label set inconsistent.
type keyUseCase struct {
	txManager    database.TxManager
	keyRepo      KeyRepository
	settingsRepo SettingsRepository
	backend      cryptoService.WrapBackend
	keyManager   cryptoService.KeyManager
	migrators    []RecordMigrator
}

// NewKeyUseCase creates a new key use case. backend is the configured write
// backend; new DEKs are wrapped under it.
func NewKeyUseCase(
	txManager database.TxManager,
	keyRepo KeyRepository,
	settingsRepo SettingsRepository,
	backend cryptoService.WrapBackend,
	keyManager cryptoService.KeyManager,
	migrators []RecordMigrator,
) KeyUseCase {
	return &keyUseCase{
		txManager:    txManager,
		keyRepo:      keyRepo,
		settingsRepo: settingsRepo,
		backend:      backend,
		keyManager:   keyManager,
		migrators:    migrators,
	}
}

// createEncryptionKey generates a DEK, wraps it under the backend, and
// persists the key row under label. The plaintext DEK is zeroed before
// returning; callers resolve it again through the key manager when needed.
func createEncryptionKey(
	ctx context.Context,
	keyRepo KeyRepository,
	backend cryptoService.WrapBackend,
	label string,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	dek, err := cryptoService.GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	wrapped, err := backend.Wrap(ctx, dek)
	if err != nil {
		return nil, err
	}

	key := &cryptoDomain.EncryptionKey{
		ID:           uuid.Must(uuid.NewV7()),
		Label:        label,
		Algorithm:    alg,
		DekWrapped:   wrapped.Ciphertext,
		DekWrapNonce: wrapped.Nonce,
		WrapScheme:   wrapped.Scheme,
		KMSKeyID:     wrapped.KMSKeyID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if err := keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EnsureActiveKey bootstraps the subsystem if it has not been bootstrapped
// yet. Safe to call on every startup.
func (k *keyUseCase) EnsureActiveKey(ctx context.Context, alg cryptoDomain.Algorithm) error {
	return k.txManager.WithTx(ctx, func(ctx context.Context) error {
		_, err := k.settingsRepo.Get(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, cryptoDomain.ErrSettingsNotFound) {
			return err
		}

		// A crash between key creation and the settings upsert leaves an
		// active row without settings; reuse it instead of failing on the
		// label unique index.
		_, err = k.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		if errors.Is(err, cryptoDomain.ErrKeyNotFound) {
			if _, err := createEncryptionKey(ctx, k.keyRepo, k.backend, cryptoDomain.LabelActive, alg); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		return k.settingsRepo.Upsert(ctx, &cryptoDomain.EncryptionSettings{
			WriteLabel: cryptoDomain.LabelActive,
			UpdatedAt:  time.Now().UTC(),
		})
	})
}

// Status reports the operator-facing state of the subsystem.
func (k *keyUseCase) Status(ctx context.Context) (*cryptoDomain.KeyStatus, error) {
	status := &cryptoDomain.KeyStatus{
		Ready:      k.keyManager.Ready(),
		AuthFailed: k.keyManager.AuthFailed(),
	}

	settings, err := k.settingsRepo.Get(ctx)
	if err != nil && !errors.Is(err, cryptoDomain.ErrSettingsNotFound) {
		return nil, err
	}
	if settings != nil {
		status.WriteLabel = settings.WriteLabel
	}

	keys, err := k.keyRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if cryptoDomain.IsRotatingLabel(key.Label) {
			status.RotationInProgress = true
			status.RotatingLabel = key.Label
		}
		status.Keys = append(status.Keys, cryptoDomain.KeyStatusEntry{
			Label:      key.Label,
			Algorithm:  key.Algorithm,
			WrapScheme: key.WrapScheme,
			KMSKeyID:   key.KMSKeyID,
			CreatedAt:  key.CreatedAt,
		})
	}

	if settings != nil {
		for _, m := range k.migrators {
			pending, err := m.CountPending(ctx, settings.WriteLabel)
			if err != nil {
				return nil, err
			}
			status.PendingRecords += pending
		}
	}

	return status, nil
}

// ForceNewActiveDek replaces the active DEK in place. Existing ciphertexts
// would become unreachable from the write label, so the operation refuses
// when any encrypted records exist; its purpose is recovering a botched
// bootstrap, not rotation. On a store that was never bootstrapped it creates
// the first active generation instead.
func (k *keyUseCase) ForceNewActiveDek(ctx context.Context, alg cryptoDomain.Algorithm) error {
	var retiredLabel string

	err := k.txManager.WithTx(ctx, func(ctx context.Context) error {
		settings, err := k.settingsRepo.Get(ctx)
		if err != nil && !errors.Is(err, cryptoDomain.ErrSettingsNotFound) {
			return err
		}
		if settings != nil && cryptoDomain.IsRotatingLabel(settings.WriteLabel) {
			return cryptoDomain.ErrRotationInProgress
		}

		if _, err := k.keyRepo.GetRotating(ctx); err == nil {
			return cryptoDomain.ErrRotationInProgress
		} else if !errors.Is(err, cryptoDomain.ErrKeyNotFound) {
			return err
		}

		for _, m := range k.migrators {
			count, err := m.CountEncrypted(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				return cryptoDomain.ErrEncryptedRecordsExist
			}
		}

		// With no active row there is nothing to retire; the forced DEK
		// becomes the first generation.
		active, err := k.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		if err != nil && !errors.Is(err, cryptoDomain.ErrKeyNotFound) {
			return err
		}
		if active != nil {
			retiredLabel = cryptoDomain.NewRetiredLabel(time.Now())
			if err := k.keyRepo.UpdateLabel(ctx, active.ID, retiredLabel); err != nil {
				return err
			}
		}

		if _, err := createEncryptionKey(ctx, k.keyRepo, k.backend, cryptoDomain.LabelActive, alg); err != nil {
			return err
		}

		return k.settingsRepo.Upsert(ctx, &cryptoDomain.EncryptionSettings{
			WriteLabel: cryptoDomain.LabelActive,
			UpdatedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	k.keyManager.Promote("", retiredLabel)
	return nil
}
