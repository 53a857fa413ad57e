package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

type dekEntry struct {
	key []byte
	alg cryptoDomain.Algorithm
}

// KeyManagerService implements KeyManager. DEKs are unwrapped once per label
// and cached for the process lifetime; concurrent first-resolutions of the
// same label are collapsed with singleflight so the wrap backend sees one
// call. An unwrap authentication failure latches and is never retried, so a
// process booted with the wrong KEK stays unready instead of hammering the
// backend.
type KeyManagerService struct {
	keys        KeyStore
	settings    SettingsStore
	backends    BackendRegistry
	aeadManager AEADManager

	cache      sync.Map // label -> *dekEntry
	group      singleflight.Group
	ready      atomic.Bool
	authFailed atomic.Bool
}

// NewKeyManager creates a new KeyManagerService.
func NewKeyManager(keys KeyStore, settings SettingsStore, backends BackendRegistry, aeadManager AEADManager) *KeyManagerService {
	return &KeyManagerService{
		keys:        keys,
		settings:    settings,
		backends:    backends,
		aeadManager: aeadManager,
	}
}

// EncryptFields encrypts plaintexts under the write label's DEK.
func (s *KeyManagerService) EncryptFields(ctx context.Context, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, string, error) {
	label, err := s.resolveWrite(ctx)
	if err != nil {
		return nil, "", err
	}

	fields, err := s.EncryptFieldsWithLabel(ctx, label, plaintexts...)
	if err != nil {
		return nil, "", err
	}

	return fields, label, nil
}

// EncryptFieldsWithLabel encrypts plaintexts under a specific label's DEK.
func (s *KeyManagerService) EncryptFieldsWithLabel(ctx context.Context, label string, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, error) {
	entry, err := s.resolve(ctx, label)
	if err != nil {
		return nil, err
	}

	cipher, err := s.aeadManager.CreateCipher(entry.key, entry.alg)
	if err != nil {
		return nil, err
	}

	fields := make([]*cryptoDomain.EncryptedField, 0, len(plaintexts))
	for _, plaintext := range plaintexts {
		ciphertext, nonce, err := cipher.Encrypt(plaintext, nil)
		if err != nil {
			return nil, err
		}
		fields = append(fields, &cryptoDomain.EncryptedField{Ciphertext: ciphertext, Nonce: nonce})
	}

	return fields, nil
}

// DecryptField decrypts one field using the DEK generation named by label.
func (s *KeyManagerService) DecryptField(ctx context.Context, field *cryptoDomain.EncryptedField, label string) ([]byte, error) {
	entry, err := s.resolve(ctx, label)
	if err != nil {
		return nil, err
	}

	cipher, err := s.aeadManager.CreateCipher(entry.key, entry.alg)
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(field.Ciphertext, field.Nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: label %s", cryptoDomain.ErrDecryptFailed, label)
	}

	return plaintext, nil
}

// Warm resolves the write DEK. Called at server start and by the readiness
// probe while the process is still unready.
func (s *KeyManagerService) Warm(ctx context.Context) error {
	if s.authFailed.Load() {
		return cryptoDomain.ErrUnwrapAuth
	}

	if _, err := s.resolveWrite(ctx); err != nil {
		return err
	}

	return nil
}

// Ready reports write-path readiness.
func (s *KeyManagerService) Ready() bool {
	return s.ready.Load() && !s.authFailed.Load()
}

// AuthFailed reports whether an unwrap authentication failure latched.
func (s *KeyManagerService) AuthFailed() bool {
	return s.authFailed.Load()
}

// Promote repoints the cache after a label transition. The promoted entry is
// republished under the active label and the outgoing active entry under its
// retired label, so reads keep working without a restart. When promotedLabel
// is not cached (or empty, as after a forced DEK replacement) the active
// entry is dropped and the next use resolves the new row from storage.
func (s *KeyManagerService) Promote(promotedLabel, retiredLabel string) {
	if current, ok := s.cache.Load(cryptoDomain.LabelActive); ok {
		s.cache.Store(retiredLabel, current)
	}

	if promoted, ok := s.cache.Load(promotedLabel); promotedLabel != "" && ok {
		s.cache.Store(cryptoDomain.LabelActive, promoted)
	} else {
		s.cache.Delete(cryptoDomain.LabelActive)
	}

	if promotedLabel != "" {
		s.cache.Delete(promotedLabel)
	}
}

// resolveWrite resolves the current write label's DEK and latches readiness
// on success. Readiness tracks the write path only; resolving retired labels
// for reads does not make an unbootstrapped process ready.
func (s *KeyManagerService) resolveWrite(ctx context.Context) (string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}

	if _, err := s.resolve(ctx, settings.WriteLabel); err != nil {
		return "", err
	}

	s.ready.Store(true)
	return settings.WriteLabel, nil
}

func (s *KeyManagerService) resolve(ctx context.Context, label string) (*dekEntry, error) {
	if v, ok := s.cache.Load(label); ok {
		return v.(*dekEntry), nil
	}

	v, err, _ := s.group.Do(label, func() (interface{}, error) {
		if v, ok := s.cache.Load(label); ok {
			return v, nil
		}

		key, err := s.keys.GetByLabel(ctx, label)
		if err != nil {
			return nil, err
		}

		backend, err := s.backends.ForScheme(key.WrapScheme)
		if err != nil {
			return nil, err
		}

		dek, err := backend.Unwrap(ctx, key)
		if err != nil {
			if errors.Is(err, cryptoDomain.ErrUnwrapAuth) {
				s.authFailed.Store(true)
			}
			return nil, err
		}

		entry := &dekEntry{key: dek, alg: key.Algorithm}
		s.cache.Store(label, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*dekEntry), nil
}
