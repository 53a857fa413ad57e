package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	accountsUsecase "github.com/allisson/fieldcrypt/internal/accounts/usecase"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// passthroughTxManager runs the function without a real transaction; the
// in-memory repositories below are their own source of truth.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memKeyRepo is an in-memory KeyRepository enforcing the label unique index.
type memKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*cryptoDomain.EncryptionKey
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: make(map[uuid.UUID]*cryptoDomain.EncryptionKey)}
}

func (r *memKeyRepo) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.Label == key.Label {
			return fmt.Errorf("duplicate label %s", key.Label)
		}
	}
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *memKeyRepo) GetByLabel(ctx context.Context, label string) (*cryptoDomain.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.Label == label {
			cp := *k
			return &cp, nil
		}
	}
	return nil, cryptoDomain.ErrKeyNotFound
}

func (r *memKeyRepo) GetRotating(ctx context.Context) (*cryptoDomain.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if cryptoDomain.IsRotatingLabel(k.Label) {
			cp := *k
			return &cp, nil
		}
	}
	return nil, cryptoDomain.ErrKeyNotFound
}

func (r *memKeyRepo) List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]*cryptoDomain.EncryptionKey, 0, len(r.keys))
	for _, k := range r.keys {
		cp := *k
		keys = append(keys, &cp)
	}
	return keys, nil
}

func (r *memKeyRepo) UpdateLabel(ctx context.Context, keyID uuid.UUID, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[keyID]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}
	for id, k := range r.keys {
		if id != keyID && k.Label == label {
			return fmt.Errorf("duplicate label %s", label)
		}
	}
	key.Label = label
	return nil
}

func (r *memKeyRepo) UpdateWrapFields(ctx context.Context, keyID uuid.UUID, wrapped *cryptoDomain.WrappedDEK) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[keyID]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}
	key.DekWrapped = wrapped.Ciphertext
	key.DekWrapNonce = wrapped.Nonce
	key.WrapScheme = wrapped.Scheme
	key.KMSKeyID = wrapped.KMSKeyID
	return nil
}

// memSettingsRepo is an in-memory SettingsRepository.
type memSettingsRepo struct {
	mu       sync.Mutex
	settings *cryptoDomain.EncryptionSettings
}

func (r *memSettingsRepo) Get(ctx context.Context) (*cryptoDomain.EncryptionSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil, cryptoDomain.ErrSettingsNotFound
	}
	cp := *r.settings
	return &cp, nil
}

func (r *memSettingsRepo) Upsert(ctx context.Context, settings *cryptoDomain.EncryptionSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *settings
	r.settings = &cp
	return nil
}

// memAccountRepo is an in-memory accounts repository. Values are copied on
// the way in and out, like rows through a real driver.
type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*accountsDomain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[uuid.UUID]*accountsDomain.Account)}
}

func (r *memAccountRepo) Create(ctx context.Context, account *accountsDomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *memAccountRepo) Get(ctx context.Context, accountID uuid.UUID) (*accountsDomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, accountsDomain.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *memAccountRepo) ListPending(ctx context.Context, label string, limit int) ([]*accountsDomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*accountsDomain.Account
	for _, account := range r.accounts {
		if account.Label != label {
			cp := *account
			pending = append(pending, &cp)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (r *memAccountRepo) CountPending(ctx context.Context, label string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, account := range r.accounts {
		if account.Label != label {
			count++
		}
	}
	return count, nil
}

func (r *memAccountRepo) CountAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *memAccountRepo) UpdateEncryptedFields(ctx context.Context, account *accountsDomain.Account, previousLabel string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.accounts[account.ID]
	if !ok || current.Label != previousLabel {
		return 0, nil
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return 1, nil
}

func (r *memAccountRepo) RelabelAll(ctx context.Context, from, to string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for _, account := range r.accounts {
		if account.Label == from {
			account.Label = to
			affected++
		}
	}
	return affected, nil
}

// fixture wires a full in-memory subsystem over an env-KEK backend.
type fixture struct {
	kek         *cryptoDomain.KEK
	backend     *cryptoService.EnvKekBackend
	registry    *cryptoService.BackendRegistryService
	keyRepo     *memKeyRepo
	settings    *memSettingsRepo
	accountRepo *memAccountRepo
	keyManager  *cryptoService.KeyManagerService
	migrator    *accountsUsecase.AccountMigrator
	accounts    accountsUsecase.AccountUseCase

	keys     KeyUseCase
	rotation RotationUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kekBytes := make([]byte, cryptoDomain.KeySize)
	for i := range kekBytes {
		kekBytes[i] = byte(i)
	}
	kek := &cryptoDomain.KEK{Key: kekBytes}

	am := cryptoService.NewAEADManager()
	backend := cryptoService.NewEnvKekBackend(kek, am)
	registry := cryptoService.NewBackendRegistry(backend)

	keyRepo := newMemKeyRepo()
	settings := &memSettingsRepo{}
	accountRepo := newMemAccountRepo()

	keyManager := cryptoService.NewKeyManager(keyRepo, settings, registry, am)
	accessor := cryptoService.NewFieldAccessor(keyManager)
	migrator := accountsUsecase.NewAccountMigrator(accountRepo, keyManager)

	tx := passthroughTxManager{}
	migrators := []RecordMigrator{migrator}

	return &fixture{
		kek:         kek,
		backend:     backend,
		registry:    registry,
		keyRepo:     keyRepo,
		settings:    settings,
		accountRepo: accountRepo,
		keyManager:  keyManager,
		migrator:    migrator,
		accounts:    accountsUsecase.NewAccountUseCase(accountRepo, accessor),
		keys:        NewKeyUseCase(tx, keyRepo, settings, backend, keyManager, migrators),
		rotation:    NewRotationUseCase(tx, keyRepo, settings, backend, keyManager, migrators),
	}
}

// bootstrappedFixture bootstraps the fixture and seeds n accounts.
func bootstrappedFixture(t *testing.T, n int) *fixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.keys.EnsureActiveKey(ctx, cryptoDomain.AESGCM))

	for i := 0; i < n; i++ {
		_, err := f.accounts.Create(ctx, accountsDomain.CreateAccountInput{
			Name:  fmt.Sprintf("account-%d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
			Phone: fmt.Sprintf("+15550000%03d", i),
		})
		require.NoError(t, err)
	}

	return f
}
