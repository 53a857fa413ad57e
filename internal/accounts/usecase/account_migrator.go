package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// AccountMigrator moves account rows between DEK generations. It satisfies
// the rotation orchestrator's RecordMigrator contract; the orchestrator
// calls ReencryptBatch inside a transaction so ListPending's row claims hold
// until the batch commits.
type AccountMigrator struct {
	accountRepo AccountRepository
	keyManager  cryptoService.KeyManager
}

// NewAccountMigrator creates a new account migrator.
func NewAccountMigrator(accountRepo AccountRepository, keyManager cryptoService.KeyManager) *AccountMigrator {
	return &AccountMigrator{accountRepo: accountRepo, keyManager: keyManager}
}

// Table names the migrated table.
func (m *AccountMigrator) Table() string { return "accounts" }

// CountPending counts accounts whose label differs from label.
func (m *AccountMigrator) CountPending(ctx context.Context, label string) (int64, error) {
	return m.accountRepo.CountPending(ctx, label)
}

// CountEncrypted counts all accounts; every account carries encrypted fields.
func (m *AccountMigrator) CountEncrypted(ctx context.Context) (int64, error) {
	return m.accountRepo.CountAll(ctx)
}

// ReencryptBatch decrypts up to batchSize lagging accounts with their
// recorded generation and re-encrypts them under label. The previous-label
// guard on the update keeps the operation idempotent under concurrent
// workers and re-runs.
func (m *AccountMigrator) ReencryptBatch(ctx context.Context, label string, batchSize int) (int64, error) {
	accounts, err := m.accountRepo.ListPending(ctx, label, batchSize)
	if err != nil {
		return 0, err
	}

	var migrated int64
	for _, account := range accounts {
		previousLabel := account.Label

		email, err := m.keyManager.DecryptField(ctx, &account.Email, previousLabel)
		if err != nil {
			return migrated, err
		}
		phone, err := m.keyManager.DecryptField(ctx, &account.Phone, previousLabel)
		if err != nil {
			cryptoDomain.Zero(email)
			return migrated, err
		}

		fields, err := m.keyManager.EncryptFieldsWithLabel(ctx, label, email, phone)
		cryptoDomain.Zero(email)
		cryptoDomain.Zero(phone)
		if err != nil {
			return migrated, err
		}

		account.Email = *fields[0]
		account.Phone = *fields[1]
		account.Label = label
		account.UpdatedAt = time.Now().UTC()

		affected, err := m.accountRepo.UpdateEncryptedFields(ctx, account, previousLabel)
		if err != nil {
			return migrated, err
		}
		migrated += affected
	}

	return migrated, nil
}

// Relabel rewrites the label column only.
func (m *AccountMigrator) Relabel(ctx context.Context, from, to string) (int64, error) {
	return m.accountRepo.RelabelAll(ctx, from, to)
}
