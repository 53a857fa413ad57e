// Package repository implements account persistence for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// PostgreSQLAccountRepository implements account persistence for PostgreSQL.
type PostgreSQLAccountRepository struct {
	db *sql.DB
}

// NewPostgreSQLAccountRepository creates a new PostgreSQL account repository.
func NewPostgreSQLAccountRepository(db *sql.DB) *PostgreSQLAccountRepository {
	return &PostgreSQLAccountRepository{db: db}
}

// Create inserts a new account.
func (p *PostgreSQLAccountRepository) Create(ctx context.Context, account *accountsDomain.Account) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO accounts (id, name, email_encrypted, email_nonce, phone_encrypted, phone_nonce, enc_label, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		account.ID,
		account.Name,
		account.Email.Ciphertext,
		account.Email.Nonce,
		account.Phone.Ciphertext,
		account.Phone.Nonce,
		account.Label,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create account")
	}
	return nil
}

// Get retrieves an account by its ID.
func (p *PostgreSQLAccountRepository) Get(ctx context.Context, accountID uuid.UUID) (*accountsDomain.Account, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, email_encrypted, email_nonce, phone_encrypted, phone_nonce, enc_label, created_at, updated_at
			  FROM accounts
			  WHERE id = $1`

	var account accountsDomain.Account
	err := querier.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID,
		&account.Name,
		&account.Email.Ciphertext,
		&account.Email.Nonce,
		&account.Phone.Ciphertext,
		&account.Phone.Nonce,
		&account.Label,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, accountsDomain.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get account")
	}

	return &account, nil
}

// ListPending claims up to limit accounts whose label differs from label.
// Uses FOR UPDATE SKIP LOCKED so concurrent rotation workers never pick the
// same rows; must run inside a transaction.
func (p *PostgreSQLAccountRepository) ListPending(ctx context.Context, label string, limit int) ([]*accountsDomain.Account, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, email_encrypted, email_nonce, phone_encrypted, phone_nonce, enc_label, created_at, updated_at
			  FROM accounts
			  WHERE enc_label != $1
			  ORDER BY id
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, label, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending accounts")
	}
	defer func() { _ = rows.Close() }()

	var accounts []*accountsDomain.Account
	for rows.Next() {
		var account accountsDomain.Account
		err := rows.Scan(
			&account.ID,
			&account.Name,
			&account.Email.Ciphertext,
			&account.Email.Nonce,
			&account.Phone.Ciphertext,
			&account.Phone.Nonce,
			&account.Label,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan account")
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate accounts")
	}

	return accounts, nil
}

// CountPending counts accounts whose label differs from label.
func (p *PostgreSQLAccountRepository) CountPending(ctx context.Context, label string) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM accounts WHERE enc_label != $1`

	var count int64
	if err := querier.QueryRowContext(ctx, query, label).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending accounts")
	}
	return count, nil
}

// CountAll counts all accounts.
func (p *PostgreSQLAccountRepository) CountAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count accounts")
	}
	return count, nil
}

// UpdateEncryptedFields replaces an account's ciphertexts and label. The
// previousLabel guard makes re-encryption idempotent: a row already migrated
// by another worker matches zero rows and is skipped.
func (p *PostgreSQLAccountRepository) UpdateEncryptedFields(ctx context.Context, account *accountsDomain.Account, previousLabel string) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE accounts
			  SET email_encrypted = $1,
			  	  email_nonce = $2,
				  phone_encrypted = $3,
				  phone_nonce = $4,
				  enc_label = $5,
				  updated_at = $6
			  WHERE id = $7 AND enc_label = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		account.Email.Ciphertext,
		account.Email.Nonce,
		account.Phone.Ciphertext,
		account.Phone.Nonce,
		account.Label,
		account.UpdatedAt,
		account.ID,
		previousLabel,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to update account encrypted fields")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return affected, nil
}

// RelabelAll rewrites the label column only, leaving ciphertexts untouched.
// Rotation finalize uses it to move rows from the rotating label to active.
func (p *PostgreSQLAccountRepository) RelabelAll(ctx context.Context, from, to string) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE accounts SET enc_label = $1 WHERE enc_label = $2`

	result, err := querier.ExecContext(ctx, query, to, from)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to relabel accounts")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return affected, nil
}
