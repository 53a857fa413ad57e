package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// MySQLAccountRepository implements account persistence for MySQL.
// Uses BINARY(16) for UUIDs and VARBINARY for ciphertexts.
type MySQLAccountRepository struct {
	db *sql.DB
}

// NewMySQLAccountRepository creates a new MySQL account repository.
func NewMySQLAccountRepository(db *sql.DB) *MySQLAccountRepository {
	return &MySQLAccountRepository{db: db}
}

// Create inserts a new account.
func (m *MySQLAccountRepository) Create(ctx context.Context, account *accountsDomain.Account) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO accounts (id, name, email_encrypted, email_nonce, phone_encrypted, phone_nonce, enc_label, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := account.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal account id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLAccountRepository) Get(ctx context.Context, accountID uuid.UUID) (*accountsDomain.Account, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, email_encrypted, email_nonce, phone_encrypted, phone_nonce, enc_label, created_at, updated_at
			  FROM accounts
			  WHERE id = ?`

	id, err := accountID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal account id")
	}

	var account accountsDomain.Account
	var idBytes []byte
	err = querier.QueryRowContext(ctx, query, id).Scan(
		&idBytes,
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

	if err := account.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal account id")
	}

	return &account, nil
}

// ListPending claims up to limit accounts whose label differs from label.
// Uses FOR UPDATE SKIP LOCKED; must run inside a transaction.
func (m *MySQLAccountRepository) ListPending(ctx context.Context, label string, limit int) ([]*accountsDomain.Account, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, email_encrypted, email_nonce, phone_encrypted, phone_nonce, enc_label, created_at, updated_at
			  FROM accounts
			  WHERE enc_label != ?
			  ORDER BY id
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, label, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending accounts")
	}
	defer func() { _ = rows.Close() }()

	var accounts []*accountsDomain.Account
	for rows.Next() {
		var account accountsDomain.Account
		var idBytes []byte
		err := rows.Scan(
			&idBytes,
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

		if err := account.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal account id")
		}

		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate accounts")
	}

	return accounts, nil
}

// CountPending counts accounts whose label differs from label.
func (m *MySQLAccountRepository) CountPending(ctx context.Context, label string) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM accounts WHERE enc_label != ?`

	var count int64
	if err := querier.QueryRowContext(ctx, query, label).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending accounts")
	}
	return count, nil
}

// CountAll counts all accounts.
func (m *MySQLAccountRepository) CountAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count accounts")
	}
	return count, nil
}

// UpdateEncryptedFields replaces an account's ciphertexts and label guarded
// by the previous label for idempotence.
func (m *MySQLAccountRepository) UpdateEncryptedFields(ctx context.Context, account *accountsDomain.Account, previousLabel string) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE accounts
			  SET email_encrypted = ?,
			  	  email_nonce = ?,
				  phone_encrypted = ?,
				  phone_nonce = ?,
				  enc_label = ?,
				  updated_at = ?
			  WHERE id = ? AND enc_label = ?`

	id, err := account.ID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal account id")
	}

	result, err := querier.ExecContext(
		ctx,
		query,
		account.Email.Ciphertext,
		account.Email.Nonce,
		account.Phone.Ciphertext,
		account.Phone.Nonce,
		account.Label,
		account.UpdatedAt,
		id,
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
func (m *MySQLAccountRepository) RelabelAll(ctx context.Context, from, to string) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE accounts SET enc_label = ? WHERE enc_label = ?`

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
