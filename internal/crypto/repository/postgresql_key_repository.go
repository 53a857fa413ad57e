// Package repository implements persistence for encryption key rows and the
// singleton encryption settings row, for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// PostgreSQLKeyRepository implements encryption key persistence for PostgreSQL.
// Uses native UUID and BYTEA types with transaction support via database.GetTx().
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQL encryption key repository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

// Create inserts a new encryption key row. The unique index on label makes a
// second row with the same label fail, which is what enforces the
// single-active and single-rotating invariants at the storage level.
func (p *PostgreSQLKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_keys (id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.Label,
		key.Algorithm,
		key.DekWrapped,
		key.DekWrapNonce,
		key.WrapScheme,
		key.KMSKeyID,
		key.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

// GetByLabel retrieves an encryption key by its label.
func (p *PostgreSQLKeyRepository) GetByLabel(
	ctx context.Context,
	label string,
) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at
			  FROM encryption_keys
			  WHERE label = $1`

	var key cryptoDomain.EncryptionKey
	err := querier.QueryRowContext(ctx, query, label).Scan(
		&key.ID,
		&key.Label,
		&key.Algorithm,
		&key.DekWrapped,
		&key.DekWrapNonce,
		&key.WrapScheme,
		&key.KMSKeyID,
		&key.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cryptoDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}

	return &key, nil
}

// GetRotating retrieves the single rotating-labeled key, if any.
func (p *PostgreSQLKeyRepository) GetRotating(ctx context.Context) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at
			  FROM encryption_keys
			  WHERE label LIKE 'rotating::%'`

	var key cryptoDomain.EncryptionKey
	err := querier.QueryRowContext(ctx, query).Scan(
		&key.ID,
		&key.Label,
		&key.Algorithm,
		&key.DekWrapped,
		&key.DekWrapNonce,
		&key.WrapScheme,
		&key.KMSKeyID,
		&key.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cryptoDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rotating encryption key")
	}

	return &key, nil
}

// List retrieves all encryption key rows ordered by creation time.
func (p *PostgreSQLKeyRepository) List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at
			  FROM encryption_keys
			  ORDER BY created_at`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption keys")
	}
	defer func() { _ = rows.Close() }()

	var keys []*cryptoDomain.EncryptionKey
	for rows.Next() {
		var key cryptoDomain.EncryptionKey
		err := rows.Scan(
			&key.ID,
			&key.Label,
			&key.Algorithm,
			&key.DekWrapped,
			&key.DekWrapNonce,
			&key.WrapScheme,
			&key.KMSKeyID,
			&key.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key")
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}

	return keys, nil
}

// UpdateLabel relabels a key row. Rotation finalize promotes the rotating row
// to active and moves the old active row to a retired label with two calls
// inside one transaction.
func (p *PostgreSQLKeyRepository) UpdateLabel(ctx context.Context, keyID uuid.UUID, label string) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE encryption_keys SET label = $1 WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, label, keyID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update encryption key label")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return cryptoDomain.ErrKeyNotFound
	}

	return nil
}

// UpdateWrapFields replaces the wrap envelope of a key row in place. Used by
// rewrap; the DEK itself and all data rows are untouched.
func (p *PostgreSQLKeyRepository) UpdateWrapFields(ctx context.Context, keyID uuid.UUID, wrapped *cryptoDomain.WrappedDEK) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE encryption_keys
			  SET dek_wrapped = $1,
			  	  dek_wrap_nonce = $2,
				  wrap_scheme = $3,
				  kms_key_id = $4
			  WHERE id = $5`

	result, err := querier.ExecContext(
		ctx,
		query,
		wrapped.Ciphertext,
		wrapped.Nonce,
		wrapped.Scheme,
		wrapped.KMSKeyID,
		keyID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update encryption key wrap fields")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return cryptoDomain.ErrKeyNotFound
	}

	return nil
}
