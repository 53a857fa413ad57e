package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// MySQLKeyRepository implements encryption key persistence for MySQL.
// Uses BINARY(16) for UUIDs and BLOB for binary data with transaction support.
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQL encryption key repository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

// Create inserts a new encryption key row.
func (m *MySQLKeyRepository) Create(ctx context.Context, key *cryptoDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO encryption_keys (id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLKeyRepository) GetByLabel(
	ctx context.Context,
	label string,
) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at
			  FROM encryption_keys
			  WHERE label = ?`

	return m.scanKey(querier.QueryRowContext(ctx, query, label))
}

// GetRotating retrieves the single rotating-labeled key, if any.
func (m *MySQLKeyRepository) GetRotating(ctx context.Context) (*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, label, algorithm, dek_wrapped, dek_wrap_nonce, wrap_scheme, kms_key_id, created_at
			  FROM encryption_keys
			  WHERE label LIKE 'rotating::%'`

	return m.scanKey(querier.QueryRowContext(ctx, query))
}

// List retrieves all encryption key rows ordered by creation time.
func (m *MySQLKeyRepository) List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

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
		var idBytes []byte

		err := rows.Scan(
			&idBytes,
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

		if err := key.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal key id")
		}

		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}

	return keys, nil
}

// UpdateLabel relabels a key row.
func (m *MySQLKeyRepository) UpdateLabel(ctx context.Context, keyID uuid.UUID, label string) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE encryption_keys SET label = ? WHERE id = ?`

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	result, err := querier.ExecContext(ctx, query, label, id)
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

// UpdateWrapFields replaces the wrap envelope of a key row in place.
func (m *MySQLKeyRepository) UpdateWrapFields(ctx context.Context, keyID uuid.UUID, wrapped *cryptoDomain.WrappedDEK) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE encryption_keys
			  SET dek_wrapped = ?,
			  	  dek_wrap_nonce = ?,
				  wrap_scheme = ?,
				  kms_key_id = ?
			  WHERE id = ?`

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	result, err := querier.ExecContext(
		ctx,
		query,
		wrapped.Ciphertext,
		wrapped.Nonce,
		wrapped.Scheme,
		wrapped.KMSKeyID,
		id,
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

func (m *MySQLKeyRepository) scanKey(row *sql.Row) (*cryptoDomain.EncryptionKey, error) {
	var key cryptoDomain.EncryptionKey
	var idBytes []byte

	err := row.Scan(
		&idBytes,
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

	if err := key.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal key id")
	}

	return &key, nil
}
