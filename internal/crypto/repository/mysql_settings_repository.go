package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// MySQLSettingsRepository implements encryption settings persistence for
// MySQL. The table holds one row (id = 1) carrying the write label.
type MySQLSettingsRepository struct {
	db *sql.DB
}

// NewMySQLSettingsRepository creates a new MySQL settings repository.
func NewMySQLSettingsRepository(db *sql.DB) *MySQLSettingsRepository {
	return &MySQLSettingsRepository{db: db}
}

// Get retrieves the singleton settings row.
func (m *MySQLSettingsRepository) Get(ctx context.Context) (*cryptoDomain.EncryptionSettings, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT write_label, updated_at FROM encryption_settings WHERE id = 1`

	var settings cryptoDomain.EncryptionSettings
	err := querier.QueryRowContext(ctx, query).Scan(&settings.WriteLabel, &settings.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cryptoDomain.ErrSettingsNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption settings")
	}

	return &settings, nil
}

// Upsert creates or repoints the singleton settings row.
func (m *MySQLSettingsRepository) Upsert(ctx context.Context, settings *cryptoDomain.EncryptionSettings) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO encryption_settings (id, write_label, updated_at)
			  VALUES (1, ?, ?)
			  ON DUPLICATE KEY UPDATE write_label = VALUES(write_label), updated_at = VALUES(updated_at)`

	_, err := querier.ExecContext(ctx, query, settings.WriteLabel, settings.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert encryption settings")
	}

	return nil
}
