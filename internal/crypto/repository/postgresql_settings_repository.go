package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// PostgreSQLSettingsRepository implements encryption settings persistence for
// PostgreSQL. The table holds one row (id = 1) carrying the write label.
type PostgreSQLSettingsRepository struct {
	db *sql.DB
}

// NewPostgreSQLSettingsRepository creates a new PostgreSQL settings repository.
func NewPostgreSQLSettingsRepository(db *sql.DB) *PostgreSQLSettingsRepository {
	return &PostgreSQLSettingsRepository{db: db}
}

// Get retrieves the singleton settings row.
func (p *PostgreSQLSettingsRepository) Get(ctx context.Context) (*cryptoDomain.EncryptionSettings, error) {
	querier := database.GetTx(ctx, p.db)

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
func (p *PostgreSQLSettingsRepository) Upsert(ctx context.Context, settings *cryptoDomain.EncryptionSettings) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_settings (id, write_label, updated_at)
			  VALUES (1, $1, $2)
			  ON CONFLICT (id) DO UPDATE SET write_label = EXCLUDED.write_label, updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(ctx, query, settings.WriteLabel, settings.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert encryption settings")
	}

	return nil
}
