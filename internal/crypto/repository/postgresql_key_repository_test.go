package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/testutil"
)

func newTestKey(label string) *cryptoDomain.EncryptionKey {
	return &cryptoDomain.EncryptionKey{
		ID:           uuid.Must(uuid.NewV7()),
		Label:        label,
		Algorithm:    cryptoDomain.AESGCM,
		DekWrapped:   []byte("wrapped-dek-bytes"),
		DekWrapNonce: []byte("nonce-12bytes"),
		WrapScheme:   cryptoDomain.SchemeEnvKEK,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestPostgreSQLKeyRepository_CreateAndGetByLabel(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)
	ctx := context.Background()

	key := newTestKey(cryptoDomain.LabelActive)
	require.NoError(t, repo.Create(ctx, key))

	read, err := repo.GetByLabel(ctx, cryptoDomain.LabelActive)
	require.NoError(t, err)
	assert.Equal(t, key.ID, read.ID)
	assert.Equal(t, key.Label, read.Label)
	assert.Equal(t, key.Algorithm, read.Algorithm)
	assert.Equal(t, key.DekWrapped, read.DekWrapped)
	assert.Equal(t, key.DekWrapNonce, read.DekWrapNonce)
	assert.Equal(t, key.WrapScheme, read.WrapScheme)
	assert.Equal(t, key.KMSKeyID, read.KMSKeyID)
	assert.WithinDuration(t, key.CreatedAt, read.CreatedAt, time.Second)
}

func TestPostgreSQLKeyRepository_GetByLabel_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)

	_, err := repo.GetByLabel(context.Background(), cryptoDomain.LabelActive)
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
}

func TestPostgreSQLKeyRepository_Create_DuplicateLabel(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestKey(cryptoDomain.LabelActive)))

	// The unique index on label rejects a second active row.
	err := repo.Create(ctx, newTestKey(cryptoDomain.LabelActive))
	assert.Error(t, err)
}

func TestPostgreSQLKeyRepository_GetRotating(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)
	ctx := context.Background()

	_, err := repo.GetRotating(ctx)
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)

	rotating := cryptoDomain.NewRotatingLabel(time.Now())
	require.NoError(t, repo.Create(ctx, newTestKey(cryptoDomain.LabelActive)))
	require.NoError(t, repo.Create(ctx, newTestKey(rotating)))

	read, err := repo.GetRotating(ctx)
	require.NoError(t, err)
	assert.Equal(t, rotating, read.Label)
}

func TestPostgreSQLKeyRepository_List(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)
	ctx := context.Background()

	keys, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, repo.Create(ctx, newTestKey(cryptoDomain.LabelActive)))
	require.NoError(t, repo.Create(ctx, newTestKey("retired::1700000000")))

	keys, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestPostgreSQLKeyRepository_UpdateLabel(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)
	ctx := context.Background()

	key := newTestKey(cryptoDomain.NewRotatingLabel(time.Now()))
	require.NoError(t, repo.Create(ctx, key))

	require.NoError(t, repo.UpdateLabel(ctx, key.ID, cryptoDomain.LabelActive))

	read, err := repo.GetByLabel(ctx, cryptoDomain.LabelActive)
	require.NoError(t, err)
	assert.Equal(t, key.ID, read.ID)

	err = repo.UpdateLabel(ctx, uuid.Must(uuid.NewV7()), cryptoDomain.LabelActive)
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
}

func TestPostgreSQLKeyRepository_UpdateWrapFields(t *testing.T) {
	testutil.SkipIfNoPostgres(t)
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLKeyRepository(db)
	ctx := context.Background()

	key := newTestKey(cryptoDomain.LabelActive)
	require.NoError(t, repo.Create(ctx, key))

	wrapped := &cryptoDomain.WrappedDEK{
		Ciphertext: []byte("rewrapped-dek-bytes"),
		Scheme:     cryptoDomain.SchemeKMS,
		KMSKeyID:   "awskms://alias/payments",
	}
	require.NoError(t, repo.UpdateWrapFields(ctx, key.ID, wrapped))

	read, err := repo.GetByLabel(ctx, cryptoDomain.LabelActive)
	require.NoError(t, err)
	assert.Equal(t, wrapped.Ciphertext, read.DekWrapped)
	assert.Empty(t, read.DekWrapNonce)
	assert.Equal(t, cryptoDomain.SchemeKMS, read.WrapScheme)
	assert.Equal(t, "awskms://alias/payments", read.KMSKeyID)
}
