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

func TestMySQLKeyRepository(t *testing.T) {
	testutil.SkipIfNoMySQL(t)
	db := testutil.SetupMySQLDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewMySQLKeyRepository(db)
	ctx := context.Background()

	t.Run("create and get by label", func(t *testing.T) {
		testutil.CleanupMySQLDB(t, db)

		key := newTestKey(cryptoDomain.LabelActive)
		require.NoError(t, repo.Create(ctx, key))

		read, err := repo.GetByLabel(ctx, cryptoDomain.LabelActive)
		require.NoError(t, err)
		assert.Equal(t, key.ID, read.ID)
		assert.Equal(t, key.DekWrapped, read.DekWrapped)
		assert.Equal(t, key.WrapScheme, read.WrapScheme)
		assert.WithinDuration(t, key.CreatedAt, read.CreatedAt, time.Second)
	})

	t.Run("get by label not found", func(t *testing.T) {
		testutil.CleanupMySQLDB(t, db)

		_, err := repo.GetByLabel(ctx, cryptoDomain.LabelActive)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})

	t.Run("get rotating", func(t *testing.T) {
		testutil.CleanupMySQLDB(t, db)

		rotating := cryptoDomain.NewRotatingLabel(time.Now())
		require.NoError(t, repo.Create(ctx, newTestKey(cryptoDomain.LabelActive)))
		require.NoError(t, repo.Create(ctx, newTestKey(rotating)))

		read, err := repo.GetRotating(ctx)
		require.NoError(t, err)
		assert.Equal(t, rotating, read.Label)
	})

	t.Run("update label", func(t *testing.T) {
		testutil.CleanupMySQLDB(t, db)

		key := newTestKey(cryptoDomain.NewRotatingLabel(time.Now()))
		require.NoError(t, repo.Create(ctx, key))
		require.NoError(t, repo.UpdateLabel(ctx, key.ID, cryptoDomain.LabelActive))

		read, err := repo.GetByLabel(ctx, cryptoDomain.LabelActive)
		require.NoError(t, err)
		assert.Equal(t, key.ID, read.ID)

		err = repo.UpdateLabel(ctx, uuid.Must(uuid.NewV7()), "retired::1")
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})

	t.Run("update wrap fields", func(t *testing.T) {
		testutil.CleanupMySQLDB(t, db)

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
		assert.Equal(t, cryptoDomain.SchemeKMS, read.WrapScheme)
	})

	t.Run("list", func(t *testing.T) {
		testutil.CleanupMySQLDB(t, db)

		require.NoError(t, repo.Create(ctx, newTestKey(cryptoDomain.LabelActive)))
		require.NoError(t, repo.Create(ctx, newTestKey("retired::1700000000")))

		keys, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})
}
