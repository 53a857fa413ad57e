package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func TestKeyUseCase_EnsureActiveKey(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstraps from empty storage", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.keys.EnsureActiveKey(ctx, cryptoDomain.AESGCM))

		settings, err := f.settings.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.LabelActive, settings.WriteLabel)

		key, err := f.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.AESGCM, key.Algorithm)
		assert.Equal(t, cryptoDomain.SchemeEnvKEK, key.WrapScheme)
		assert.NotEmpty(t, key.DekWrapped)
	})

	t.Run("idempotent once bootstrapped", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.keys.EnsureActiveKey(ctx, cryptoDomain.AESGCM))
		require.NoError(t, f.keys.EnsureActiveKey(ctx, cryptoDomain.AESGCM))

		keys, err := f.keyRepo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("recovers from a crash between key insert and settings upsert", func(t *testing.T) {
		f := newFixture(t)

		_, err := createEncryptionKey(ctx, f.keyRepo, f.backend, cryptoDomain.LabelActive, cryptoDomain.AESGCM)
		require.NoError(t, err)

		require.NoError(t, f.keys.EnsureActiveKey(ctx, cryptoDomain.AESGCM))

		settings, err := f.settings.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.LabelActive, settings.WriteLabel)

		keys, err := f.keyRepo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})
}

func TestKeyUseCase_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("before bootstrap", func(t *testing.T) {
		f := newFixture(t)

		status, err := f.keys.Status(ctx)
		require.NoError(t, err)
		assert.Empty(t, status.WriteLabel)
		assert.False(t, status.Ready)
		assert.Empty(t, status.Keys)
	})

	t.Run("after bootstrap with accounts", func(t *testing.T) {
		f := bootstrappedFixture(t, 3)

		status, err := f.keys.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.LabelActive, status.WriteLabel)
		assert.True(t, status.Ready)
		assert.False(t, status.AuthFailed)
		assert.False(t, status.RotationInProgress)
		assert.Len(t, status.Keys, 1)
		assert.Zero(t, status.PendingRecords)
	})

	t.Run("during rotation reports pending records", func(t *testing.T) {
		f := bootstrappedFixture(t, 3)

		rotating, err := f.rotation.Begin(ctx, cryptoDomain.AESGCM)
		require.NoError(t, err)

		status, err := f.keys.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.RotationInProgress)
		assert.Equal(t, rotating, status.RotatingLabel)
		assert.Equal(t, rotating, status.WriteLabel)
		assert.Equal(t, int64(3), status.PendingRecords)
		assert.Len(t, status.Keys, 2)
	})
}

func TestKeyUseCase_ForceNewActiveDek(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the active dek when no records exist", func(t *testing.T) {
		f := bootstrappedFixture(t, 0)

		before, err := f.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		require.NoError(t, err)

		require.NoError(t, f.keys.ForceNewActiveDek(ctx, cryptoDomain.ChaCha20))

		after, err := f.keyRepo.GetByLabel(ctx, cryptoDomain.LabelActive)
		require.NoError(t, err)
		assert.NotEqual(t, before.ID, after.ID)
		assert.Equal(t, cryptoDomain.ChaCha20, after.Algorithm)

		// The old key is retired, not deleted.
		keys, err := f.keyRepo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 2)

		// The write path picks up the new DEK.
		_, err = f.accounts.Create(ctx, accountsDomain.CreateAccountInput{
			Name:  "after-force",
			Email: "after@example.com",
			Phone: "+15550001000",
		})
		require.NoError(t, err)
	})

	t.Run("bootstraps an empty store", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.keys.ForceNewActiveDek(ctx, cryptoDomain.AESGCM))

		settings, err := f.settings.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.LabelActive, settings.WriteLabel)

		// A single active generation, nothing retired.
		keys, err := f.keyRepo.List(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, cryptoDomain.LabelActive, keys[0].Label)

		// The write path works off the forced generation.
		out, err := f.accounts.Create(ctx, accountsDomain.CreateAccountInput{
			Name:  "first",
			Email: "first@example.com",
			Phone: "+15550002000",
		})
		require.NoError(t, err)

		fetched, err := f.accounts.Get(ctx, out.ID)
		require.NoError(t, err)
		assert.Equal(t, "first@example.com", fetched.Email)
	})

	t.Run("refuses when encrypted records exist", func(t *testing.T) {
		f := bootstrappedFixture(t, 1)

		err := f.keys.ForceNewActiveDek(ctx, cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrEncryptedRecordsExist)
	})

	t.Run("refuses during an open rotation", func(t *testing.T) {
		f := bootstrappedFixture(t, 0)

		_, err := f.rotation.Begin(ctx, cryptoDomain.AESGCM)
		require.NoError(t, err)

		err = f.keys.ForceNewActiveDek(ctx, cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrRotationInProgress)
	})
}
