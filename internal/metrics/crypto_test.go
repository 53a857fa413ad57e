package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// gaugeKeyManager exposes fixed readiness flags.
type gaugeKeyManager struct {
	ready      bool
	authFailed bool
}

func (g gaugeKeyManager) EncryptFields(ctx context.Context, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, string, error) {
	return nil, "", nil
}

func (g gaugeKeyManager) EncryptFieldsWithLabel(ctx context.Context, label string, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, error) {
	return nil, nil
}

func (g gaugeKeyManager) DecryptField(ctx context.Context, field *cryptoDomain.EncryptedField, label string) ([]byte, error) {
	return nil, nil
}

func (g gaugeKeyManager) Warm(ctx context.Context) error { return nil }
func (g gaugeKeyManager) Ready() bool                    { return g.ready }
func (g gaugeKeyManager) AuthFailed() bool               { return g.authFailed }
func (g gaugeKeyManager) Promote(promotedLabel, retiredLabel string) {}

type gaugeStatusSource struct {
	status *cryptoDomain.KeyStatus
	err    error
}

func (g gaugeStatusSource) Status(ctx context.Context) (*cryptoDomain.KeyStatus, error) {
	return g.status, g.err
}

func TestRegisterCryptoGauges(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider("fieldcrypt")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, provider.Shutdown(ctx))
	}()

	source := gaugeStatusSource{status: &cryptoDomain.KeyStatus{
		WriteLabel: cryptoDomain.LabelActive,
		Ready:      true,
		Keys: []cryptoDomain.KeyStatusEntry{
			{
				Label:      cryptoDomain.LabelActive,
				WrapScheme: cryptoDomain.SchemeEnvKEK,
				CreatedAt:  time.Now().Add(-time.Hour),
			},
			{
				Label:      "retired::1700000000",
				WrapScheme: cryptoDomain.SchemeEnvKEK,
				CreatedAt:  time.Now().Add(-48 * time.Hour),
			},
		},
	}}

	err = RegisterCryptoGauges(provider.MeterProvider(), "fieldcrypt", gaugeKeyManager{ready: true}, source)
	require.NoError(t, err)

	body := scrape(t, provider)
	assert.Contains(t, body, "fieldcrypt_crypto_ready")
	assert.Contains(t, body, "fieldcrypt_crypto_unwrap_auth_failed")
	assert.Contains(t, body, `mode="env_kek"`)
	assert.Contains(t, body, "fieldcrypt_crypto_keys_total")
	assert.Contains(t, body, "fieldcrypt_crypto_active_label_age_seconds")
}

func TestRegisterCryptoGaugesStatusError(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider("fieldcrypt")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, provider.Shutdown(ctx))
	}()

	source := gaugeStatusSource{err: cryptoDomain.ErrSettingsNotFound}

	err = RegisterCryptoGauges(provider.MeterProvider(), "fieldcrypt", gaugeKeyManager{}, source)
	require.NoError(t, err)

	// Readiness is still reported when the key store is unreachable.
	body := scrape(t, provider)
	assert.Contains(t, body, "fieldcrypt_crypto_ready")
	assert.NotContains(t, body, "fieldcrypt_crypto_keys_total")
}

func TestHTTPMetricsMiddlewareSanitizePath(t *testing.T) {
	assert.Equal(t, "unknown", sanitizePath(""))
	assert.Equal(t, "/v1/accounts/:id", sanitizePath("/v1/accounts/:id"))
}
