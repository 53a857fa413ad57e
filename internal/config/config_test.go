package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "env_kek", cfg.WrapScheme)
	assert.Equal(t, 10*time.Second, cfg.KMSTimeout)
	assert.Equal(t, 4, cfg.KMSMaxRetries)
	assert.Equal(t, "aes-gcm", cfg.Algorithm)
	assert.Equal(t, 100, cfg.RotateBatchSize)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "fieldcrypt", cfg.MetricsNamespace)
	assert.Equal(t, 8081, cfg.MetricsPort)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("WRAP_SCHEME", "kms")
	t.Setenv("KMS_KEY_URI", "base64key://")
	t.Setenv("ROTATE_BATCH_SIZE", "250")
	t.Setenv("CRYPTO_ALGORITHM", "chacha20-poly1305")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "kms", cfg.WrapScheme)
	assert.Equal(t, "base64key://", cfg.KMSKeyURI)
	assert.Equal(t, 250, cfg.RotateBatchSize)
	assert.Equal(t, "chacha20-poly1305", cfg.Algorithm)
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		want     string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"bogus", "release"},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.logLevel}
		assert.Equal(t, tt.want, cfg.GetGinMode())
	}
}
