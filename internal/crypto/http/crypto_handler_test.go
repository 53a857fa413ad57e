package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// fakeKeyManager implements the key manager surface the handler uses.
type fakeKeyManager struct {
	ready      bool
	authFailed bool
	warmErr    error
	warmCalls  int
}

func (f *fakeKeyManager) EncryptFields(ctx context.Context, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, string, error) {
	return nil, "", nil
}

func (f *fakeKeyManager) EncryptFieldsWithLabel(ctx context.Context, label string, plaintexts ...[]byte) ([]*cryptoDomain.EncryptedField, error) {
	return nil, nil
}

func (f *fakeKeyManager) DecryptField(ctx context.Context, field *cryptoDomain.EncryptedField, label string) ([]byte, error) {
	return nil, nil
}

func (f *fakeKeyManager) Warm(ctx context.Context) error {
	f.warmCalls++
	if f.warmErr != nil {
		return f.warmErr
	}
	f.ready = true
	return nil
}

func (f *fakeKeyManager) Ready() bool { return f.ready }

func (f *fakeKeyManager) AuthFailed() bool { return f.authFailed }

func (f *fakeKeyManager) Promote(promotedLabel, retiredLabel string) {}

// fakeKeyUseCase returns a canned status.
type fakeKeyUseCase struct {
	status *cryptoDomain.KeyStatus
	err    error
}

func (f *fakeKeyUseCase) EnsureActiveKey(ctx context.Context, alg cryptoDomain.Algorithm) error {
	return nil
}

func (f *fakeKeyUseCase) Status(ctx context.Context) (*cryptoDomain.KeyStatus, error) {
	return f.status, f.err
}

func (f *fakeKeyUseCase) ForceNewActiveDek(ctx context.Context, alg cryptoDomain.Algorithm) error {
	return nil
}

func newTestRouter(keyUseCase *fakeKeyUseCase, keyManager *fakeKeyManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.DiscardHandler)
	handler := NewCryptoHandler(keyUseCase, keyManager, logger)

	router := gin.New()
	router.GET("/health", handler.HealthHandler)
	router.GET("/ready", handler.ReadinessHandler)
	router.GET("/v1/crypto/status", handler.StatusHandler)
	return router
}

func TestCryptoHandler_Health(t *testing.T) {
	router := newTestRouter(&fakeKeyUseCase{}, &fakeKeyManager{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCryptoHandler_Readiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		router := newTestRouter(&fakeKeyUseCase{}, &fakeKeyManager{ready: true})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("warms on probe when not ready", func(t *testing.T) {
		km := &fakeKeyManager{}
		router := newTestRouter(&fakeKeyUseCase{}, km)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, km.warmCalls)
	})

	t.Run("not ready while warm keeps failing", func(t *testing.T) {
		km := &fakeKeyManager{warmErr: cryptoDomain.ErrBackendUnavailable}
		router := newTestRouter(&fakeKeyUseCase{}, km)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("reports latched auth failure", func(t *testing.T) {
		km := &fakeKeyManager{warmErr: cryptoDomain.ErrUnwrapAuth, authFailed: true}
		router := newTestRouter(&fakeKeyUseCase{}, km)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "authentication failed")
	})
}

func TestCryptoHandler_Status(t *testing.T) {
	t.Run("returns key status", func(t *testing.T) {
		status := &cryptoDomain.KeyStatus{
			WriteLabel: cryptoDomain.LabelActive,
			Ready:      true,
			Keys: []cryptoDomain.KeyStatusEntry{
				{Label: cryptoDomain.LabelActive, Algorithm: cryptoDomain.AESGCM, WrapScheme: cryptoDomain.SchemeEnvKEK},
			},
		}
		router := newTestRouter(&fakeKeyUseCase{status: status}, &fakeKeyManager{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/crypto/status", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var got cryptoDomain.KeyStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, cryptoDomain.LabelActive, got.WriteLabel)
		assert.True(t, got.Ready)
		require.Len(t, got.Keys, 1)

		// DEK material never appears in the status payload.
		assert.NotContains(t, w.Body.String(), "dek")
	})

	t.Run("maps use case errors", func(t *testing.T) {
		router := newTestRouter(&fakeKeyUseCase{err: cryptoDomain.ErrSettingsNotFound}, &fakeKeyManager{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/crypto/status", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
