// Package http provides HTTP handlers for the key subsystem's operator
// surface: health, readiness, and key status.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
	"github.com/allisson/fieldcrypt/internal/httputil"
)

// CryptoHandler handles HTTP requests for key subsystem status and readiness.
type CryptoHandler struct {
	keyUseCase cryptoUseCase.KeyUseCase
	keyManager cryptoService.KeyManager
	logger     *slog.Logger
}

// NewCryptoHandler creates a new crypto handler with required dependencies.
func NewCryptoHandler(
	keyUseCase cryptoUseCase.KeyUseCase,
	keyManager cryptoService.KeyManager,
	logger *slog.Logger,
) *CryptoHandler {
	return &CryptoHandler{
		keyUseCase: keyUseCase,
		keyManager: keyManager,
		logger:     logger,
	}
}

// HealthHandler reports process liveness.
// GET /health - Returns 200 OK as long as the process can serve requests.
func (h *CryptoHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ReadinessHandler reports write-path readiness: whether the write DEK has
// been unwrapped successfully. A failed unwrap attempt is retried here on
// every probe unless an authentication failure has latched.
// GET /ready - Returns 200 OK when ready, 503 otherwise.
func (h *CryptoHandler) ReadinessHandler(c *gin.Context) {
	if !h.keyManager.Ready() {
		if err := h.keyManager.Warm(c.Request.Context()); err != nil {
			h.logger.Warn("readiness probe failed", slog.Any("error", err))
		}
	}

	if h.keyManager.Ready() {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	status := gin.H{"status": "not ready"}
	if h.keyManager.AuthFailed() {
		status["reason"] = "dek unwrap authentication failed"
	}
	c.JSON(http.StatusServiceUnavailable, status)
}

// StatusHandler reports the operator-facing state of the key subsystem: the
// write label, readiness flags, rotation progress, and every key generation.
// GET /v1/crypto/status - Returns 200 OK. DEK material is never included.
func (h *CryptoHandler) StatusHandler(c *gin.Context) {
	status, err := h.keyUseCase.Status(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, status)
}
