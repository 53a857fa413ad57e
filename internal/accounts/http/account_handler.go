// Package http provides HTTP handlers for account operations. Contact fields
// are encrypted before they reach storage and decrypted on the way out.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accountsDomain "github.com/allisson/fieldcrypt/internal/accounts/domain"
	accountsUseCase "github.com/allisson/fieldcrypt/internal/accounts/usecase"
	"github.com/allisson/fieldcrypt/internal/httputil"
)

// AccountHandler handles HTTP requests for account operations.
type AccountHandler struct {
	accountUseCase accountsUseCase.AccountUseCase
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler with required dependencies.
func NewAccountHandler(accountUseCase accountsUseCase.AccountUseCase, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountUseCase: accountUseCase,
		logger:         logger,
	}
}

// CreateHandler creates a new account with encrypted contact fields.
// POST /v1/accounts - Returns 201 Created with the decrypted representation.
func (h *AccountHandler) CreateHandler(c *gin.Context) {
	var input accountsDomain.CreateAccountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	account, err := h.accountUseCase.Create(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// GetHandler retrieves an account, decrypting its contact fields with the DEK
// generation recorded on the row.
// GET /v1/accounts/:id - Returns 200 OK.
func (h *AccountHandler) GetHandler(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	account, err := h.accountUseCase.Get(c.Request.Context(), accountID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, account)
}
