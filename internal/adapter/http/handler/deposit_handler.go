package handler

import (
	"investment-core/internal/adapter/http/dto"
	"investment-core/internal/adapter/http/middleware"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"
	"investment-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler issues deposit QR payloads.
type DepositHandler struct {
	deposits ports.DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(deposits ports.DepositService) *DepositHandler {
	return &DepositHandler{deposits: deposits}
}

// CreateQR handles POST /api/v1/deposits/qr.
func (h *DepositHandler) CreateQR(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, _ := dto.ParseMoney(req.Amount)

	result, err := h.deposits.CreateDepositRequest(c.Request.Context(), accountID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
