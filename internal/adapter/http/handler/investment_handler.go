package handler

import (
	"investment-core/internal/adapter/http/dto"
	"investment-core/internal/adapter/http/middleware"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"
	"investment-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvestmentHandler handles investment purchases.
type InvestmentHandler struct {
	investments ports.InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investments ports.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{investments: investments}
}

// Purchase handles POST /api/v1/investments.
func (h *InvestmentHandler) Purchase(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	inv, err := h.investments.Purchase(c.Request.Context(), accountID, uuid.MustParse(req.ProductID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewInvestmentResponse(inv))
}
