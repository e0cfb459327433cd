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

// WithdrawalHandler handles withdrawal requests and operator decisions.
type WithdrawalHandler struct {
	withdrawals ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawals ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Request handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStruct(&req)
	amount, _ := dto.ParseMoney(req.Amount)

	w, err := h.withdrawals.Request(c.Request.Context(), ports.WithdrawalRequest{
		AccountID:   accountID,
		Amount:      amount,
		Destination: req.Destination(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewWithdrawalResponse(w))
}

// Approve handles POST /api/v1/admin/withdrawals/:id/approve.
// Gateway failures come back as GW_001/GW_002 so the operator sees them.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	operatorID, withdrawalID, ok := operatorAndTarget(c)
	if !ok {
		return
	}

	w, err := h.withdrawals.Approve(c.Request.Context(), withdrawalID, operatorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWithdrawalResponse(w))
}

// Reject handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	operatorID, withdrawalID, ok := operatorAndTarget(c)
	if !ok {
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrReasonRequired())
		return
	}
	dto.TrimStruct(&req)

	w, err := h.withdrawals.Reject(c.Request.Context(), withdrawalID, operatorID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWithdrawalResponse(w))
}

func operatorAndTarget(c *gin.Context) (operatorID, withdrawalID uuid.UUID, ok bool) {
	operatorID, ok = middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, uuid.Nil, false
	}
	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("withdrawal"))
		return uuid.Nil, uuid.Nil, false
	}
	return operatorID, withdrawalID, true
}
