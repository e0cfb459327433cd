package dto

import (
	"time"

	"investment-core/internal/core/domain"
)

// DepositQRRequest is the request body for a deposit QR payload.
type DepositQRRequest struct {
	Amount string `json:"amount" binding:"required,money"`
}

// WithdrawalRequest is the request body for a withdrawal reservation.
type WithdrawalRequest struct {
	Amount  string `json:"amount" binding:"required,money"`
	Method  string `json:"method" binding:"required,oneof=pix crypto"`
	Key     string `json:"key" binding:"max=140"`
	KeyType string `json:"key_type" binding:"omitempty,pix_key_type"`
	Address string `json:"address" binding:"max=128"`
	Network string `json:"network" binding:"max=32"`
}

// Destination converts the request into the domain destination.
func (r WithdrawalRequest) Destination() domain.WithdrawalDestination {
	return domain.WithdrawalDestination{
		Method:  domain.PayoutMethod(r.Method),
		Key:     r.Key,
		KeyType: r.KeyType,
		Address: r.Address,
		Network: r.Network,
	}
}

// PurchaseRequest is the request body for an investment purchase.
type PurchaseRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
}

// RejectRequest is the operator's rejection body.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// WithdrawalResponse is the response body for withdrawal operations.
type WithdrawalResponse struct {
	ID        string         `json:"id"`
	Amount    string         `json:"amount"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// NewWithdrawalResponse converts a withdrawal ledger row.
func NewWithdrawalResponse(t *domain.LedgerTransaction) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:        t.ID.String(),
		Amount:    t.ReservedAmount().StringFixed(2),
		Status:    string(t.Status),
		Details:   t.Payload,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if !t.UpdatedAt.IsZero() {
		resp.UpdatedAt = t.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// InvestmentResponse is the response body for a purchased investment.
type InvestmentResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Amount     string `json:"amount"`
	DailyYield string `json:"daily_yield"`
	Status     string `json:"status"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
}

// NewInvestmentResponse converts a domain investment.
func NewInvestmentResponse(inv *domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:         inv.ID.String(),
		ProductID:  inv.ProductID.String(),
		Amount:     inv.Amount.StringFixed(2),
		DailyYield: inv.DailyYield.StringFixed(2),
		Status:     string(inv.Status),
		StartAt:    inv.StartAt.Format(time.RFC3339),
		EndAt:      inv.EndAt.Format(time.RFC3339),
	}
}
