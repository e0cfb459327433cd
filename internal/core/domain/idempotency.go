package domain

import (
	"github.com/google/uuid"
)

// Idempotency keys are stored in a UNIQUE column on ledger rows. Each key
// names the single business event a row may represent.

// YieldKey identifies the one yield credit of an investment for a day (YYYY-MM-DD).
func YieldKey(investmentID uuid.UUID, day string) string {
	return "yield:" + investmentID.String() + ":" + day
}

// PrincipalReturnKey identifies the one principal return of an investment.
func PrincipalReturnKey(investmentID uuid.UUID) string {
	return "principal_return:" + investmentID.String()
}

// WithdrawalRefundKey identifies the one refund of a withdrawal request.
func WithdrawalRefundKey(withdrawalID uuid.UUID) string {
	return "withdrawal_refund:" + withdrawalID.String()
}

// PurchaseKey identifies the debit for a purchased investment.
func PurchaseKey(investmentID uuid.UUID) string {
	return "investment_purchase:" + investmentID.String()
}

// DepositKey identifies the credit for a provider payment id.
func DepositKey(paymentID string) string {
	return "deposit:" + paymentID
}
