package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger row.
type TransactionKind string

const (
	KindDeposit            TransactionKind = "deposit"
	KindWithdrawal         TransactionKind = "withdrawal"
	KindWithdrawalRefund   TransactionKind = "withdrawal_refund"
	KindInvestmentPurchase TransactionKind = "investment_purchase"
	KindYield              TransactionKind = "yield"
	KindPrincipalReturn    TransactionKind = "principal_return"
	KindCommission         TransactionKind = "commission"
)

// TransactionStatus is the lifecycle state of a ledger row. Only withdrawals
// move past their initial status.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusApproved  TransactionStatus = "approved"
	StatusRejected  TransactionStatus = "rejected"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// LedgerTransaction is one append-only balance movement.
// Amount is the signed delta applied to Field.
type LedgerTransaction struct {
	ID                uuid.UUID         `json:"id"`
	AccountID         uuid.UUID         `json:"account_id"`
	Kind              TransactionKind   `json:"kind"`
	Field             BalanceField      `json:"field"`
	Amount            decimal.Decimal   `json:"amount"`
	BalanceAfter      decimal.Decimal   `json:"balance_after"`
	Status            TransactionStatus `json:"status"`
	ExternalReference *string           `json:"external_reference,omitempty"`
	IdempotencyKey    *string           `json:"idempotency_key,omitempty"`
	Payload           map[string]any    `json:"payload,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsTerminal returns true if no further status change is allowed.
func (t *LedgerTransaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusRejected
}

// ReservedAmount is the positive amount held by a withdrawal request.
func (t *LedgerTransaction) ReservedAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// WithdrawalTransitionAllowed reports whether an operator may move a
// withdrawal from one status to another. Failed payouts may be retried or
// refunded; approved requests are in flight and locked.
func WithdrawalTransitionAllowed(from, to TransactionStatus) bool {
	switch to {
	case StatusApproved, StatusRejected:
		return from == StatusPending || from == StatusFailed
	case StatusCompleted, StatusFailed:
		return from == StatusApproved
	default:
		return false
	}
}
