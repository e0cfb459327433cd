package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceField names one of the two balances carried by an account.
type BalanceField string

const (
	BalanceSpendable  BalanceField = "spendable"
	BalanceCommission BalanceField = "commission"
)

// Valid reports whether f is a known balance column.
func (f BalanceField) Valid() bool {
	return f == BalanceSpendable || f == BalanceCommission
}

// Account is an investor's money holder. Balances never go negative.
type Account struct {
	ID                uuid.UUID        `json:"id"`
	Email             string           `json:"email"`
	SpendableBalance  decimal.Decimal  `json:"spendable_balance"`
	CommissionBalance decimal.Decimal  `json:"commission_balance"`
	WithdrawalLimit   *decimal.Decimal `json:"withdrawal_limit,omitempty"`
	CustomYieldRate   *decimal.Decimal `json:"custom_yield_rate,omitempty"` // percent of principal per day
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Balance returns the value of field.
func (a *Account) Balance(field BalanceField) decimal.Decimal {
	if field == BalanceCommission {
		return a.CommissionBalance
	}
	return a.SpendableBalance
}

// SetBalance overwrites field with v.
func (a *Account) SetBalance(field BalanceField, v decimal.Decimal) {
	if field == BalanceCommission {
		a.CommissionBalance = v
		return
	}
	a.SpendableBalance = v
}
