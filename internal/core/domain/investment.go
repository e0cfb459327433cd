package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a read-only investment plan.
type Product struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	DailyYieldAmount decimal.Decimal `json:"daily_yield_amount"`
	DurationDays     int             `json:"duration_days"`
	PurchaseLimit    int             `json:"purchase_limit"` // 0 means unlimited
	Active           bool            `json:"active"`
}

// InvestmentStatus is the lifecycle state of an investment.
type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

// Investment is a purchased position that earns DailyYield once per
// reference-timezone day inside [StartAt, EndAt).
type Investment struct {
	ID          uuid.UUID        `json:"id"`
	AccountID   uuid.UUID        `json:"account_id"`
	ProductID   uuid.UUID        `json:"product_id"`
	Amount      decimal.Decimal  `json:"amount"`
	DailyYield  decimal.Decimal  `json:"daily_yield"`
	Status      InvestmentStatus `json:"status"`
	StartAt     time.Time        `json:"start_at"`
	EndAt       time.Time        `json:"end_at"`
	TotalEarned decimal.Decimal  `json:"total_earned"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// AccruesAt reports whether now falls inside the yield window.
func (i *Investment) AccruesAt(now time.Time) bool {
	return i.Status == InvestmentActive && !now.Before(i.StartAt) && now.Before(i.EndAt)
}

// MaturedAt reports whether the investment is due for completion.
func (i *Investment) MaturedAt(now time.Time) bool {
	return i.Status == InvestmentActive && !now.Before(i.EndAt)
}
