package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWithdrawalRequest AuditAction = "WITHDRAWAL_REQUEST"
	AuditActionWithdrawalApprove AuditAction = "WITHDRAWAL_APPROVE"
	AuditActionWithdrawalReject  AuditAction = "WITHDRAWAL_REJECT"
	AuditActionPayoutFailed      AuditAction = "PAYOUT_FAILED"
	AuditActionInvestmentBuy     AuditAction = "INVESTMENT_PURCHASE"
	AuditActionInvestmentDone    AuditAction = "INVESTMENT_COMPLETE"
	AuditActionDepositRequest    AuditAction = "DEPOSIT_REQUEST"
	AuditActionWebhookFailure    AuditAction = "WEBHOOK_FAILURE"
)

// AuditLog records operator actions and failures that need human attention.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
