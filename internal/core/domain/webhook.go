package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Canonical provider event/status values.
const (
	EventPaymentApproved  = "payment.approved"
	PaymentStatusApproved = "approved"
)

// PaymentEvent is the normalized form of every inbound provider notification.
type PaymentEvent struct {
	EventType         string          `json:"event_type"`
	TransactionID     string          `json:"transaction_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Email             string          `json:"email,omitempty"`
}

// Settles reports whether the event should credit the account.
func (e PaymentEvent) Settles() bool {
	return e.Status == PaymentStatusApproved && e.EventType == EventPaymentApproved
}

// WebhookOutcome is the terminal state of one inbound notification.
type WebhookOutcome string

const (
	WebhookSettled    WebhookOutcome = "settled"
	WebhookDuplicate  WebhookOutcome = "duplicate"
	WebhookIgnored    WebhookOutcome = "ignored"
	WebhookRejected   WebhookOutcome = "rejected" // signature failure
	WebhookMalformed  WebhookOutcome = "malformed"
	WebhookUnresolved WebhookOutcome = "unresolved"
	WebhookFailed     WebhookOutcome = "failed"
)

// WebhookReceipt records how an inbound notification was handled.
type WebhookReceipt struct {
	ID            uuid.UUID      `json:"id"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	EventType     string         `json:"event_type,omitempty"`
	AccountID     *uuid.UUID     `json:"account_id,omitempty"`
	Outcome       WebhookOutcome `json:"outcome"`
	RawBody       string         `json:"raw_body"`
	Error         *string        `json:"error,omitempty"`
	ReceivedAt    time.Time      `json:"received_at"`
}
