package postgres

import (
	"context"
	"fmt"

	"investment-core/internal/core/domain"
)

// WebhookReceiptRepo implements ports.WebhookReceiptRepository.
type WebhookReceiptRepo struct {
	pool Pool
}

// NewWebhookReceiptRepo creates a PostgreSQL-backed receipt log.
func NewWebhookReceiptRepo(pool Pool) *WebhookReceiptRepo {
	return &WebhookReceiptRepo{pool: pool}
}

func (r *WebhookReceiptRepo) Create(ctx context.Context, rec *domain.WebhookReceipt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_receipts (id, transaction_id, event_type, account_id, outcome, raw_body, error, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.TransactionID, rec.EventType, rec.AccountID,
		string(rec.Outcome), rec.RawBody, rec.Error, rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook receipt: %w", err)
	}
	return nil
}
