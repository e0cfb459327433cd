package postgres

import (
	"context"
	"fmt"

	"investment-core/internal/core/ports"
)

// DepositSettler calls the process_payment_webhook procedure, which credits
// the deposit and pays referral commissions atomically.
type DepositSettler struct {
	pool Pool
}

// NewDepositSettler creates a settlement RPC client.
func NewDepositSettler(pool Pool) *DepositSettler {
	return &DepositSettler{pool: pool}
}

// Settle returns false when the payment id was already processed.
func (s *DepositSettler) Settle(ctx context.Context, d ports.DepositSettlement) (bool, error) {
	data := d.GatewayData
	if len(data) == 0 {
		data = []byte(`{}`)
	}

	var credited bool
	err := s.pool.QueryRow(ctx,
		`SELECT process_payment_webhook($1, $2, $3, $4, $5::jsonb)`,
		d.EventType, d.PaymentID, d.UserEmail, d.Amount, data,
	).Scan(&credited)
	if err != nil {
		return false, fmt.Errorf("process_payment_webhook %s: %w", d.PaymentID, err)
	}
	return credited, nil
}
