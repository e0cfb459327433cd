package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"investment-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, account_id, kind, field, amount, balance_after, status,
	external_reference, idempotency_key, payload, created_at, updated_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Insert writes a ledger row inside tx. Rows whose idempotency key already
// exists are skipped and reported with false.
func (r *LedgerRepo) Insert(ctx context.Context, tx pgx.Tx, t *domain.LedgerTransaction) (bool, error) {
	payload, err := marshalPayload(t.Payload)
	if err != nil {
		return false, err
	}

	query := `INSERT INTO ledger_transactions (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		t.ID, t.AccountID, string(t.Kind), string(t.Field), t.Amount, t.BalanceAfter,
		string(t.Status), t.ExternalReference, t.IdempotencyKey, payload,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert ledger transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a ledger row (without locking).
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerTransaction, error) {
	t, err := scanLedger(r.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger transaction: %w", err)
	}
	return t, nil
}

// GetByIDForUpdate fetches a ledger row with pessimistic locking.
func (r *LedgerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerTransaction, error) {
	t, err := scanLedger(tx.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger transaction for update: %w", err)
	}
	return t, nil
}

// ExistsByIdempotencyKey reports whether a row carries key.
func (r *LedgerRepo) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_transactions WHERE idempotency_key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return exists, nil
}

// UpdateStatus sets the status of a row and merges patch into its payload.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, patch map[string]any) error {
	payload, err := marshalPayload(patch)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE ledger_transactions SET status = $1, payload = payload || $2::jsonb, updated_at = NOW() WHERE id = $3`,
		string(status), payload, id)
	if err != nil {
		return fmt.Errorf("update ledger status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger transaction not found: %s", id)
	}
	return nil
}

func scanLedger(row pgx.Row) (*domain.LedgerTransaction, error) {
	t := &domain.LedgerTransaction{}
	var kind, field, status string
	var payload []byte
	err := row.Scan(
		&t.ID, &t.AccountID, &kind, &field, &t.Amount, &t.BalanceAfter, &status,
		&t.ExternalReference, &t.IdempotencyKey, &payload, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Kind = domain.TransactionKind(kind)
	t.Field = domain.BalanceField(field)
	t.Status = domain.TransactionStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t.Payload); err != nil {
			return nil, fmt.Errorf("decode ledger payload: %w", err)
		}
	}
	return t, nil
}

func marshalPayload(p map[string]any) ([]byte, error) {
	if p == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode ledger payload: %w", err)
	}
	return b, nil
}
