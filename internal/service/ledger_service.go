package service

import (
	"context"
	"errors"
	"fmt"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"
	"investment-core/pkg/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrDuplicateEvent is returned by ApplyDelta when the idempotency key of the
// request has already been applied. Nothing was written.
var ErrDuplicateEvent = fmt.Errorf("ledger: %w", apperror.ErrDuplicateEvent())

// IsDuplicate reports whether err means "already applied".
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateEvent)
}

// LedgerServiceImpl implements ports.LedgerService. It is the only code path
// that changes account balances, and every change leaves a ledger row.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	clock       *clock.Clock
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	clk *clock.Clock,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		clock:       clk,
		log:         log,
	}
}

// ApplyDelta applies one balance movement in its own database transaction.
func (s *LedgerServiceImpl) ApplyDelta(ctx context.Context, req ports.DeltaRequest) (*domain.LedgerTransaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.ApplyDeltaTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return txn, nil
}

// ApplyDeltaTx applies one balance movement inside the caller's transaction:
// lock the account row, compute the new balance, write the ledger row, then
// write the balance. A duplicate idempotency key aborts before any write.
func (s *LedgerServiceImpl) ApplyDeltaTx(ctx context.Context, dbTx pgx.Tx, req ports.DeltaRequest) (*domain.LedgerTransaction, error) {
	field := req.Field
	if field == "" {
		field = domain.BalanceSpendable
	}
	if !field.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown balance field %q", field))
	}
	if req.Delta.IsZero() {
		return nil, apperror.ErrInvalidAmount()
	}

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	newBalance := account.Balance(field).Add(req.Delta)
	if newBalance.IsNegative() {
		return nil, apperror.ErrInsufficientFunds()
	}

	status := req.Status
	if status == "" {
		status = domain.StatusCompleted
	}

	now := s.clock.Now().UTC()
	txn := &domain.LedgerTransaction{
		ID:                uuid.New(),
		AccountID:         account.ID,
		Kind:              req.Kind,
		Field:             field,
		Amount:            req.Delta,
		BalanceAfter:      newBalance,
		Status:            status,
		ExternalReference: req.ExternalReference,
		IdempotencyKey:    req.IdempotencyKey,
		Payload:           req.Payload,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inserted, err := s.ledgerRepo.Insert(ctx, dbTx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert ledger row: %w", err))
	}
	if !inserted {
		s.log.Debug().
			Str("account_id", account.ID.String()).
			Str("kind", string(req.Kind)).
			Msg("ledger delta already applied")
		return nil, ErrDuplicateEvent
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, field, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	account.SetBalance(field, newBalance)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("account_id", account.ID.String()).
		Str("kind", string(txn.Kind)).
		Str("field", string(field)).
		Str("delta", req.Delta.StringFixed(2)).
		Str("balance_after", newBalance.StringFixed(2)).
		Msg("ledger delta applied")

	return txn, nil
}
