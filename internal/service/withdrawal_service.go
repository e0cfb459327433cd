package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultPayoutTimeout = 30 * time.Second

// WithdrawalSettings holds the tunables of the settlement workflow.
type WithdrawalSettings struct {
	FeeRate       decimal.Decimal // fraction of the reserved amount kept by the platform
	PayoutTimeout time.Duration
}

// WithdrawalServiceImpl implements ports.WithdrawalService.
//
// Funds are reserved (debited) when the request is created. Approval only
// flips status and pays out; rejection refunds the reservation once.
type WithdrawalServiceImpl struct {
	ledger      ports.LedgerService
	ledgerRepo  ports.LedgerRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	payout      ports.PayoutGateway
	audit       ports.AuditService
	settings    WithdrawalSettings
	log         zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	ledger ports.LedgerService,
	ledgerRepo ports.LedgerRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	payout ports.PayoutGateway,
	audit ports.AuditService,
	settings WithdrawalSettings,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	if settings.PayoutTimeout <= 0 {
		settings.PayoutTimeout = defaultPayoutTimeout
	}
	return &WithdrawalServiceImpl{
		ledger:      ledger,
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		payout:      payout,
		audit:       audit,
		settings:    settings,
		log:         log,
	}
}

// Fee splits amount into the platform fee and the net paid out.
func (s *WithdrawalServiceImpl) Fee(amount decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(s.settings.FeeRate).Round(2)
	return fee, amount.Sub(fee)
}

// Request reserves amount from the account's spendable balance and records a
// pending withdrawal.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.LedgerTransaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := validateDestination(req.Destination); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if account.WithdrawalLimit != nil && req.Amount.GreaterThan(*account.WithdrawalLimit) {
		return nil, apperror.ErrWithdrawalLimitExceeded()
	}

	txn, err := s.ledger.ApplyDelta(ctx, ports.DeltaRequest{
		AccountID: req.AccountID,
		Field:     domain.BalanceSpendable,
		Delta:     req.Amount.Neg(),
		Kind:      domain.KindWithdrawal,
		Status:    domain.StatusPending,
		Payload: map[string]any{
			domain.PayloadDestination: req.Destination,
		},
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &req.AccountID,
		Action:       domain.AuditActionWithdrawalRequest,
		ResourceType: "withdrawal",
		ResourceID:   txn.ID.String(),
		Details:      auditDetails(map[string]any{"amount": req.Amount.StringFixed(2), "method": req.Destination.Method}),
	})

	s.log.Info().
		Str("withdrawal_id", txn.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("withdrawal requested")

	return txn, nil
}

// Approve flips the request to approved and sends the net amount to the payout
// gateway. A gateway error or timeout leaves the request failed with the funds
// still debited; it is never retried automatically.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, withdrawalID, operatorID uuid.UUID) (*domain.LedgerTransaction, error) {
	w, dest, fee, net, err := s.markApproved(ctx, withdrawalID, operatorID)
	if err != nil {
		return nil, err
	}

	key, keyType := dest.Target()
	// The payout must not be abandoned because the operator's request went away.
	payoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.PayoutTimeout)
	defer cancel()

	result, payErr := s.payout.Send(payoutCtx, ports.PayoutRequest{
		Amount:             net,
		DestinationKey:     key,
		DestinationKeyType: keyType,
		ExternalReference:  w.ID.String(),
	})

	if payErr == nil && result == nil {
		payErr = errors.New("payout gateway returned no result")
	}
	if payErr != nil {
		return nil, s.markFailed(ctx, w, operatorID, payErr)
	}

	patch := map[string]any{
		domain.PayloadGatewayID:     result.GatewayTransactionID,
		domain.PayloadGatewayStatus: result.Status,
		domain.PayloadFee:           fee.StringFixed(2),
		domain.PayloadNetAmount:     net.StringFixed(2),
	}
	if !result.Fee.IsZero() {
		patch[domain.PayloadFee] = result.Fee.StringFixed(2)
	}
	if !result.NetAmount.IsZero() {
		patch[domain.PayloadNetAmount] = result.NetAmount.StringFixed(2)
	}
	if err := s.setStatus(ctx, w.ID, domain.StatusCompleted, patch); err != nil {
		// Paid out but not recorded: the row stays approved, which blocks
		// further approve/reject until someone reconciles it.
		s.log.Error().Err(err).
			Str("withdrawal_id", w.ID.String()).
			Str("gateway_transaction_id", result.GatewayTransactionID).
			Msg("payout sent but completion not recorded")
		s.audit.Log(ctx, &domain.AuditLog{
			ActorID:      &operatorID,
			Action:       domain.AuditActionPayoutFailed,
			ResourceType: "withdrawal",
			ResourceID:   w.ID.String(),
			Details:      auditDetails(map[string]any{"gateway_transaction_id": result.GatewayTransactionID, "error": err.Error()}),
		})
		return nil, apperror.InternalError(err)
	}

	applyPatch(w, domain.StatusCompleted, patch)

	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &operatorID,
		Action:       domain.AuditActionWithdrawalApprove,
		ResourceType: "withdrawal",
		ResourceID:   w.ID.String(),
		Details:      auditDetails(map[string]any{"gateway_transaction_id": result.GatewayTransactionID, "net_amount": net.StringFixed(2)}),
	})

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("operator_id", operatorID.String()).
		Str("gateway_transaction_id", result.GatewayTransactionID).
		Str("net_amount", net.StringFixed(2)).
		Msg("withdrawal completed")

	return w, nil
}

// markApproved runs the pending|failed -> approved flip under a row lock.
func (s *WithdrawalServiceImpl) markApproved(ctx context.Context, withdrawalID, operatorID uuid.UUID) (
	*domain.LedgerTransaction, domain.WithdrawalDestination, decimal.Decimal, decimal.Decimal, error,
) {
	var dest domain.WithdrawalDestination

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, dest, decimal.Zero, decimal.Zero, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lockWithdrawal(ctx, dbTx, withdrawalID)
	if err != nil {
		return nil, dest, decimal.Zero, decimal.Zero, err
	}
	if !domain.WithdrawalTransitionAllowed(w.Status, domain.StatusApproved) {
		return nil, dest, decimal.Zero, decimal.Zero, apperror.ErrInvalidTransition(string(w.Status), string(domain.StatusApproved))
	}

	dest, err = destinationFromPayload(w.Payload)
	if err != nil {
		return nil, dest, decimal.Zero, decimal.Zero, apperror.InternalError(fmt.Errorf("withdrawal %s: %w", w.ID, err))
	}

	fee, net := s.Fee(w.ReservedAmount())
	patch := map[string]any{
		domain.PayloadFee:        fee.StringFixed(2),
		domain.PayloadNetAmount:  net.StringFixed(2),
		domain.PayloadOperatorID: operatorID.String(),
	}
	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, w.ID, domain.StatusApproved, patch); err != nil {
		return nil, dest, decimal.Zero, decimal.Zero, apperror.InternalError(fmt.Errorf("approve withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, dest, decimal.Zero, decimal.Zero, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	applyPatch(w, domain.StatusApproved, patch)
	return w, dest, fee, net, nil
}

// markFailed records a payout failure and returns the error for the operator.
func (s *WithdrawalServiceImpl) markFailed(ctx context.Context, w *domain.LedgerTransaction, operatorID uuid.UUID, payErr error) error {
	gwErr := apperror.ErrGateway(payErr)
	if errors.Is(payErr, context.DeadlineExceeded) {
		gwErr = apperror.ErrGatewayTimeout(payErr)
	}

	patch := map[string]any{domain.PayloadError: payErr.Error()}
	if err := s.setStatus(ctx, w.ID, domain.StatusFailed, patch); err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", w.ID.String()).Msg("failed to record payout failure")
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &operatorID,
		Action:       domain.AuditActionPayoutFailed,
		ResourceType: "withdrawal",
		ResourceID:   w.ID.String(),
		Details:      auditDetails(map[string]any{"code": gwErr.Code, "error": payErr.Error()}),
	})

	s.log.Error().Err(payErr).
		Str("withdrawal_id", w.ID.String()).
		Str("account_id", w.AccountID.String()).
		Str("amount", w.ReservedAmount().StringFixed(2)).
		Msg("payout failed, withdrawal left debited")

	return gwErr
}

// Reject refunds the reserved amount exactly once and records the reason.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, withdrawalID, operatorID uuid.UUID, reason string) (*domain.LedgerTransaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.ErrReasonRequired()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lockWithdrawal(ctx, dbTx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if !domain.WithdrawalTransitionAllowed(w.Status, domain.StatusRejected) {
		return nil, apperror.ErrInvalidTransition(string(w.Status), string(domain.StatusRejected))
	}

	patch := map[string]any{
		domain.PayloadRejectionReason: reason,
		domain.PayloadOperatorID:      operatorID.String(),
	}
	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, w.ID, domain.StatusRejected, patch); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reject withdrawal: %w", err))
	}

	key := domain.WithdrawalRefundKey(w.ID)
	if _, err := s.ledger.ApplyDeltaTx(ctx, dbTx, ports.DeltaRequest{
		AccountID:      w.AccountID,
		Field:          domain.BalanceSpendable,
		Delta:          w.ReservedAmount(),
		Kind:           domain.KindWithdrawalRefund,
		Status:         domain.StatusCompleted,
		IdempotencyKey: &key,
		Payload: map[string]any{
			"withdrawal_id": w.ID.String(),
			"reason":        reason,
		},
	}); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	applyPatch(w, domain.StatusRejected, patch)

	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &operatorID,
		Action:       domain.AuditActionWithdrawalReject,
		ResourceType: "withdrawal",
		ResourceID:   w.ID.String(),
		Details:      auditDetails(map[string]any{"reason": reason, "refunded": w.ReservedAmount().StringFixed(2)}),
	})

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("operator_id", operatorID.String()).
		Str("refunded", w.ReservedAmount().StringFixed(2)).
		Msg("withdrawal rejected")

	return w, nil
}

func (s *WithdrawalServiceImpl) lockWithdrawal(ctx context.Context, dbTx pgx.Tx, id uuid.UUID) (*domain.LedgerTransaction, error) {
	w, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil || w.Kind != domain.KindWithdrawal {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	return w, nil
}

// setStatus writes a status change in its own transaction.
func (s *WithdrawalServiceImpl) setStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, patch map[string]any) error {
	// Recording the gateway outcome must not depend on the caller still waiting.
	ctx = context.WithoutCancel(ctx)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, id, status, patch); err != nil {
		return fmt.Errorf("set withdrawal %s: %w", status, err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func applyPatch(w *domain.LedgerTransaction, status domain.TransactionStatus, patch map[string]any) {
	w.Status = status
	if w.Payload == nil {
		w.Payload = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		w.Payload[k] = v
	}
}

// destinationFromPayload reads the destination stored at request time. Rows
// read back from Postgres carry it as a generic JSON object.
func destinationFromPayload(payload map[string]any) (domain.WithdrawalDestination, error) {
	var dest domain.WithdrawalDestination
	raw, ok := payload[domain.PayloadDestination]
	if !ok {
		return dest, errors.New("missing destination")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return dest, fmt.Errorf("encode destination: %w", err)
	}
	if err := json.Unmarshal(b, &dest); err != nil {
		return dest, fmt.Errorf("decode destination: %w", err)
	}
	if err := validateDestination(dest); err != nil {
		return dest, err
	}
	return dest, nil
}

func validateDestination(d domain.WithdrawalDestination) error {
	switch d.Method {
	case domain.PayoutPix:
		if strings.TrimSpace(d.Key) == "" || d.KeyType == "" {
			return apperror.Validation("pix key and key type are required")
		}
	case domain.PayoutCrypto:
		if strings.TrimSpace(d.Address) == "" || d.Network == "" {
			return apperror.Validation("wallet address and network are required")
		}
	default:
		return apperror.Validation(fmt.Sprintf("unknown payout method %q", d.Method))
	}
	return nil
}

// auditDetails renders v as the JSON details string of an audit entry.
func auditDetails(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
