package service

import (
	"context"
	"errors"
	"fmt"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"
	"investment-core/pkg/brcode"
	"investment-core/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PixSettings identifies the receiving merchant in deposit payloads.
type PixSettings struct {
	Key          string
	MerchantName string
	MerchantCity string
}

// DepositServiceImpl implements ports.DepositService.
type DepositServiceImpl struct {
	accountRepo ports.AccountRepository
	audit       ports.AuditService
	pix         PixSettings
	clock       *clock.Clock
	log         zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(accountRepo ports.AccountRepository, audit ports.AuditService, pix PixSettings, clk *clock.Clock, log zerolog.Logger) *DepositServiceImpl {
	return &DepositServiceImpl{
		accountRepo: accountRepo,
		audit:       audit,
		pix:         pix,
		clock:       clk,
		log:         log,
	}
}

// CreateDepositRequest returns a BR-Code payload for amount. Nothing is
// credited here; the balance moves when the provider's webhook settles.
func (s *DepositServiceImpl) CreateDepositRequest(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*ports.DepositRequest, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	payload, err := brcode.BuildDepositPayload(s.pix.Key, amount, s.pix.MerchantName, s.pix.MerchantCity)
	if err != nil {
		if errors.Is(err, brcode.ErrEmptyKey) {
			return nil, apperror.InternalError(fmt.Errorf("pix key not configured: %w", err))
		}
		if errors.Is(err, brcode.ErrAmountTooLong) {
			return nil, apperror.Validation("amount is too large for a PIX payload")
		}
		return nil, apperror.InternalError(fmt.Errorf("build payload: %w", err))
	}

	req := &ports.DepositRequest{
		Payload:           payload.Text,
		TxID:              payload.TxID,
		ExternalReference: domain.DepositReference(accountID, s.clock.Now()),
		Amount:            amount,
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &accountID,
		Action:       domain.AuditActionDepositRequest,
		ResourceType: "deposit",
		ResourceID:   req.TxID,
		Details:      auditDetails(map[string]any{"amount": amount.StringFixed(2), "external_reference": req.ExternalReference}),
	})

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("txid", req.TxID).
		Str("amount", amount.StringFixed(2)).
		Msg("deposit payload issued")

	return req, nil
}
