package service

import (
	"context"
	"fmt"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"
	"investment-core/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InvestmentServiceImpl implements ports.InvestmentService.
type InvestmentServiceImpl struct {
	productRepo    ports.ProductRepository
	accountRepo    ports.AccountRepository
	investmentRepo ports.InvestmentRepository
	ledger         ports.LedgerService
	transactor     ports.DBTransactor
	audit          ports.AuditService
	clock          *clock.Clock
	log            zerolog.Logger
}

// NewInvestmentService creates a new InvestmentServiceImpl.
func NewInvestmentService(
	productRepo ports.ProductRepository,
	accountRepo ports.AccountRepository,
	investmentRepo ports.InvestmentRepository,
	ledger ports.LedgerService,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	clk *clock.Clock,
	log zerolog.Logger,
) *InvestmentServiceImpl {
	return &InvestmentServiceImpl{
		productRepo:    productRepo,
		accountRepo:    accountRepo,
		investmentRepo: investmentRepo,
		ledger:         ledger,
		transactor:     transactor,
		audit:          audit,
		clock:          clk,
		log:            log,
	}
}

// Purchase debits the product price and opens an active investment in one
// transaction.
func (s *InvestmentServiceImpl) Purchase(ctx context.Context, accountID, productID uuid.UUID) (*domain.Investment, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get product: %w", err))
	}
	if product == nil {
		return nil, apperror.ErrNotFound("product")
	}
	if !product.Active || !product.Price.IsPositive() || product.DurationDays <= 0 {
		return nil, apperror.ErrProductUnavailable()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The account lock serializes purchases so the limit count below stays
	// accurate until commit.
	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	if product.PurchaseLimit > 0 {
		n, err := s.investmentRepo.CountByAccountAndProduct(ctx, dbTx, accountID, productID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("count purchases: %w", err))
		}
		if n >= product.PurchaseLimit {
			return nil, apperror.ErrPurchaseLimitReached()
		}
	}

	now := s.clock.Now()
	inv := &domain.Investment{
		ID:          uuid.New(),
		AccountID:   accountID,
		ProductID:   productID,
		Amount:      product.Price,
		DailyYield:  DailyYieldFor(product, account),
		Status:      domain.InvestmentActive,
		StartAt:     now,
		EndAt:       s.clock.AddDays(now, product.DurationDays),
		TotalEarned: decimal.Zero,
		CreatedAt:   now,
	}

	key := domain.PurchaseKey(inv.ID)
	if _, err := s.ledger.ApplyDeltaTx(ctx, dbTx, ports.DeltaRequest{
		AccountID:      accountID,
		Field:          domain.BalanceSpendable,
		Delta:          product.Price.Neg(),
		Kind:           domain.KindInvestmentPurchase,
		Status:         domain.StatusCompleted,
		IdempotencyKey: &key,
		Payload: map[string]any{
			"investment_id": inv.ID.String(),
			"product_id":    productID.String(),
		},
	}); err != nil {
		return nil, err
	}

	if err := s.investmentRepo.Create(ctx, dbTx, inv); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create investment: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &accountID,
		Action:       domain.AuditActionInvestmentBuy,
		ResourceType: "investment",
		ResourceID:   inv.ID.String(),
		Details:      auditDetails(map[string]any{"product_id": productID.String(), "amount": inv.Amount.StringFixed(2)}),
	})

	s.log.Info().
		Str("investment_id", inv.ID.String()).
		Str("account_id", accountID.String()).
		Str("product_id", productID.String()).
		Str("amount", inv.Amount.StringFixed(2)).
		Time("end_at", inv.EndAt).
		Msg("investment purchased")

	return inv, nil
}

// DailyYieldFor is the fixed amount an investment earns per day. An account
// level CustomYieldRate (percent of principal per day) overrides the product.
func DailyYieldFor(p *domain.Product, a *domain.Account) decimal.Decimal {
	if a != nil && a.CustomYieldRate != nil && a.CustomYieldRate.IsPositive() {
		return p.Price.Mul(*a.CustomYieldRate).Div(hundred).Round(2)
	}
	return p.DailyYieldAmount
}
