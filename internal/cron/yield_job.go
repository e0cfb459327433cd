package cron

import (
	"context"
	"errors"
	"fmt"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/internal/service"
	"investment-core/pkg/clock"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// YieldKindDaily tags yield ledger rows written by the accrual job.
const YieldKindDaily = "daily_yield"

// YieldJobParams configure the yield accrual job.
type YieldJobParams struct {
	Logger      zerolog.Logger
	Investments ports.InvestmentRepository
	LedgerRepo  ports.LedgerRepository
	Ledger      ports.LedgerService
	Transactor  ports.DBTransactor
	Clock       *clock.Clock
}

// NewYieldJob builds the job that credits each active investment's daily
// yield at most once per reference-timezone day.
func NewYieldJob(params YieldJobParams) (Job, error) {
	if params.Investments == nil {
		return nil, errors.New("investment repository required")
	}
	if params.LedgerRepo == nil || params.Ledger == nil {
		return nil, errors.New("ledger required")
	}
	if params.Transactor == nil {
		return nil, errors.New("transactor required")
	}
	if params.Clock == nil {
		return nil, errors.New("clock required")
	}
	return &yieldAccrualJob{
		log:         params.Logger,
		investments: params.Investments,
		ledgerRepo:  params.LedgerRepo,
		ledger:      params.Ledger,
		transactor:  params.Transactor,
		clock:       params.Clock,
	}, nil
}

type yieldAccrualJob struct {
	log         zerolog.Logger
	investments ports.InvestmentRepository
	ledgerRepo  ports.LedgerRepository
	ledger      ports.LedgerService
	transactor  ports.DBTransactor
	clock       *clock.Clock
}

func (j *yieldAccrualJob) Name() string { return "yield-accrual" }

func (j *yieldAccrualJob) Run(ctx context.Context) error {
	active, err := j.investments.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active investments: %w", err)
	}

	now := j.clock.Now()
	day := j.clock.DayKey(now)

	var (
		errs     []error
		credited int
		skipped  int
	)
	for i := range active {
		inv := &active[i]
		if !inv.AccruesAt(now) {
			skipped++
			continue
		}
		ok, err := j.accrue(ctx, inv, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("investment %s: %w", inv.ID, err))
			continue
		}
		if ok {
			credited++
		} else {
			skipped++
		}
	}

	j.log.Info().
		Str("day", day).
		Int("credited", credited).
		Int("skipped", skipped).
		Int("failed", len(errs)).
		Msg("yield accrual finished")
	return multierr.Combine(errs...)
}

// accrue credits one day of yield. Returns false when the day was already paid
// or the investment stopped being active.
func (j *yieldAccrualJob) accrue(ctx context.Context, inv *domain.Investment, day string) (bool, error) {
	if !inv.DailyYield.IsPositive() {
		j.log.Warn().Str("investment_id", inv.ID.String()).Msg("investment has no daily yield")
		return false, nil
	}

	key := domain.YieldKey(inv.ID, day)
	exists, err := j.ledgerRepo.ExistsByIdempotencyKey(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	dbTx, err := j.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	_, err = j.ledger.ApplyDeltaTx(ctx, dbTx, ports.DeltaRequest{
		AccountID:      inv.AccountID,
		Field:          domain.BalanceSpendable,
		Delta:          inv.DailyYield,
		Kind:           domain.KindYield,
		Status:         domain.StatusCompleted,
		IdempotencyKey: &key,
		Payload: map[string]any{
			"investment_id": inv.ID.String(),
			"kind":          YieldKindDaily,
			"day":           day,
		},
	})
	if err != nil {
		if service.IsDuplicate(err) {
			return false, nil
		}
		return false, err
	}

	stillActive, err := j.investments.AddEarnings(ctx, dbTx, inv.ID, inv.DailyYield)
	if err != nil {
		return false, fmt.Errorf("add earnings: %w", err)
	}
	if !stillActive {
		return false, nil
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	j.log.Debug().
		Str("investment_id", inv.ID.String()).
		Str("account_id", inv.AccountID.String()).
		Str("amount", inv.DailyYield.String()).
		Str("day", day).
		Msg("daily yield credited")
	return true, nil
}
