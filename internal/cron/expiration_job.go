package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/internal/service"
	"investment-core/pkg/clock"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// ExpirationJobParams configure the investment expiration job.
type ExpirationJobParams struct {
	Logger      zerolog.Logger
	Investments ports.InvestmentRepository
	Ledger      ports.LedgerService
	Transactor  ports.DBTransactor
	Audit       ports.AuditService
	Clock       *clock.Clock
}

// NewExpirationJob builds the job that completes matured investments and
// returns their principal exactly once.
func NewExpirationJob(params ExpirationJobParams) (Job, error) {
	if params.Investments == nil {
		return nil, errors.New("investment repository required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger required")
	}
	if params.Transactor == nil {
		return nil, errors.New("transactor required")
	}
	if params.Clock == nil {
		return nil, errors.New("clock required")
	}
	return &expirationJob{
		log:         params.Logger,
		investments: params.Investments,
		ledger:      params.Ledger,
		transactor:  params.Transactor,
		audit:       params.Audit,
		clock:       params.Clock,
	}, nil
}

type expirationJob struct {
	log         zerolog.Logger
	investments ports.InvestmentRepository
	ledger      ports.LedgerService
	transactor  ports.DBTransactor
	audit       ports.AuditService
	clock       *clock.Clock
}

func (j *expirationJob) Name() string { return "investment-expiration" }

func (j *expirationJob) Run(ctx context.Context) error {
	active, err := j.investments.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active investments: %w", err)
	}

	now := j.clock.Now()
	var (
		errs      []error
		completed int
	)
	for i := range active {
		inv := &active[i]
		if !inv.MaturedAt(now) {
			continue
		}
		ok, err := j.complete(ctx, inv, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("investment %s: %w", inv.ID, err))
			continue
		}
		if ok {
			completed++
		}
	}

	j.log.Info().
		Int("completed", completed).
		Int("failed", len(errs)).
		Msg("investment expiration finished")
	return multierr.Combine(errs...)
}

// complete flips the investment to completed and credits the principal in one
// transaction. Returns false when another run already did it.
func (j *expirationJob) complete(ctx context.Context, inv *domain.Investment, now time.Time) (bool, error) {
	dbTx, err := j.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	flipped, err := j.investments.Complete(ctx, dbTx, inv.ID, now)
	if err != nil {
		return false, fmt.Errorf("complete investment: %w", err)
	}
	if !flipped {
		return false, nil
	}

	key := domain.PrincipalReturnKey(inv.ID)
	_, err = j.ledger.ApplyDeltaTx(ctx, dbTx, ports.DeltaRequest{
		AccountID:      inv.AccountID,
		Field:          domain.BalanceSpendable,
		Delta:          inv.Amount,
		Kind:           domain.KindPrincipalReturn,
		Status:         domain.StatusCompleted,
		IdempotencyKey: &key,
		Payload: map[string]any{
			"investment_id": inv.ID.String(),
			"amount":        inv.Amount.StringFixed(2),
		},
	})
	if err != nil {
		if service.IsDuplicate(err) {
			// status row and ledger disagree; leave both untouched for an operator
			j.log.Error().Str("investment_id", inv.ID.String()).Msg("principal already returned for active investment")
			return false, nil
		}
		return false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	j.log.Info().
		Str("investment_id", inv.ID.String()).
		Str("account_id", inv.AccountID.String()).
		Str("principal", inv.Amount.String()).
		Msg("investment completed")

	if j.audit != nil {
		details, _ := json.Marshal(map[string]string{
			"account_id": inv.AccountID.String(),
			"principal":  inv.Amount.StringFixed(2),
		})
		j.audit.Log(ctx, &domain.AuditLog{
			Action:       domain.AuditActionInvestmentDone,
			ResourceType: "investment",
			ResourceID:   inv.ID.String(),
			Details:      string(details),
		})
	}
	return true, nil
}
