package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/internal/core/ports/mocks"
	"investment-core/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type expirationDeps struct {
	investments *mocks.MockInvestmentRepository
	ledger      *mocks.MockLedgerService
	transactor  *mocks.MockDBTransactor
	audit       *mocks.MockAuditService
}

func newExpirationJob(t *testing.T, now time.Time) (*expirationJob, expirationDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := expirationDeps{
		investments: mocks.NewMockInvestmentRepository(ctrl),
		ledger:      mocks.NewMockLedgerService(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		audit:       mocks.NewMockAuditService(ctrl),
	}
	job, err := NewExpirationJob(ExpirationJobParams{
		Logger:      zerolog.Nop(),
		Investments: d.investments,
		Ledger:      d.ledger,
		Transactor:  d.transactor,
		Audit:       d.audit,
		Clock:       fixedClock(now),
	})
	require.NoError(t, err)
	return job.(*expirationJob), d
}

func TestExpirationJob_ReturnsPrincipalOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, brt)
	job, d := newExpirationJob(t, now)
	inv := activeInvestment(now.AddDate(0, 0, -60), 60)
	tx := &mockTx{}

	d.investments.EXPECT().ListActive(ctx).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.investments.EXPECT().Complete(ctx, tx, inv.ID, now).Return(true, nil)
	d.ledger.EXPECT().ApplyDeltaTx(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, req ports.DeltaRequest) (*domain.LedgerTransaction, error) {
			assert.Equal(t, inv.AccountID, req.AccountID)
			assert.Equal(t, domain.KindPrincipalReturn, req.Kind)
			assert.True(t, req.Delta.Equal(dec("300")))
			require.NotNil(t, req.IdempotencyKey)
			assert.Equal(t, domain.PrincipalReturnKey(inv.ID), *req.IdempotencyKey)
			assert.Equal(t, "300.00", req.Payload["amount"])
			return &domain.LedgerTransaction{}, nil
		})
	d.audit.EXPECT().Log(ctx, gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionInvestmentDone, entry.Action)
		assert.Equal(t, inv.ID.String(), entry.ResourceID)
	})

	require.NoError(t, job.Run(ctx))
	assert.True(t, tx.committed)
}

func TestExpirationJob_AlreadyCompletedIsNoop(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, brt)
	job, d := newExpirationJob(t, now)
	inv := activeInvestment(now.AddDate(0, 0, -61), 60)
	tx := &mockTx{}

	d.investments.EXPECT().ListActive(ctx).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.investments.EXPECT().Complete(ctx, tx, inv.ID, now).Return(false, nil)

	require.NoError(t, job.Run(ctx))
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestExpirationJob_SkipsRunningInvestments(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, brt)
	job, d := newExpirationJob(t, now)
	// one minute short of maturity
	inv := activeInvestment(now.AddDate(0, 0, -60).Add(time.Minute), 60)

	d.investments.EXPECT().ListActive(ctx).Return([]domain.Investment{inv}, nil)

	require.NoError(t, job.Run(ctx))
}

func TestExpirationJob_PrincipalAlreadyReturnedRollsBack(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, brt)
	job, d := newExpirationJob(t, now)
	inv := activeInvestment(now.AddDate(0, 0, -60), 60)
	tx := &mockTx{}

	d.investments.EXPECT().ListActive(ctx).Return([]domain.Investment{inv}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.investments.EXPECT().Complete(ctx, tx, inv.ID, now).Return(true, nil)
	d.ledger.EXPECT().ApplyDeltaTx(ctx, tx, gomock.Any()).Return(nil, service.ErrDuplicateEvent)

	require.NoError(t, job.Run(ctx))
	assert.False(t, tx.committed)
}

func TestExpirationJob_FailureDoesNotStopBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, brt)
	job, d := newExpirationJob(t, now)
	broken := activeInvestment(now.AddDate(0, 0, -70), 60)
	healthy := activeInvestment(now.AddDate(0, 0, -60), 60)
	brokenTx, healthyTx := &mockTx{}, &mockTx{}

	d.investments.EXPECT().ListActive(ctx).Return([]domain.Investment{broken, healthy}, nil)
	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(brokenTx, nil),
		d.transactor.EXPECT().Begin(ctx).Return(healthyTx, nil),
	)
	d.investments.EXPECT().Complete(ctx, brokenTx, broken.ID, now).Return(true, nil)
	d.ledger.EXPECT().ApplyDeltaTx(ctx, brokenTx, gomock.Any()).Return(nil, errors.New("lock timeout"))
	d.investments.EXPECT().Complete(ctx, healthyTx, healthy.ID, now).Return(true, nil)
	d.ledger.EXPECT().ApplyDeltaTx(ctx, healthyTx, gomock.Any()).Return(&domain.LedgerTransaction{}, nil)
	d.audit.EXPECT().Log(ctx, gomock.Any())

	err := job.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.ID.String())
	assert.True(t, brokenTx.rolledBack)
	assert.True(t, healthyTx.committed)
}
