package cron

import (
	"context"
	"testing"
	"time"

	redisstore "investment-core/internal/adapter/storage/redis"
	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/internal/service"
	"investment-core/pkg/apperror"
	"investment-core/pkg/clock"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scenario struct {
	store   *memStore
	manual  *clock.Manual
	clock   *clock.Clock
	ledger  *service.LedgerServiceImpl
	account domain.Account
}

func newScenario(t *testing.T, start time.Time, balance string) *scenario {
	t.Helper()
	store := newMemStore()
	manual := clock.NewManual(start)
	account := domain.Account{
		ID:               uuid.New(),
		Email:            "ana@example.com",
		SpendableBalance: dec(balance),
	}
	store.seedAccount(account)
	clk := clock.NewWithSource(brt, manual.Now)
	return &scenario{
		store:   store,
		manual:  manual,
		clock:   clk,
		ledger:  service.NewLedgerService(memAccounts{store}, memLedger{store}, store, clk, zerolog.Nop()),
		account: account,
	}
}

func (s *scenario) balance() string {
	return s.store.balance(s.account.ID).StringFixed(2)
}

func TestScenario_SixtyDayInvestment(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, brt)
	sc := newScenario(t, start, "300.00")

	product := domain.Product{
		ID:               uuid.New(),
		Name:             "Plano 60",
		Price:            dec("300.00"),
		DailyYieldAmount: dec("5.00"),
		DurationDays:     60,
		Active:           true,
	}
	sc.store.seedProduct(product)

	investments := memInvestments{sc.store}
	purchases := service.NewInvestmentService(memProducts{sc.store}, memAccounts{sc.store}, investments, sc.ledger, sc.store, nopAudit{}, sc.clock, zerolog.Nop())
	inv, err := purchases.Purchase(ctx, sc.account.ID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", sc.balance())

	yieldJob, err := NewYieldJob(YieldJobParams{
		Logger:      zerolog.Nop(),
		Investments: investments,
		LedgerRepo:  memLedger{sc.store},
		Ledger:      sc.ledger,
		Transactor:  sc.store,
		Clock:       sc.clock,
	})
	require.NoError(t, err)
	expJob, err := NewExpirationJob(ExpirationJobParams{
		Logger:      zerolog.Nop(),
		Investments: investments,
		Ledger:      sc.ledger,
		Transactor:  sc.store,
		Audit:       nopAudit{},
		Clock:       sc.clock,
	})
	require.NoError(t, err)

	cronSvc, err := NewService(ServiceParams{
		Logger:   zerolog.Nop(),
		Registry: NewRegistry(yieldJob, expJob),
		Lock:     &fakeLock{},
	})
	require.NoError(t, err)

	for day := 0; day < 60; day++ {
		sc.manual.Set(start.AddDate(0, 0, day).Add(time.Minute))
		require.NoError(t, cronSvc.RunOnce(ctx))
		// a second pass on the same day must not pay twice
		sc.manual.Advance(6 * time.Hour)
		require.NoError(t, cronSvc.RunOnce(ctx))

		want := dec("5.00").Mul(decimal.NewFromInt(int64(day + 1)))
		require.Equal(t, want.StringFixed(2), sc.balance(), "day %d", day)
	}

	got, err := investments.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentActive, got.Status)
	assert.Equal(t, "300.00", got.TotalEarned.StringFixed(2))
	assert.Len(t, sc.store.ledgerRows(domain.KindYield), 60)

	sc.manual.Set(start.AddDate(0, 0, 60).Add(time.Minute))
	require.NoError(t, cronSvc.RunOnce(ctx))
	require.NoError(t, cronSvc.RunOnce(ctx))

	assert.Equal(t, "600.00", sc.balance())
	got, err = investments.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	returns := sc.store.ledgerRows(domain.KindPrincipalReturn)
	require.Len(t, returns, 1)
	assert.Equal(t, "300.00", returns[0].Amount.StringFixed(2))
	assert.Len(t, sc.store.ledgerRows(domain.KindYield), 60)
}

func TestScenario_WithdrawalRejectedRestoresBalance(t *testing.T) {
	ctx := context.Background()
	sc := newScenario(t, time.Date(2024, 3, 1, 10, 0, 0, 0, brt), "250.00")

	withdrawals := service.NewWithdrawalService(
		sc.ledger, memLedger{sc.store}, memAccounts{sc.store}, sc.store, nil, nopAudit{},
		service.WithdrawalSettings{FeeRate: dec("0.05")}, zerolog.Nop(),
	)

	w, err := withdrawals.Request(ctx, ports.WithdrawalRequest{
		AccountID: sc.account.ID,
		Amount:    dec("100.00"),
		Destination: domain.WithdrawalDestination{
			Method:  domain.PayoutPix,
			Key:     "ana@example.com",
			KeyType: "email",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "150.00", sc.balance())

	operator := uuid.New()
	_, err = withdrawals.Reject(ctx, w.ID, operator, "dados incorretos")
	require.NoError(t, err)
	assert.Equal(t, "250.00", sc.balance())

	stored, err := memLedger{sc.store}.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, "dados incorretos", stored.Payload["reason"])

	_, err = withdrawals.Reject(ctx, w.ID, operator, "dados incorretos")
	require.Error(t, err)
	assert.Equal(t, "PAY_009", apperror.CodeOf(err))
	assert.Equal(t, "250.00", sc.balance())
	assert.Len(t, sc.store.ledgerRows(domain.KindWithdrawalRefund), 1)
}

func TestScenario_WebhookReplayCreditsOnce(t *testing.T) {
	ctx := context.Background()
	sc := newScenario(t, time.Date(2024, 3, 1, 10, 0, 0, 0, brt), "0.00")

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	receipts := &memReceipts{}
	sigSvc := service.NewHMACSignatureService()
	const secret = "whsec_test"
	ingest := service.NewWebhookIngestionService(
		sigSvc, memAccounts{sc.store}, memSettler{accounts: memAccounts{sc.store}, ledger: sc.ledger},
		redisstore.NewEventCache(rdb), receipts, nopAudit{}, nil, sc.clock,
		service.WebhookSettings{Secret: secret, RequireSignature: true},
		zerolog.Nop(),
	)

	body := []byte(`{"event":"payment.approved","data":{"transaction_id":"tx-42","status":"approved","amount":25.5,"email":"ana@example.com"}}`)
	ts := "1709290800"
	sig := "v1=" + sigSvc.Sign(secret, service.WebhookSigningString(ts, body))

	outcome, err := ingest.Process(ctx, body, ts, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, outcome)
	assert.Equal(t, "25.50", sc.balance())

	outcome, err = ingest.Process(ctx, body, ts, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, outcome)

	// without the cache the ledger key still holds
	mr.FlushAll()
	outcome, err = ingest.Process(ctx, body, ts, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, outcome)

	assert.Equal(t, "25.50", sc.balance())
	assert.Len(t, sc.store.ledgerRows(domain.KindDeposit), 1)
	assert.Equal(t, 3, receipts.count())
}

func TestScenario_WrongSecretCreatesNothing(t *testing.T) {
	ctx := context.Background()
	sc := newScenario(t, time.Date(2024, 3, 1, 10, 0, 0, 0, brt), "0.00")

	receipts := &memReceipts{}
	sigSvc := service.NewHMACSignatureService()
	ingest := service.NewWebhookIngestionService(
		sigSvc, memAccounts{sc.store}, memSettler{accounts: memAccounts{sc.store}, ledger: sc.ledger},
		nil, receipts, nopAudit{}, nil, sc.clock,
		service.WebhookSettings{Secret: "whsec_real", RequireSignature: true},
		zerolog.Nop(),
	)

	body := []byte(`{"event":"payment.approved","transaction_id":"tx-1","status":"approved","amount":10,"email":"ana@example.com"}`)
	ts := "1709290800"
	sig := "v1=" + sigSvc.Sign("whsec_wrong", service.WebhookSigningString(ts, body))

	outcome, err := ingest.Process(ctx, body, ts, sig)
	require.Error(t, err)
	assert.Equal(t, domain.WebhookRejected, outcome)
	assert.Equal(t, "SEC_002", apperror.CodeOf(err))

	assert.Equal(t, "0.00", sc.balance())
	assert.Empty(t, sc.store.ledgerRows(domain.KindDeposit))
	assert.Zero(t, receipts.count())
}
