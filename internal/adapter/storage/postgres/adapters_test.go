package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price", "daily_yield_amount", "duration_days", "purchase_limit", "active"}).
			AddRow(id, "Plano 60", decimal.RequireFromString("300.00"), decimal.RequireFromString("5.00"), 60, 1, true))

	p, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 60, p.DurationDays)
	assert.Equal(t, 1, p.PurchaseLimit)
	assert.True(t, p.Active)
}

func TestDepositSettler_Settle(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	settler := NewDepositSettler(mock)
	amount := decimal.RequireFromString("150.00")

	mock.ExpectQuery("SELECT process_payment_webhook\\(\\$1, \\$2, \\$3, \\$4, \\$5::jsonb\\)").
		WithArgs("payment.approved", "pay_1", "a@b.com", amount, []byte(`{"id":"pay_1"}`)).
		WillReturnRows(pgxmock.NewRows([]string{"process_payment_webhook"}).AddRow(true))
	mock.ExpectQuery("SELECT process_payment_webhook").
		WithArgs("payment.approved", "pay_1", "a@b.com", amount, []byte(`{"id":"pay_1"}`)).
		WillReturnRows(pgxmock.NewRows([]string{"process_payment_webhook"}).AddRow(false))

	req := ports.DepositSettlement{
		EventType:   domain.EventPaymentApproved,
		PaymentID:   "pay_1",
		UserEmail:   "a@b.com",
		Amount:      amount,
		GatewayData: []byte(`{"id":"pay_1"}`),
	}

	credited, err := settler.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = settler.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, credited, "replay of the same payment id must not credit again")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositSettler_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT process_payment_webhook").
		WithArgs("payment.approved", "pay_2", "", pgxmock.AnyArg(), []byte(`{}`)).
		WillReturnError(errors.New("account not found for "))

	_, err = NewDepositSettler(mock).Settle(context.Background(), ports.DepositSettlement{
		EventType: domain.EventPaymentApproved,
		PaymentID: "pay_2",
		Amount:    decimal.NewFromInt(1),
	})
	assert.ErrorContains(t, err, "pay_2")
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	actor := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       domain.AuditActionWithdrawalReject,
		ResourceType: "withdrawal",
		ResourceID:   "w-1",
		Details:      `{"reason":"dados incorretos"}`,
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, "WITHDRAWAL_REJECT", "withdrawal", "w-1",
			`{"reason":"dados incorretos"}`, "10.0.0.1", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewAuditRepo(mock).Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookReceiptRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	txID := "pay_9"
	rec := &domain.WebhookReceipt{
		ID:            uuid.New(),
		TransactionID: &txID,
		EventType:     domain.EventPaymentApproved,
		Outcome:       domain.WebhookSettled,
		RawBody:       `{"event":"payment.approved"}`,
		ReceivedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO webhook_receipts").
		WithArgs(rec.ID, rec.TransactionID, rec.EventType, rec.AccountID, "settled", rec.RawBody, rec.Error, rec.ReceivedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewWebhookReceiptRepo(mock).Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	h := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", h.Name())
	assert.NoError(t, h.Ping(context.Background()))
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.NoError(t, mock.ExpectationsWereMet())
}
