package postgres

import (
	"context"
	"testing"
	"time"

	"investment-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decimalArg matches a decimal argument by value rather than representation.
type decimalArg struct{ want decimal.Decimal }

func (d decimalArg) Match(v interface{}) bool {
	got, ok := v.(decimal.Decimal)
	return ok && got.Equal(d.want)
}

func ledgerCols() []string {
	return []string{"id", "account_id", "kind", "field", "amount", "balance_after", "status",
		"external_reference", "idempotency_key", "payload", "created_at", "updated_at"}
}

func newTestLedgerTx() *domain.LedgerTransaction {
	key := "yield:inv-1:2024-03-01"
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.LedgerTransaction{
		ID:             uuid.New(),
		AccountID:      uuid.New(),
		Kind:           domain.KindYield,
		Field:          domain.BalanceSpendable,
		Amount:         decimal.RequireFromString("5.00"),
		BalanceAfter:   decimal.RequireFromString("105.00"),
		Status:         domain.StatusCompleted,
		IdempotencyKey: &key,
		Payload:        map[string]any{"kind": "daily_yield", "day": "2024-03-01"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestLedgerRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	lt := newTestLedgerTx()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_transactions .+ ON CONFLICT \\(idempotency_key\\) DO NOTHING").
		WithArgs(lt.ID, lt.AccountID, "yield", "spendable", lt.Amount, lt.BalanceAfter, "completed",
			lt.ExternalReference, lt.IdempotencyKey, []byte(`{"day":"2024-03-01","kind":"daily_yield"}`),
			lt.CreatedAt, lt.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.Insert(context.Background(), tx, lt)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Insert_DuplicateKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_transactions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.Insert(context.Background(), tx, newTestLedgerTx())
	require.NoError(t, err)
	assert.False(t, inserted, "conflicting idempotency key must be reported as a skip")
}

func TestLedgerRepo_GetByIDForUpdate_DecodesPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	lt := newTestLedgerTx()
	lt.Kind = domain.KindWithdrawal
	lt.Status = domain.StatusPending
	lt.Amount = decimal.RequireFromString("-100.00")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM ledger_transactions WHERE id .+ FOR UPDATE").
		WithArgs(lt.ID).
		WillReturnRows(pgxmock.NewRows(ledgerCols()).AddRow(
			lt.ID, lt.AccountID, "withdrawal", "spendable", lt.Amount, lt.BalanceAfter, "pending",
			lt.ExternalReference, lt.IdempotencyKey,
			[]byte(`{"destination":{"method":"pix","key":"11999999999"}}`),
			lt.CreatedAt, lt.UpdatedAt,
		))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetByIDForUpdate(context.Background(), tx, lt.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.KindWithdrawal, got.Kind)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "100", got.ReservedAmount().String())

	dest, ok := got.Payload["destination"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pix", dest["method"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(ledgerCols()))

	got, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedgerRepo_ExistsByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("principal_return:abc").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByIdempotencyKey(context.Background(), "principal_return:abc")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_UpdateStatus_MergesPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ledger_transactions SET status = .+ payload = payload \\|\\|").
		WithArgs("rejected", []byte(`{"reason":"dados incorretos"}`), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, id, domain.StatusRejected, map[string]any{"reason": "dados incorretos"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ledger_transactions").
		WithArgs("failed", []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, uuid.New(), domain.StatusFailed, nil)
	assert.ErrorContains(t, err, "not found")
}
