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

func accountCols() []string {
	return []string{"id", "email", "spendable_balance", "commission_balance", "withdrawal_limit", "custom_yield_rate", "created_at", "updated_at"}
}

func newTestAccount() *domain.Account {
	limit := decimal.RequireFromString("500.00")
	return &domain.Account{
		ID:                uuid.New(),
		Email:             "investor@example.com",
		SpendableBalance:  decimal.RequireFromString("250.00"),
		CommissionBalance: decimal.RequireFromString("12.50"),
		WithdrawalLimit:   &limit,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountCols()).AddRow(
		a.ID, a.Email, a.SpendableBalance, a.CommissionBalance,
		a.WithdrawalLimit, a.CustomYieldRate, a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))

	result, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.Email, result.Email)
	assert.True(t, a.SpendableBalance.Equal(result.SpendableBalance))
	require.NotNil(t, result.WithdrawalLimit)
	assert.Equal(t, "500", result.WithdrawalLimit.String())
	assert.Nil(t, result.CustomYieldRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(accountCols()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByEmail_Normalizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE lower\\(email\\)").
		WithArgs("investor@example.com").
		WillReturnRows(accountRow(a))

	result, err := repo.GetByEmail(context.Background(), "  Investor@Example.COM ")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))
	mock.ExpectRollback()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)

	require.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateBalance(t *testing.T) {
	tests := []struct {
		name   string
		field  domain.BalanceField
		column string
	}{
		{"spendable", domain.BalanceSpendable, "spendable_balance"},
		{"commission", domain.BalanceCommission, "commission_balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewAccountRepo(mock)
			id := uuid.New()
			value := decimal.RequireFromString("42.10")

			mock.ExpectBegin()
			mock.ExpectExec("UPDATE accounts SET "+tt.column).
				WithArgs(value, id).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			mock.ExpectCommit()

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)
			require.NoError(t, repo.UpdateBalance(context.Background(), tx, id, tt.field, value))
			require.NoError(t, tx.Commit(context.Background()))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepo_UpdateBalance_Errors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET spendable_balance").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, uuid.New(), domain.BalanceSpendable, decimal.Zero)
	assert.ErrorContains(t, err, "account not found")

	err = repo.UpdateBalance(context.Background(), tx, uuid.New(), domain.BalanceField("bonus"), decimal.Zero)
	assert.ErrorContains(t, err, "unknown balance field")
}
