package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const investmentColumns = `id, account_id, product_id, amount, daily_yield, status,
	start_at, end_at, total_earned, completed_at, created_at`

// InvestmentRepo implements ports.InvestmentRepository.
type InvestmentRepo struct {
	pool Pool
}

// NewInvestmentRepo creates a new InvestmentRepo.
func NewInvestmentRepo(pool Pool) *InvestmentRepo {
	return &InvestmentRepo{pool: pool}
}

// Create inserts an investment inside the purchase transaction.
func (r *InvestmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	query := `INSERT INTO investments (` + investmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		inv.ID, inv.AccountID, inv.ProductID, inv.Amount, inv.DailyYield, string(inv.Status),
		inv.StartAt, inv.EndAt, inv.TotalEarned, inv.CompletedAt, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

// GetByID fetches an investment by id.
func (r *InvestmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	inv, err := scanInvestment(r.pool.QueryRow(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get investment: %w", err)
	}
	return inv, nil
}

// ListActive returns every active investment, oldest first.
func (r *InvestmentRepo) ListActive(ctx context.Context) ([]domain.Investment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE status = 'active' ORDER BY start_at`)
	if err != nil {
		return nil, fmt.Errorf("list active investments: %w", err)
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investments: %w", err)
	}
	return out, nil
}

// CountByAccountAndProduct counts purchases of a product by an account.
func (r *InvestmentRepo) CountByAccountAndProduct(ctx context.Context, tx pgx.Tx, accountID, productID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM investments WHERE account_id = $1 AND product_id = $2`,
		accountID, productID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count investments: %w", err)
	}
	return n, nil
}

// AddEarnings increments total_earned while the investment is active.
func (r *InvestmentRepo) AddEarnings(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE investments SET total_earned = total_earned + $1 WHERE id = $2 AND status = 'active'`,
		amount, id)
	if err != nil {
		return false, fmt.Errorf("add investment earnings: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete flips an active investment to completed.
func (r *InvestmentRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE investments SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'active'`,
		at, id)
	if err != nil {
		return false, fmt.Errorf("complete investment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	inv := &domain.Investment{}
	var status string
	err := row.Scan(
		&inv.ID, &inv.AccountID, &inv.ProductID, &inv.Amount, &inv.DailyYield, &status,
		&inv.StartAt, &inv.EndAt, &inv.TotalEarned, &inv.CompletedAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = domain.InvestmentStatus(status)
	return inv, nil
}
