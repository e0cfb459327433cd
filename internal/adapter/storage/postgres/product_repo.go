package postgres

import (
	"context"
	"errors"
	"fmt"

	"investment-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	pool Pool
}

// NewProductRepo creates a new ProductRepo.
func NewProductRepo(pool Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// GetByID fetches a product by id.
func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p := &domain.Product{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price, daily_yield_amount, duration_days, purchase_limit, active
		FROM products WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.Price, &p.DailyYieldAmount, &p.DurationDays, &p.PurchaseLimit, &p.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
