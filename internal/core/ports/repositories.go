package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"investment-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, field domain.BalanceField, value decimal.Decimal) error
}

// LedgerRepository persists ledger rows.
type LedgerRepository interface {
	// Insert writes t unless its idempotency key already exists.
	// Returns false when the row was skipped as a duplicate.
	Insert(ctx context.Context, tx pgx.Tx, t *domain.LedgerTransaction) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerTransaction, error)
	ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error)
	// UpdateStatus sets status and merges patch into the jsonb payload.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, patch map[string]any) error
}

// ProductRepository reads investment products.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// InvestmentRepository defines persistence operations for investments.
type InvestmentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
	ListActive(ctx context.Context) ([]domain.Investment, error)
	CountByAccountAndProduct(ctx context.Context, tx pgx.Tx, accountID, productID uuid.UUID) (int, error)
	// AddEarnings increments total_earned of an active investment.
	// Returns false when the investment is no longer active.
	AddEarnings(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bool, error)
	// Complete flips an active investment to completed.
	// Returns false when another worker already completed it.
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// WebhookReceiptRepository persists the handling outcome of inbound notifications.
type WebhookReceiptRepository interface {
	Create(ctx context.Context, r *domain.WebhookReceipt) error
}

// DepositSettler credits a confirmed payment through the platform's settlement
// procedure, which also pays referral commissions. It is idempotent on PaymentID.
type DepositSettler interface {
	// Settle returns false when PaymentID was already settled.
	Settle(ctx context.Context, s DepositSettlement) (bool, error)
}

// DepositSettlement is the argument list of the settlement procedure.
type DepositSettlement struct {
	EventType   string
	PaymentID   string
	UserEmail   string
	Amount      decimal.Decimal
	GatewayData []byte // raw provider payload, stored as jsonb
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
