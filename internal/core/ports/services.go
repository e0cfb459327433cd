package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"investment-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	VerifyWebhook(rawBody []byte, timestamp, signatureHeader, secret string) bool
}

// TokenService validates bearer tokens minted by the identity service.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// Roles carried in bearer tokens.
const (
	RoleInvestor = "investor"
	RoleOperator = "operator"
)

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Role      string
}

// ProcessedEventCache is the Redis fast path in front of DB idempotency.
type ProcessedEventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string, outcome domain.WebhookOutcome, ttl time.Duration) error
}

// PayoutGateway sends approved withdrawals to the external payout provider.
type PayoutGateway interface {
	Send(ctx context.Context, req PayoutRequest) (*domain.PayoutResult, error)
}

// PayoutRequest is what the payout provider needs to pay out a withdrawal.
type PayoutRequest struct {
	Amount             decimal.Decimal // net of fee
	DestinationKey     string
	DestinationKeyType string
	ExternalReference  string
}

// --- Service Ports (Business Logic) ---

// LedgerService is the only writer of account balances.
type LedgerService interface {
	ApplyDelta(ctx context.Context, req DeltaRequest) (*domain.LedgerTransaction, error)
	ApplyDeltaTx(ctx context.Context, tx pgx.Tx, req DeltaRequest) (*domain.LedgerTransaction, error)
}

// DeltaRequest describes one balance movement.
type DeltaRequest struct {
	AccountID         uuid.UUID
	Field             domain.BalanceField
	Delta             decimal.Decimal
	Kind              domain.TransactionKind
	Status            domain.TransactionStatus
	ExternalReference *string
	IdempotencyKey    *string
	Payload           map[string]any
}

// WithdrawalService runs the withdrawal reservation and settlement workflow.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (*domain.LedgerTransaction, error)
	Approve(ctx context.Context, withdrawalID, operatorID uuid.UUID) (*domain.LedgerTransaction, error)
	Reject(ctx context.Context, withdrawalID, operatorID uuid.UUID, reason string) (*domain.LedgerTransaction, error)
}

// WithdrawalRequest holds validated input for a withdrawal reservation.
type WithdrawalRequest struct {
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Destination domain.WithdrawalDestination
}

// InvestmentService handles investment purchases.
type InvestmentService interface {
	Purchase(ctx context.Context, accountID, productID uuid.UUID) (*domain.Investment, error)
}

// DepositService issues BR-Code payloads for inbound deposits.
type DepositService interface {
	CreateDepositRequest(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*DepositRequest, error)
}

// DepositRequest is the payload an investor pays to fund the account.
type DepositRequest struct {
	Payload           string          `json:"payload"`
	TxID              string          `json:"txid"`
	ExternalReference string          `json:"external_reference"`
	Amount            decimal.Decimal `json:"amount"`
}

// WebhookIngestionService processes inbound payment notifications after they
// have been acknowledged.
type WebhookIngestionService interface {
	Process(ctx context.Context, rawBody []byte, timestamp, signature string) (domain.WebhookOutcome, error)
}

// AuditService records operator-visible events.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
