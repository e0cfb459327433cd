package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/pkg/apperror"
	"investment-core/pkg/clock"
	"investment-core/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// processedEventTTL bounds the Redis fast path. Postgres stays authoritative.
const processedEventTTL = 7 * 24 * time.Hour

// WebhookSettings configures inbound notification handling.
type WebhookSettings struct {
	Secret           string
	RequireSignature bool
	MaxSkew          time.Duration // 0 disables the timestamp window
	AmountUnit       AmountUnit
	MinorThreshold   int64
}

// WebhookIngestionServiceImpl implements ports.WebhookIngestionService.
// Process runs after the provider has been acknowledged, so its errors are
// only ever logged, counted, recorded and audited.
type WebhookIngestionServiceImpl struct {
	sigSvc      ports.SignatureService
	accountRepo ports.AccountRepository
	settler     ports.DepositSettler
	cache       ports.ProcessedEventCache
	receipts    ports.WebhookReceiptRepository
	audit       ports.AuditService
	metrics     *metrics.WebhookMetrics
	clock       *clock.Clock
	settings    WebhookSettings
	log         zerolog.Logger
}

// NewWebhookIngestionService creates a new WebhookIngestionServiceImpl.
// cache and receipts may be nil.
func NewWebhookIngestionService(
	sigSvc ports.SignatureService,
	accountRepo ports.AccountRepository,
	settler ports.DepositSettler,
	cache ports.ProcessedEventCache,
	receipts ports.WebhookReceiptRepository,
	audit ports.AuditService,
	m *metrics.WebhookMetrics,
	clk *clock.Clock,
	settings WebhookSettings,
	log zerolog.Logger,
) *WebhookIngestionServiceImpl {
	if settings.AmountUnit == "" {
		settings.AmountUnit = AmountUnitAuto
	}
	if settings.MinorThreshold <= 0 {
		settings.MinorThreshold = DefaultMinorThreshold
	}
	return &WebhookIngestionServiceImpl{
		sigSvc:      sigSvc,
		accountRepo: accountRepo,
		settler:     settler,
		cache:       cache,
		receipts:    receipts,
		audit:       audit,
		metrics:     m,
		clock:       clk,
		settings:    settings,
		log:         log,
	}
}

// Process takes one notification through
// received -> signature-checked -> normalized -> resolved -> settled | rejected | ignored.
func (s *WebhookIngestionServiceImpl) Process(ctx context.Context, rawBody []byte, timestamp, signature string) (outcome domain.WebhookOutcome, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(string(outcome), time.Since(started))
	}()

	if err := s.checkSignature(rawBody, timestamp, signature); err != nil {
		// Unauthenticated input: log only, no lookups and no writes.
		s.log.Warn().Err(err).
			Str("timestamp", timestamp).
			Int("body_bytes", len(rawBody)).
			Msg("webhook rejected")
		return domain.WebhookRejected, err
	}

	event, err := NormalizePaymentEvent(rawBody, s.settings.AmountUnit, s.settings.MinorThreshold)
	if err == nil && event.Settles() && !event.Amount.IsPositive() {
		err = fmt.Errorf("non-positive amount %s", event.Amount.String())
	}
	if err != nil {
		appErr := apperror.ErrMalformedPayload(err)
		s.log.Error().Err(err).Str("raw_body", string(rawBody)).Msg("malformed webhook payload")
		s.finish(ctx, rawBody, event, nil, domain.WebhookMalformed, appErr)
		return domain.WebhookMalformed, appErr
	}

	logger := s.log.With().
		Str("transaction_id", event.TransactionID).
		Str("event", event.EventType).
		Str("status", event.Status).
		Logger()

	if !event.Settles() {
		logger.Info().Msg("webhook ignored")
		s.finish(ctx, rawBody, event, nil, domain.WebhookIgnored, nil)
		return domain.WebhookIgnored, nil
	}

	if s.seen(ctx, event.TransactionID) {
		logger.Info().Msg("webhook replay skipped (cache)")
		s.finish(ctx, rawBody, event, nil, domain.WebhookDuplicate, nil)
		return domain.WebhookDuplicate, nil
	}

	account, err := s.resolveAccount(ctx, event)
	if err != nil {
		logger.Error().Err(err).Msg("webhook account lookup failed")
		s.finish(ctx, rawBody, event, nil, domain.WebhookFailed, err)
		return domain.WebhookFailed, err
	}
	if account == nil {
		appErr := apperror.ErrUnresolvedAccount()
		logger.Error().
			Str("email", event.Email).
			Str("external_reference", event.ExternalReference).
			Msg("webhook account unresolved")
		s.finish(ctx, rawBody, event, nil, domain.WebhookUnresolved, appErr)
		return domain.WebhookUnresolved, appErr
	}

	credited, err := s.settler.Settle(ctx, ports.DepositSettlement{
		EventType:   domain.EventPaymentApproved,
		PaymentID:   event.TransactionID,
		UserEmail:   account.Email,
		Amount:      event.Amount,
		GatewayData: rawBody,
	})
	if err != nil {
		appErr := apperror.InternalError(fmt.Errorf("settle deposit: %w", err))
		logger.Error().Err(err).Str("account_id", account.ID.String()).Msg("deposit settlement failed")
		s.finish(ctx, rawBody, event, &account.ID, domain.WebhookFailed, appErr)
		return domain.WebhookFailed, appErr
	}

	outcome = domain.WebhookSettled
	if !credited {
		outcome = domain.WebhookDuplicate
	}
	s.remember(ctx, event.TransactionID, outcome)

	logger.Info().
		Str("account_id", account.ID.String()).
		Str("amount", event.Amount.StringFixed(2)).
		Str("outcome", string(outcome)).
		Msg("webhook processed")

	s.finish(ctx, rawBody, event, &account.ID, outcome, nil)
	return outcome, nil
}

func (s *WebhookIngestionServiceImpl) checkSignature(rawBody []byte, timestamp, signature string) error {
	if s.settings.Secret == "" {
		if s.settings.RequireSignature {
			return fmt.Errorf("webhook secret not configured: %w", apperror.ErrInvalidSignature())
		}
		s.log.Warn().Msg("webhook secret not configured, accepting unsigned notification")
		return nil
	}

	if !s.sigSvc.VerifyWebhook(rawBody, timestamp, signature, s.settings.Secret) {
		return apperror.ErrInvalidSignature()
	}

	if s.settings.MaxSkew > 0 {
		sent, err := parseWebhookTimestamp(timestamp)
		if err != nil {
			return apperror.ErrTimestampExpired()
		}
		skew := s.clock.Now().Sub(sent)
		if skew < 0 {
			skew = -skew
		}
		if skew > s.settings.MaxSkew {
			return apperror.ErrTimestampExpired()
		}
	}
	return nil
}

// parseWebhookTimestamp reads unix seconds, or milliseconds for 13-digit values.
func parseWebhookTimestamp(ts string) (time.Time, error) {
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if n > 1e12 {
		return time.UnixMilli(n), nil
	}
	return time.Unix(n, 0), nil
}

// resolveAccount finds the paying account by email, else by the account id
// embedded in the external reference. A nil account means unresolved.
func (s *WebhookIngestionServiceImpl) resolveAccount(ctx context.Context, event domain.PaymentEvent) (*domain.Account, error) {
	if event.Email != "" {
		account, err := s.accountRepo.GetByEmail(ctx, event.Email)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get account by email: %w", err))
		}
		return account, nil
	}

	id, ok := domain.ParseDepositReference(event.ExternalReference)
	if !ok {
		return nil, nil
	}
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	return account, nil
}

func (s *WebhookIngestionServiceImpl) seen(ctx context.Context, transactionID string) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Seen(ctx, transactionID)
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("redis replay check failed, falling through to DB")
		return false
	}
	return ok
}

func (s *WebhookIngestionServiceImpl) remember(ctx context.Context, transactionID string, outcome domain.WebhookOutcome) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Remember(ctx, transactionID, outcome, processedEventTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("failed to cache processed webhook")
	}
}

// finish writes the receipt and, for failures, the operator audit entry.
func (s *WebhookIngestionServiceImpl) finish(
	ctx context.Context,
	rawBody []byte,
	event domain.PaymentEvent,
	accountID *uuid.UUID,
	outcome domain.WebhookOutcome,
	procErr error,
) {
	receipt := &domain.WebhookReceipt{
		ID:         uuid.New(),
		EventType:  event.EventType,
		AccountID:  accountID,
		Outcome:    outcome,
		RawBody:    string(rawBody),
		ReceivedAt: s.clock.Now(),
	}
	if event.TransactionID != "" {
		txID := event.TransactionID
		receipt.TransactionID = &txID
	}
	if procErr != nil {
		msg := procErr.Error()
		receipt.Error = &msg
	}

	if s.receipts != nil {
		if err := s.receipts.Create(ctx, receipt); err != nil {
			s.log.Warn().Err(err).Str("outcome", string(outcome)).Msg("failed to store webhook receipt")
		}
	}

	if procErr == nil {
		return
	}
	code := apperror.CodeOf(procErr)
	if code == "" {
		code = "SYS_000"
	}
	s.audit.Log(ctx, &domain.AuditLog{
		Action:       domain.AuditActionWebhookFailure,
		ResourceType: "webhook",
		ResourceID:   event.TransactionID,
		Details: auditDetails(map[string]any{
			"outcome": outcome,
			"code":    code,
			"error":   procErr.Error(),
		}),
	})
}
