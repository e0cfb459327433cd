package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // reference timezone must resolve on minimal images

	"investment-core/api"
	"investment-core/config"
	httpHandler "investment-core/internal/adapter/http/handler"
	"investment-core/internal/adapter/payout"
	pgStorage "investment-core/internal/adapter/storage/postgres"
	redisStorage "investment-core/internal/adapter/storage/redis"
	"investment-core/internal/core/ports"
	"investment-core/internal/service"
	"investment-core/pkg/clock"
	"investment-core/pkg/logger"
	"investment-core/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, "investment-api")

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Investment Core API")

	if cfg.Webhook.RequireSignature && cfg.Webhook.Secret == "" {
		log.Fatal().Msg("webhook.secret is required while webhook.require_signature is on")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}

	loc, err := clock.LoadLocation(cfg.Clock.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reference timezone")
	}
	clk := clock.New(loc)

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(reg)
	payoutMetrics := metrics.NewPayoutMetrics(reg)

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	productRepo := pgStorage.NewProductRepo(pool)
	investmentRepo := pgStorage.NewInvestmentRepo(pool)
	receiptRepo := pgStorage.NewWebhookReceiptRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	settler := pgStorage.NewDepositSettler(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	eventCache := redisStorage.NewEventCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	ledgerSvc := service.NewLedgerService(accountRepo, ledgerRepo, transactor, clk, logger.Component(log, "ledger"))

	payoutClient := payout.NewClient(cfg.Payout, nil, payoutMetrics, logger.Component(log, "payout"))

	// Initialize business services
	withdrawalSvc := service.NewWithdrawalService(
		ledgerSvc,
		ledgerRepo,
		accountRepo,
		transactor,
		payoutClient,
		auditSvc,
		service.WithdrawalSettings{FeeRate: cfg.Payout.Fee(), PayoutTimeout: cfg.Payout.Timeout},
		logger.Component(log, "withdrawal"),
	)
	investmentSvc := service.NewInvestmentService(
		productRepo,
		accountRepo,
		investmentRepo,
		ledgerSvc,
		transactor,
		auditSvc,
		clk,
		logger.Component(log, "investment"),
	)
	depositSvc := service.NewDepositService(
		accountRepo,
		auditSvc,
		service.PixSettings{Key: cfg.Pix.Key, MerchantName: cfg.Pix.MerchantName, MerchantCity: cfg.Pix.MerchantCity},
		clk,
		logger.Component(log, "deposit"),
	)
	ingestSvc := service.NewWebhookIngestionService(
		sigSvc,
		accountRepo,
		settler,
		eventCache,
		receiptRepo,
		auditSvc,
		webhookMetrics,
		clk,
		service.WebhookSettings{
			Secret:           cfg.Webhook.Secret,
			RequireSignature: cfg.Webhook.RequireSignature,
			MaxSkew:          cfg.Webhook.MaxSkew,
			AmountUnit:       service.AmountUnit(cfg.Webhook.AmountUnit),
			MinorThreshold:   cfg.Webhook.MinorThreshold,
		},
		logger.Component(log, "webhook"),
	)
	webhooks := httpHandler.NewWebhookHandler(ingestSvc, cfg.Webhook.ProcessTimeout, logger.Component(log, "webhook"))

	httpHandler.SetSwaggerSpec(api.OpenAPI)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Webhooks:       webhooks,
		DepositSvc:     depositSvc,
		WithdrawalSvc:  withdrawalSvc,
		InvestmentSvc:  investmentSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		Gatherer:       reg,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Webhook.ProcessTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// acknowledged notifications still settle before the pool closes
	if err := webhooks.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("In-flight webhooks abandoned")
	}

	log.Info().Msg("Server exited")
}
