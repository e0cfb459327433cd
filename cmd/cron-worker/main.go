package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // reference timezone must resolve on minimal images

	"investment-core/config"
	pgStorage "investment-core/internal/adapter/storage/postgres"
	redisStorage "investment-core/internal/adapter/storage/redis"
	"investment-core/internal/cron"
	"investment-core/internal/service"
	"investment-core/pkg/clock"
	"investment-core/pkg/logger"
	"investment-core/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit (for external schedulers)")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, "cron-worker")

	loc, err := clock.LoadLocation(cfg.Clock.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reference timezone")
	}
	clk := clock.New(loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(reg)

	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	investmentRepo := pgStorage.NewInvestmentRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	auditSvc := service.NewAuditService(pgStorage.NewAuditRepo(pool), logger.Component(log, "audit"))
	ledgerSvc := service.NewLedgerService(accountRepo, ledgerRepo, transactor, clk, logger.Component(log, "ledger"))

	yieldJob, err := cron.NewYieldJob(cron.YieldJobParams{
		Logger:      log,
		Investments: investmentRepo,
		LedgerRepo:  ledgerRepo,
		Ledger:      ledgerSvc,
		Transactor:  transactor,
		Clock:       clk,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create yield job")
	}
	expirationJob, err := cron.NewExpirationJob(cron.ExpirationJobParams{
		Logger:      log,
		Investments: investmentRepo,
		Ledger:      ledgerSvc,
		Transactor:  transactor,
		Audit:       auditSvc,
		Clock:       clk,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create expiration job")
	}

	lock, err := redisStorage.NewJobLock(rdb, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cron lock")
	}

	// Yield runs first so an investment's final day is paid before it expires.
	svc, err := cron.NewService(cron.ServiceParams{
		Logger:   log,
		Registry: cron.NewRegistry(yieldJob, expirationJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cron service")
	}

	if *once {
		if err := svc.RunOnce(ctx); err != nil {
			log.Fatal().Err(err).Msg("Cron cycle failed")
		}
		return
	}

	metricsSrv := serveMetrics(cfg.Cron.MetricsAddr, reg, log)

	log.Info().Dur("interval", cfg.Cron.Interval).Msg("Starting cron worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Cron worker stopped unexpectedly")
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info().Msg("Cron worker shutting down gracefully")
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()
	return srv
}
