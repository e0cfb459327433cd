// Package cron runs the periodic investment jobs: daily yield accrual and
// principal return at maturity.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-core/pkg/metrics"

	"github.com/rs/zerolog"
)

const defaultInterval = time.Hour

// Lock keeps a cycle single-runner across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   zerolog.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service executes registered jobs on a fixed cadence.
type Service struct {
	log      zerolog.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		log:      params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes one cycle immediately and then one per interval until ctx is
// canceled. A cycle in progress is allowed to finish its current job.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled run failed")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("cron service stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled run failed")
			}
		}
	}
}

// RunOnce runs every registered job once if the lock can be taken.
// Job failures are logged and counted; they never abort the cycle.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.log.Info().Msg("another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.log.Error().Err(relErr).Msg("failed to release cron lock")
		}
	}()

	s.log.Info().Int("jobs", len(s.registry.jobs)).Msg("scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.log.Info().Msg("scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	log := s.log.With().Str("job", job.Name()).Str("event", "cron.job").Logger()
	log.Info().Msg("job start")

	start := time.Now()
	err := job.Run(log.WithContext(ctx))
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)

	if err != nil {
		log.Error().Err(err).Int64("duration_ms", duration.Milliseconds()).Msg("job failed")
		s.metrics.IncFailure(job.Name())
		return
	}
	log.Info().Int64("duration_ms", duration.Milliseconds()).Msg("job completed")
	s.metrics.IncSuccess(job.Name())
}
