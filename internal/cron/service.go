package cron

import (
	"context"
	"time"

	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/metrics"
)

// Service runs registered jobs on an interval, guarded per-job by a
// distributed lock so only one worker replica executes a given tick.
type Service struct {
	registry *Registry
	interval time.Duration
	lockFor  func(jobName string) *RedisLock
	metrics  *metrics.CronJobMetrics
	logg     *logger.Logger
}

func NewService(
	registry *Registry,
	interval time.Duration,
	lockFor func(jobName string) *RedisLock,
	jobMetrics *metrics.CronJobMetrics,
	logg *logger.Logger,
) *Service {
	return &Service{
		registry: registry,
		interval: interval,
		lockFor:  lockFor,
		metrics:  jobMetrics,
		logg:     logg,
	}
}

// Run blocks until ctx is cancelled, executing every registered job each
// interval.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logg.Info(ctx, "cron service started")
	// run once immediately so a fresh deploy doesn't wait a full interval
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())

	lock := s.lockFor(job.Name())
	acquired, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "acquiring job lock", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := lock.Release(jobCtx); err != nil {
			s.logg.Error(jobCtx, "releasing job lock", err)
		}
	}()

	start := time.Now()
	runErr := job.Run(jobCtx)
	s.metrics.ObserveDuration(job.Name(), time.Since(start))

	if runErr != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(jobCtx, "cron job failed", runErr)
		return
	}
	s.metrics.IncSuccess(job.Name())
}
