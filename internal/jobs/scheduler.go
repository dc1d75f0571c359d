package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/bundlemart/bundlemart-api/internal/domain/deposit"
)

const jobTimeout = 4 * time.Minute

// Scheduler runs the background reconciliation jobs: releasing stale deposit
// claims and re-verifying aged pending deposits against the gateway.
type Scheduler struct {
	cron     *cron.Cron
	deposits *deposit.Service

	sweepSchedule string
	pollSchedule  string
	pollBatchSize int
}

func NewScheduler(deposits *deposit.Service, sweepSchedule, pollSchedule string, pollBatchSize int) *Scheduler {
	if sweepSchedule == "" {
		sweepSchedule = "@every 1m"
	}
	if pollSchedule == "" {
		pollSchedule = "@every 5m"
	}
	if pollBatchSize <= 0 {
		pollBatchSize = 50
	}
	return &Scheduler{
		cron:          cron.New(),
		deposits:      deposits,
		sweepSchedule: sweepSchedule,
		pollSchedule:  pollSchedule,
		pollBatchSize: pollBatchSize,
	}
}

// Start registers and launches the jobs. Returns an error only on a bad
// schedule expression.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.sweepSchedule, func() {
		s.run("stale_claim_sweep", s.sweepStaleClaims)
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.pollSchedule, func() {
		s.run("pending_deposit_poll", s.pollPendingDeposits)
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().
		Str("sweep", s.sweepSchedule).
		Str("poll", s.pollSchedule).
		Msg("Background jobs started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Background jobs stopped")
}

// run executes a job with a timeout and panic recovery so one bad run never
// takes the scheduler down.
func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("job", name).
				Interface("panic", rec).
				Msg("Job panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := time.Now()
	if err := fn(ctx); err != nil {
		log.Error().
			Err(err).
			Str("job", name).
			Dur("elapsed", time.Since(started)).
			Msg("Job failed")
		return
	}
	log.Debug().
		Str("job", name).
		Dur("elapsed", time.Since(started)).
		Msg("Job completed")
}

func (s *Scheduler) sweepStaleClaims(ctx context.Context) error {
	_, err := s.deposits.SweepStaleClaims(ctx)
	return err
}

func (s *Scheduler) pollPendingDeposits(ctx context.Context) error {
	credited, checked, err := s.deposits.ReconcilePending(ctx, s.pollBatchSize, deposit.SourcePoll)
	if err != nil {
		return err
	}
	if checked > 0 {
		log.Info().
			Int("checked", checked).
			Int("credited", credited).
			Msg("Pending deposit poll finished")
	}
	return nil
}
