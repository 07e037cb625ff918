package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ArticlesRewriter/internal/ports"
)

// Scheduler wires the cron driver with the job runner.
type Scheduler struct {
	driver ports.Scheduler
	runner *JobRunner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, runner *JobRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, runner: runner, logger: logger}
}

// Start registers scheduled runs with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.runner.Trigger(ctx, TriggerRequest{Reason: ReasonScheduled})
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.logger.Info("scheduled run skipped, previous run still active", "trigger", trigger)
		case errors.Is(err, ErrCircuitOpen):
			s.logger.Warn("scheduled run declined", "trigger", trigger, "error", report.Error)
		default:
			s.logger.Info("scheduled run done", "trigger", trigger, "inserted", report.Inserted, "rewritten", report.Rewritten)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
