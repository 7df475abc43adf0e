// Package scheduler drives the ingestion orchestrator: one backfill at
// startup, then a refresh every time the trigger fires.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/ingestion"
	"github.com/lawmate/billpipe/pkg/logger"
)

// Trigger blocks until the next cycle is due or ctx is done.
type Trigger interface {
	Wait(ctx context.Context) error
}

// IntervalTrigger fires a fixed time after each Wait call starts, so the
// interval is measured from the end of the previous cycle.
type IntervalTrigger struct {
	Interval time.Duration
}

func (t IntervalTrigger) Wait(ctx context.Context) error {
	timer := time.NewTimer(t.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Jobs interface {
	Backfill(ctx context.Context) (ingestion.Report, error)
	Refresh(ctx context.Context) (ingestion.Report, error)
}

type Scheduler struct {
	jobs    Jobs
	trigger Trigger
}

func New(jobs Jobs, trigger Trigger) *Scheduler {
	return &Scheduler{jobs: jobs, trigger: trigger}
}

// Run blocks until ctx is cancelled. Job errors are logged and the loop
// keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Scheduler started")

	if _, err := s.jobs.Backfill(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("Backfill failed", zap.Error(err))
	}

	for {
		if err := s.trigger.Wait(ctx); err != nil {
			logger.Info("Scheduler stopped", zap.Error(err))
			return err
		}

		if _, err := s.jobs.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Refresh failed", zap.Error(err))
		}
	}
}
