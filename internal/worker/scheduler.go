package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	applog "faturamento/internal/log"
)

// OverdueSweeper is satisfied by *services.Sweeper.
type OverdueSweeper interface {
	SweepOverdueToday(ctx context.Context) (int, error)
}

// Scheduler runs the overdue sweep and the recent summary refresh on cron
// schedules in standard five-field syntax.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	sweeper OverdueSweeper
	worker  *SummaryWorker
}

// NewScheduler registers both jobs. Jobs run with ctx and stop being
// scheduled once Stop is called.
func NewScheduler(ctx context.Context, sweepSchedule, refreshSchedule string, sweeper OverdueSweeper, worker *SummaryWorker) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     ctx,
		sweeper: sweeper,
		worker:  worker,
	}

	if _, err := s.cron.AddFunc(sweepSchedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("schedule overdue sweep %q: %w", sweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(refreshSchedule, s.Refresh); err != nil {
		return nil, fmt.Errorf("schedule summary refresh %q: %w", refreshSchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.InfoContext(s.ctx, "Scheduler started", applog.FieldComponent, applog.ComponentScheduler, "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs the overdue sweep job once.
func (s *Scheduler) Sweep() {
	n, err := s.sweeper.SweepOverdueToday(s.ctx)
	if err != nil {
		slog.ErrorContext(s.ctx, "Scheduled overdue sweep failed",
			applog.FieldComponent, applog.ComponentScheduler,
			applog.FieldOperation, applog.OpSweep,
			applog.FieldError, err.Error())
		return
	}
	slog.InfoContext(s.ctx, "Scheduled overdue sweep finished",
		applog.FieldComponent, applog.ComponentScheduler,
		"marked", n)
}

// Refresh runs the recent summary refresh job once.
func (s *Scheduler) Refresh() {
	if err := s.worker.RefreshRecent(s.ctx); err != nil {
		slog.ErrorContext(s.ctx, "Scheduled summary refresh failed",
			applog.FieldComponent, applog.ComponentScheduler,
			applog.FieldOperation, applog.OpRefresh,
			applog.FieldError, err.Error())
		return
	}
	slog.DebugContext(s.ctx, "Scheduled summary refresh finished", applog.FieldComponent, applog.ComponentScheduler)
}
