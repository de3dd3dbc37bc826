package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"whatstasker/internal/app/service"
)

const (
	// dailyCleanupSpec runs shortly after midnight of the server.
	dailyCleanupSpec = "5 0 * * *"
	// reconcileSpec sweeps calendars against the store a few times a day.
	reconcileSpec = "0 */6 * * *"
)

// Scheduler drives the background services off wall-clock time: the
// routine trigger check every few minutes, cleanup and calendar
// reconciliation less often. The per-user once-per-day guard lives in
// the routine service, so the check spec can be as frequent as wanted.
type Scheduler struct {
	cron    *cron.Cron
	routine *service.RoutineService
	sync    *service.SyncService
}

func New(routine *service.RoutineService, sync *service.SyncService) *Scheduler {
	return &Scheduler{cron: cron.New(), routine: routine, sync: sync}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start(checkSpec string) error {
	if _, err := s.cron.AddFunc(checkSpec, func() {
		s.routine.CheckTriggers(context.Background())
	}); err != nil {
		return fmt.Errorf("register trigger check %q: %w", checkSpec, err)
	}

	if _, err := s.cron.AddFunc(dailyCleanupSpec, func() {
		s.routine.DailyCleanup(context.Background())
	}); err != nil {
		return fmt.Errorf("register daily cleanup: %w", err)
	}

	if _, err := s.cron.AddFunc(reconcileSpec, func() {
		s.sync.ReconcileAll(context.Background())
	}); err != nil {
		return fmt.Errorf("register reconciliation sweep: %w", err)
	}

	s.cron.Start()
	zap.L().Info("scheduler started", zap.String("check_spec", checkSpec))
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
