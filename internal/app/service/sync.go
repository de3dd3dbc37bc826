package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
)

// SyncReport summarizes one reconciliation pass over an owner's window.
type SyncReport struct {
	Reattached []domain.WorkingSession
	Orphaned   []domain.CalendarEvent
	Cancelled  []domain.WorkingSession
}

// SyncService reconciles the calendar with the local store after partial
// failures. The calendar is the source of truth for "is this event still
// there"; the store is the source of truth for "is this session known to
// the task". Tagged events with no local record are re-attached when the
// task exists, otherwise flagged; booked sessions whose event vanished
// are cancelled locally. Nothing is ever silently duplicated or dropped.
type SyncService struct {
	repo    ports.ItemRepository
	gateway ports.CalendarGateway
}

func NewSyncService(repo ports.ItemRepository, gateway ports.CalendarGateway) *SyncService {
	return &SyncService{repo: repo, gateway: gateway}
}

// syncWindowDays bounds the sweep around now; anything older is settled.
const syncWindowDays = 14

// ReconcileAll sweeps every connected user. Per-owner failures are
// logged and skipped so one broken calendar cannot stall the rest.
func (s *SyncService) ReconcileAll(ctx context.Context) {
	owners, err := s.repo.ListOwners(ctx)
	if err != nil {
		zap.L().Error("reconcile sweep: list owners", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -syncWindowDays)
	end := now.AddDate(0, 0, syncWindowDays)

	for _, owner := range owners {
		if s.gateway.Status(ctx, owner) != domain.CalendarConnected {
			continue
		}
		if _, err := s.Reconcile(ctx, owner, start, end); err != nil {
			zap.L().Error("reconcile sweep failed for user", zap.String("owner", owner), zap.Error(err))
		}
	}
}

func (s *SyncService) Reconcile(ctx context.Context, owner string, start, end time.Time) (SyncReport, error) {
	report := SyncReport{}

	events, err := s.gateway.ListEvents(ctx, owner, start, end)
	if err != nil {
		return report, err
	}
	sessions, err := s.repo.FindSessionsInWindow(ctx, owner, start, end)
	if err != nil {
		return report, fmt.Errorf("reconcile: load sessions: %w", err)
	}

	byEventID := make(map[string]domain.WorkingSession, len(sessions))
	for _, sess := range sessions {
		byEventID[sess.EventID] = sess
	}
	remote := make(map[string]bool, len(events))

	for _, event := range events {
		remote[event.ID] = true
		if event.TaskID == "" {
			continue // not one of ours
		}
		if _, known := byEventID[event.ID]; known {
			continue
		}
		task, err := s.repo.GetItem(ctx, owner, event.TaskID)
		if err != nil {
			zap.L().Warn("orphan working-session event with no local task",
				zap.String("owner", owner), zap.String("event_id", event.ID),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrPersistenceInconsistency, err)))
			report.Orphaned = append(report.Orphaned, event)
			continue
		}
		session := domain.WorkingSession{
			ID:      uuid.NewString(),
			TaskID:  task.ID,
			Owner:   owner,
			Start:   event.Start,
			End:     event.End,
			EventID: event.ID,
			Status:  domain.SessionStatusBooked,
		}
		if err := s.repo.AttachSessions(ctx, task.ID, []domain.WorkingSession{session}); err != nil {
			zap.L().Error("failed to re-attach orphan event",
				zap.String("event_id", event.ID), zap.Error(err))
			report.Orphaned = append(report.Orphaned, event)
			continue
		}
		report.Reattached = append(report.Reattached, session)
	}

	for _, sess := range sessions {
		if sess.Status != domain.SessionStatusBooked || remote[sess.EventID] {
			continue
		}
		if _, err := s.repo.CancelSessions(ctx, owner, sess.TaskID, []string{sess.ID}); err != nil {
			zap.L().Error("failed to cancel session for vanished event",
				zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		report.Cancelled = append(report.Cancelled, sess)
	}

	if len(report.Reattached)+len(report.Orphaned)+len(report.Cancelled) > 0 {
		zap.L().Info("reconciliation pass",
			zap.String("owner", owner),
			zap.Int("reattached", len(report.Reattached)),
			zap.Int("orphaned", len(report.Orphaned)),
			zap.Int("cancelled", len(report.Cancelled)))
	}
	return report, nil
}
