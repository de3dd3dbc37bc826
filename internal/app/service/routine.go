package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
	"whatstasker/pkg/messages"
)

const (
	routineHistoryDays = 1
	routineFutureDays  = 14
)

// RoutineService assembles morning summaries and evening reviews from the
// item store and calendar, and hands the rendered text to the transport.
// Each user fires at most once per routine per local day.
type RoutineService struct {
	repo      ports.ItemRepository
	gateway   ports.CalendarGateway
	transport ports.Transport
	catalog   *messages.Catalog

	now func() time.Time
}

func NewRoutineService(repo ports.ItemRepository, gateway ports.CalendarGateway, transport ports.Transport, catalog *messages.Catalog) *RoutineService {
	return &RoutineService{
		repo:      repo,
		gateway:   gateway,
		transport: transport,
		catalog:   catalog,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *RoutineService) WithClock(now func() time.Time) *RoutineService {
	r.now = now
	return r
}

// CheckTriggers is the cron entrypoint. It walks every known user and
// dispatches any summary whose local trigger time has passed today.
func (r *RoutineService) CheckTriggers(ctx context.Context) {
	owners, err := r.repo.ListOwners(ctx)
	if err != nil {
		zap.L().Error("routine check: list owners", zap.Error(err))
		return
	}

	for _, owner := range owners {
		if err := r.checkOwner(ctx, owner); err != nil {
			zap.L().Error("routine check failed for user", zap.String("owner", owner), zap.Error(err))
		}
	}
}

func (r *RoutineService) checkOwner(ctx context.Context, owner string) error {
	prefs, err := r.repo.GetPreferences(ctx, owner)
	if err != nil {
		return err
	}

	loc := prefs.Location()
	now := r.now().In(loc)
	today := now.Format("2006-01-02")
	clock := now.Format("15:04")

	changed := false
	if due(prefs.MorningSummaryTime, prefs.LastMorningTrigger, clock, today) {
		if msg := r.buildSummary(ctx, owner, prefs, now, "morning_summary"); msg != "" {
			r.transport.Send(owner, msg)
			prefs.LastMorningTrigger = today
			changed = true
		}
	}
	if due(prefs.EveningSummaryTime, prefs.LastEveningTrigger, clock, today) {
		if msg := r.buildSummary(ctx, owner, prefs, now, "evening_review"); msg != "" {
			r.transport.Send(owner, msg)
			prefs.LastEveningTrigger = today
			changed = true
		}
	}

	if changed {
		if err := r.repo.SavePreferences(ctx, prefs); err != nil {
			return fmt.Errorf("save trigger dates: %w", err)
		}
	}
	return nil
}

func due(triggerTime, lastFired, clock, today string) bool {
	return triggerTime != "" && clock >= triggerTime && lastFired != today
}

func (r *RoutineService) buildSummary(ctx context.Context, owner string, prefs domain.UserPreferences, now time.Time, key string) string {
	from := now.AddDate(0, 0, -routineHistoryDays)
	to := now.AddDate(0, 0, routineFutureDays)

	items, err := r.repo.ListItems(ctx, owner, domain.ItemFilter{
		Statuses: []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusInProgress},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		zap.L().Error("summary: list items", zap.String("owner", owner), zap.Error(err))
		return ""
	}

	var events []domain.CalendarEvent
	if r.gateway.Status(ctx, owner) == domain.CalendarConnected {
		dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
		events, err = r.gateway.ListEvents(ctx, owner, now, dayEnd)
		if err != nil {
			zap.L().Warn("summary: calendar unavailable, continuing without events",
				zap.String("owner", owner), zap.Error(err))
		}
	}

	body := r.renderItemLines(items, events)
	if body == "" {
		body = r.catalog.Get(key+"_empty", prefs.Language, nil)
	}
	return r.catalog.Get(key, prefs.Language, map[string]string{
		"date": now.Format("Monday, 2 January"),
		"body": body,
	})
}

func (r *RoutineService) renderItemLines(items []domain.Item, events []domain.CalendarEvent) string {
	var lines []string
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- %s %s (%s)",
			e.Start.Format("15:04"), e.Title, domain.FormatUserDuration(e.End.Sub(e.Start))))
	}
	for _, item := range items {
		line := fmt.Sprintf("- [%s] %s", item.Kind, item.Description)
		if item.DueDate != nil {
			line += " (due " + item.DueDate.Format("2006-01-02") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// DailyCleanup completes pending reminders whose date has passed. A
// reminder that already fired has served its purpose; leaving it pending
// only pollutes later summaries.
func (r *RoutineService) DailyCleanup(ctx context.Context) {
	owners, err := r.repo.ListOwners(ctx)
	if err != nil {
		zap.L().Error("daily cleanup: list owners", zap.Error(err))
		return
	}

	cutoff := r.now().UTC().Truncate(24 * time.Hour)
	for _, owner := range owners {
		items, err := r.repo.ListItems(ctx, owner, domain.ItemFilter{
			Statuses: []domain.ItemStatus{domain.ItemStatusPending},
		})
		if err != nil {
			zap.L().Error("daily cleanup: list items", zap.String("owner", owner), zap.Error(err))
			continue
		}
		for _, item := range items {
			if item.Kind != domain.ItemKindReminder || item.Date == nil || !item.Date.Before(cutoff) {
				continue
			}
			if _, err := r.repo.UpdateItemStatus(ctx, owner, item.ID, domain.ItemStatusCompleted); err != nil {
				zap.L().Error("daily cleanup: complete reminder",
					zap.String("item_id", item.ID), zap.Error(err))
			}
		}
	}
}
