package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
)

const itemColumns = `
	id, owner, kind, description, status, project, estimated_minutes,
	due_date, date, time_of_day, event_id, synced_to_calendar,
	sessions_planned, sessions_completed, completed_at, created_at, updated_at`

type ItemRepository struct {
	db *sqlx.DB
}

var _ ports.ItemRepository = (*ItemRepository)(nil)

func NewItemRepository(conn *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: conn}
}

type itemRow struct {
	ID                string         `db:"id"`
	Owner             string         `db:"owner"`
	Kind              string         `db:"kind"`
	Description       string         `db:"description"`
	Status            string         `db:"status"`
	Project           sql.NullString `db:"project"`
	EstimatedMinutes  sql.NullInt64  `db:"estimated_minutes"`
	DueDate           sql.NullString `db:"due_date"`
	Date              sql.NullString `db:"date"`
	TimeOfDay         sql.NullString `db:"time_of_day"`
	EventID           sql.NullString `db:"event_id"`
	SyncedToCalendar  int            `db:"synced_to_calendar"`
	SessionsPlanned   int            `db:"sessions_planned"`
	SessionsCompleted int            `db:"sessions_completed"`
	CompletedAt       sql.NullString `db:"completed_at"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

type sessionRow struct {
	ID      string `db:"id"`
	TaskID  string `db:"task_id"`
	Owner   string `db:"owner"`
	StartAt string `db:"start_at"`
	EndAt   string `db:"end_at"`
	EventID string `db:"event_id"`
	Status  string `db:"status"`
}

func (r *ItemRepository) CreateItem(ctx context.Context, input domain.CreateItemInput) (domain.Item, error) {
	if input.Owner == "" || input.Description == "" || input.Kind == "" {
		return domain.Item{}, fmt.Errorf("create item: owner, kind and description are required")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()

	var estimated sql.NullInt64
	if input.EstimatedDuration != nil {
		estimated = sql.NullInt64{Int64: int64(input.EstimatedDuration.Minutes()), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, owner, kind, description, status, project, estimated_minutes,
			due_date, date, time_of_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, input.Owner, input.Kind, input.Description, domain.ItemStatusPending,
		nullString(input.Project), estimated,
		nullDate(input.DueDate), nullDate(input.Date), nullString(input.TimeOfDay),
		now, now,
	)
	if err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return r.GetItem(ctx, input.Owner, id)
}

func (r *ItemRepository) GetItem(ctx context.Context, owner, itemID string) (domain.Item, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND owner = ?`, itemID, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return mapItemRow(row), nil
}

func (r *ItemRepository) ListItems(ctx context.Context, owner string, filter domain.ItemFilter) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner = ?`
	args := []any{owner}

	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(filter.Statuses)), ",")
		query += ` AND status IN (` + placeholders + `)`
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if filter.Project != nil {
		query += ` AND project = ?`
		args = append(args, *filter.Project)
	}
	if filter.From != nil {
		query += ` AND (due_date >= ? OR date >= ? OR (due_date IS NULL AND date IS NULL))`
		from := filter.From.Format("2006-01-02")
		args = append(args, from, from)
	}
	if filter.To != nil {
		query += ` AND (due_date <= ? OR date <= ? OR (due_date IS NULL AND date IS NULL))`
		to := filter.To.Format("2006-01-02")
		args = append(args, to, to)
	}
	query += ` ORDER BY COALESCE(due_date, date, created_at), created_at`

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapItemRow(row))
	}
	return items, nil
}

func (r *ItemRepository) UpdateItem(ctx context.Context, owner, itemID string, input domain.UpdateItemInput) (domain.Item, error) {
	if _, err := r.GetItem(ctx, owner, itemID); err != nil {
		return domain.Item{}, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if input.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *input.Description)
	}
	if input.ProjectSet {
		sets = append(sets, "project = ?")
		args = append(args, nullString(input.Project))
	}
	if input.EstimatedDuration != nil {
		sets = append(sets, "estimated_minutes = ?")
		args = append(args, int64(input.EstimatedDuration.Minutes()))
	}
	if input.DueDateSet {
		sets = append(sets, "due_date = ?")
		args = append(args, nullDate(input.DueDate))
	}
	if input.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, nullDate(input.Date))
	}
	if input.TimeOfDaySet {
		sets = append(sets, "time_of_day = ?")
		args = append(args, nullString(input.TimeOfDay))
	}

	args = append(args, itemID, owner)
	if _, err := r.db.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner = ?`, args...); err != nil {
		return domain.Item{}, fmt.Errorf("update item %s: %w", itemID, err)
	}
	return r.GetItem(ctx, owner, itemID)
}

func (r *ItemRepository) UpdateItemStatus(ctx context.Context, owner, itemID string, status domain.ItemStatus) (domain.Item, error) {
	existing, err := r.GetItem(ctx, owner, itemID)
	if err != nil {
		return domain.Item{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var completedAt any
	sessionsCompleted := existing.SessionsCompleted
	switch status {
	case domain.ItemStatusCompleted:
		completedAt = now
		sessionsCompleted = existing.SessionsPlanned
	case domain.ItemStatusPending:
		completedAt = nil
		sessionsCompleted = 0
	default:
		if existing.CompletedAt != nil {
			completedAt = existing.CompletedAt.Format(time.RFC3339)
		}
	}

	if _, err := r.db.ExecContext(ctx, `
		UPDATE items SET status = ?, completed_at = ?, sessions_completed = ?, updated_at = ?
		WHERE id = ? AND owner = ?`,
		status, completedAt, sessionsCompleted, now, itemID, owner); err != nil {
		return domain.Item{}, fmt.Errorf("update item status %s: %w", itemID, err)
	}
	return r.GetItem(ctx, owner, itemID)
}

func (r *ItemRepository) LinkReminderEvent(ctx context.Context, owner, itemID, eventID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET event_id = ?, synced_to_calendar = 1, updated_at = ?
		WHERE id = ? AND owner = ? AND kind = ?`,
		eventID, time.Now().UTC().Format(time.RFC3339), itemID, owner, domain.ItemKindReminder)
	if err != nil {
		return fmt.Errorf("link reminder event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// AttachSessions inserts booked sessions inside one transaction and bumps
// the task's planned count. The no-overlap invariant for booked sessions
// is enforced here so a buggy caller cannot corrupt the calendar view.
func (r *ItemRepository) AttachSessions(ctx context.Context, taskID string, sessions []domain.WorkingSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("attach sessions: begin: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sessions {
		if !s.Start.Before(s.End) {
			return fmt.Errorf("attach sessions: session %s start not before end", s.ID)
		}
		var overlapping int
		err := tx.GetContext(ctx, &overlapping, `
			SELECT COUNT(*) FROM sessions
			WHERE owner = ? AND status = ? AND start_at < ? AND end_at > ?`,
			s.Owner, domain.SessionStatusBooked,
			s.End.UTC().Format(time.RFC3339), s.Start.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("attach sessions: overlap check: %w", err)
		}
		if overlapping > 0 {
			return fmt.Errorf("attach sessions: %s: %w", s.ID, domain.ErrSessionOverlap)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, task_id, owner, start_at, end_at, event_id, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, taskID, s.Owner,
			s.Start.UTC().Format(time.RFC3339), s.End.UTC().Format(time.RFC3339),
			s.EventID, s.Status, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("attach sessions: insert %s: %w", s.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET
			sessions_planned = (SELECT COUNT(*) FROM sessions WHERE task_id = ? AND status != ?),
			updated_at = ?
		WHERE id = ?`,
		taskID, domain.SessionStatusCancelled,
		time.Now().UTC().Format(time.RFC3339), taskID); err != nil {
		return fmt.Errorf("attach sessions: update counters: %w", err)
	}

	return tx.Commit()
}

func (r *ItemRepository) CancelSessions(ctx context.Context, owner, taskID string, sessionIDs []string) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cancel sessions: begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(sessionIDs)), ",")
	args := []any{domain.SessionStatusCancelled, owner, taskID, domain.SessionStatusBooked}
	for _, id := range sessionIDs {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET status = ?
		WHERE owner = ? AND task_id = ? AND status = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("cancel sessions: %w", err)
	}
	affected, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET
			sessions_planned = (SELECT COUNT(*) FROM sessions WHERE task_id = ? AND status != ?),
			updated_at = ?
		WHERE id = ?`,
		taskID, domain.SessionStatusCancelled,
		time.Now().UTC().Format(time.RFC3339), taskID); err != nil {
		return 0, fmt.Errorf("cancel sessions: update counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *ItemRepository) ListSessions(ctx context.Context, owner, taskID string) ([]domain.WorkingSession, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, task_id, owner, start_at, end_at, event_id, status
		FROM sessions WHERE owner = ? AND task_id = ? ORDER BY start_at`, owner, taskID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return mapSessionRows(rows)
}

func (r *ItemRepository) FindSessionsInWindow(ctx context.Context, owner string, start, end time.Time) ([]domain.WorkingSession, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, task_id, owner, start_at, end_at, event_id, status
		FROM sessions
		WHERE owner = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at`,
		owner, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("find sessions in window: %w", err)
	}
	return mapSessionRows(rows)
}

type preferencesRow struct {
	Owner              string `db:"owner"`
	Timezone           string `db:"timezone"`
	WorkingDays        string `db:"working_days"`
	WorkStartMinutes   int    `db:"work_start_minutes"`
	WorkEndMinutes     int    `db:"work_end_minutes"`
	SessionMinutes     int    `db:"session_minutes"`
	Language           string `db:"language"`
	CalendarStatus     string `db:"calendar_status"`
	MorningSummaryTime string `db:"morning_summary_time"`
	EveningSummaryTime string `db:"evening_summary_time"`
	LastMorningTrigger string `db:"last_morning_trigger"`
	LastEveningTrigger string `db:"last_evening_trigger"`
}

// GetPreferences returns stored preferences, or onboarding defaults for
// an owner that has none yet.
func (r *ItemRepository) GetPreferences(ctx context.Context, owner string) (domain.UserPreferences, error) {
	var row preferencesRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM preferences WHERE owner = ?`, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultPreferences(owner), nil
	}
	if err != nil {
		return domain.UserPreferences{}, fmt.Errorf("get preferences: %w", err)
	}

	return domain.UserPreferences{
		Owner:              row.Owner,
		Timezone:           row.Timezone,
		WorkingDays:        parseWeekdays(row.WorkingDays),
		WorkStartMinutes:   row.WorkStartMinutes,
		WorkEndMinutes:     row.WorkEndMinutes,
		SessionLength:      time.Duration(row.SessionMinutes) * time.Minute,
		Language:           row.Language,
		CalendarStatus:     domain.CalendarStatus(row.CalendarStatus),
		MorningSummaryTime: row.MorningSummaryTime,
		EveningSummaryTime: row.EveningSummaryTime,
		LastMorningTrigger: row.LastMorningTrigger,
		LastEveningTrigger: row.LastEveningTrigger,
	}, nil
}

func (r *ItemRepository) SavePreferences(ctx context.Context, prefs domain.UserPreferences) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (owner, timezone, working_days, work_start_minutes,
			work_end_minutes, session_minutes, language, calendar_status,
			morning_summary_time, evening_summary_time, last_morning_trigger, last_evening_trigger)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			timezone = excluded.timezone,
			working_days = excluded.working_days,
			work_start_minutes = excluded.work_start_minutes,
			work_end_minutes = excluded.work_end_minutes,
			session_minutes = excluded.session_minutes,
			language = excluded.language,
			calendar_status = excluded.calendar_status,
			morning_summary_time = excluded.morning_summary_time,
			evening_summary_time = excluded.evening_summary_time,
			last_morning_trigger = excluded.last_morning_trigger,
			last_evening_trigger = excluded.last_evening_trigger`,
		prefs.Owner, prefs.Timezone, formatWeekdays(prefs.WorkingDays),
		prefs.WorkStartMinutes, prefs.WorkEndMinutes, int(prefs.SessionLength.Minutes()),
		prefs.Language, prefs.CalendarStatus,
		prefs.MorningSummaryTime, prefs.EveningSummaryTime,
		prefs.LastMorningTrigger, prefs.LastEveningTrigger)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (r *ItemRepository) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	if err := r.db.SelectContext(ctx, &owners, `SELECT owner FROM preferences ORDER BY owner`); err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

func mapItemRow(row itemRow) domain.Item {
	item := domain.Item{
		ID:                row.ID,
		Owner:             row.Owner,
		Kind:              domain.ItemKind(row.Kind),
		Description:       row.Description,
		Status:            domain.ItemStatus(row.Status),
		SyncedToCalendar:  row.SyncedToCalendar == 1,
		SessionsPlanned:   row.SessionsPlanned,
		SessionsCompleted: row.SessionsCompleted,
	}
	if row.Project.Valid {
		value := row.Project.String
		item.Project = &value
	}
	if row.EstimatedMinutes.Valid {
		value := time.Duration(row.EstimatedMinutes.Int64) * time.Minute
		item.EstimatedDuration = &value
	}
	if row.DueDate.Valid {
		if t, err := time.Parse("2006-01-02", row.DueDate.String); err == nil {
			item.DueDate = &t
		}
	}
	if row.Date.Valid {
		if t, err := time.Parse("2006-01-02", row.Date.String); err == nil {
			item.Date = &t
		}
	}
	if row.TimeOfDay.Valid {
		value := row.TimeOfDay.String
		item.TimeOfDay = &value
	}
	if row.EventID.Valid {
		value := row.EventID.String
		item.EventID = &value
	}
	if row.CompletedAt.Valid {
		if t, err := time.Parse(time.RFC3339, row.CompletedAt.String); err == nil {
			item.CompletedAt = &t
		}
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, row.CreatedAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, row.UpdatedAt)
	return item
}

func mapSessionRows(rows []sessionRow) ([]domain.WorkingSession, error) {
	sessions := make([]domain.WorkingSession, 0, len(rows))
	for _, row := range rows {
		start, err := time.Parse(time.RFC3339, row.StartAt)
		if err != nil {
			return nil, fmt.Errorf("parse session start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, row.EndAt)
		if err != nil {
			return nil, fmt.Errorf("parse session end: %w", err)
		}
		sessions = append(sessions, domain.WorkingSession{
			ID:      row.ID,
			TaskID:  row.TaskID,
			Owner:   row.Owner,
			Start:   start,
			End:     end,
			EventID: row.EventID,
			Status:  domain.SessionStatus(row.Status),
		})
	}
	return sessions, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func formatWeekdays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func parseWeekdays(s string) []time.Weekday {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n >= 0 && n <= 6 {
			days = append(days, time.Weekday(n))
		}
	}
	return days
}
