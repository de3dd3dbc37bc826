package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whatstasker/internal/adapter/db"
	"whatstasker/internal/core/domain"
)

const testOwner = "31612345678@c.us"

func newTestRepo(t *testing.T) *db.ItemRepository {
	t.Helper()
	conn, err := db.ConnectMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return db.NewItemRepository(conn)
}

func createTask(t *testing.T, repo *db.ItemRepository, description string) domain.Item {
	t.Helper()
	duration := 2 * time.Hour
	item, err := repo.CreateItem(context.Background(), domain.CreateItemInput{
		Owner:             testOwner,
		Kind:              domain.ItemKindTask,
		Description:       description,
		EstimatedDuration: &duration,
	})
	require.NoError(t, err)
	return item
}

func session(taskID string, start time.Time, length time.Duration) domain.WorkingSession {
	return domain.WorkingSession{
		ID:      uuid.NewString(),
		TaskID:  taskID,
		Owner:   testOwner,
		Start:   start,
		End:     start.Add(length),
		EventID: uuid.NewString(),
		Status:  domain.SessionStatusBooked,
	}
}

func TestCreateAndGetItem(t *testing.T) {
	repo := newTestRepo(t)

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	project := "launch"
	duration := 90 * time.Minute
	created, err := repo.CreateItem(context.Background(), domain.CreateItemInput{
		Owner:             testOwner,
		Kind:              domain.ItemKindTask,
		Description:       "prepare launch deck",
		Project:           &project,
		EstimatedDuration: &duration,
		DueDate:           &due,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, domain.ItemStatusPending, created.Status)

	got, err := repo.GetItem(context.Background(), testOwner, created.ID)
	require.NoError(t, err)
	require.Equal(t, "prepare launch deck", got.Description)
	require.Equal(t, "launch", *got.Project)
	require.Equal(t, 90*time.Minute, *got.EstimatedDuration)
	require.Equal(t, "2026-03-10", got.DueDate.Format("2006-01-02"))
}

func TestGetItem_NotFoundAndWrongOwner(t *testing.T) {
	repo := newTestRepo(t)
	item := createTask(t, repo, "mine")

	_, err := repo.GetItem(context.Background(), testOwner, "missing")
	require.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = repo.GetItem(context.Background(), "someoneelse@c.us", item.ID)
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestListItems_FiltersByStatusAndProject(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := createTask(t, repo, "first")
	second := createTask(t, repo, "second")
	_, err := repo.UpdateItemStatus(ctx, testOwner, second.ID, domain.ItemStatusCompleted)
	require.NoError(t, err)

	active, err := repo.ListItems(ctx, testOwner, domain.ItemFilter{
		Statuses: []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusInProgress},
	})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, first.ID, active[0].ID)

	all, err := repo.ListItems(ctx, testOwner, domain.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpdateItemStatus_CompletedSemantics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	item := createTask(t, repo, "finish me")

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AttachSessions(ctx, item.ID, []domain.WorkingSession{
		session(item.ID, start, time.Hour),
		session(item.ID, start.Add(2*time.Hour), time.Hour),
	}))

	done, err := repo.UpdateItemStatus(ctx, testOwner, item.ID, domain.ItemStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, domain.ItemStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, done.SessionsPlanned, done.SessionsCompleted)

	// Reopening clears the completion bookkeeping.
	reopened, err := repo.UpdateItemStatus(ctx, testOwner, item.ID, domain.ItemStatusPending)
	require.NoError(t, err)
	require.Nil(t, reopened.CompletedAt)
	require.Zero(t, reopened.SessionsCompleted)
}

func TestAttachSessions_RejectsOverlap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	item := createTask(t, repo, "deep work")

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AttachSessions(ctx, item.ID, []domain.WorkingSession{
		session(item.ID, start, time.Hour),
	}))

	err := repo.AttachSessions(ctx, item.ID, []domain.WorkingSession{
		session(item.ID, start.Add(30*time.Minute), time.Hour),
	})
	require.ErrorIs(t, err, domain.ErrSessionOverlap)

	// Back-to-back is not an overlap: [9,10) then [10,11).
	require.NoError(t, repo.AttachSessions(ctx, item.ID, []domain.WorkingSession{
		session(item.ID, start.Add(time.Hour), time.Hour),
	}))

	got, err := repo.GetItem(ctx, testOwner, item.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.SessionsPlanned)
}

func TestCancelSessions_OnlyBookedAndRecounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	item := createTask(t, repo, "cancel some")

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	first := session(item.ID, start, time.Hour)
	second := session(item.ID, start.Add(2*time.Hour), time.Hour)
	require.NoError(t, repo.AttachSessions(ctx, item.ID, []domain.WorkingSession{first, second}))

	count, err := repo.CancelSessions(ctx, testOwner, item.ID, []string{first.ID})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Cancelling again is a no-op.
	count, err = repo.CancelSessions(ctx, testOwner, item.ID, []string{first.ID})
	require.NoError(t, err)
	require.Zero(t, count)

	got, err := repo.GetItem(ctx, testOwner, item.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.SessionsPlanned)

	sessions, err := repo.ListSessions(ctx, testOwner, item.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, domain.SessionStatusCancelled, sessions[0].Status)
	require.Equal(t, domain.SessionStatusBooked, sessions[1].Status)
}

func TestFindSessionsInWindow_ReadYourWrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	item := createTask(t, repo, "windowed")

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AttachSessions(ctx, item.ID, []domain.WorkingSession{
		session(item.ID, start, time.Hour),
	}))

	found, err := repo.FindSessionsInWindow(ctx, testOwner, start.Add(-time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Inclusive start, exclusive end: a window ending exactly at the
	// session start does not match.
	none, err := repo.FindSessionsInWindow(ctx, testOwner, start.Add(-time.Hour), start)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestLinkReminderEvent_OnlyReminders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	timeOfDay := "15:00"
	reminder, err := repo.CreateItem(ctx, domain.CreateItemInput{
		Owner:       testOwner,
		Kind:        domain.ItemKindReminder,
		Description: "call the bank",
		Date:        &date,
		TimeOfDay:   &timeOfDay,
	})
	require.NoError(t, err)

	require.NoError(t, repo.LinkReminderEvent(ctx, testOwner, reminder.ID, "evt-123"))
	got, err := repo.GetItem(ctx, testOwner, reminder.ID)
	require.NoError(t, err)
	require.Equal(t, "evt-123", *got.EventID)
	require.True(t, got.SyncedToCalendar)

	task := createTask(t, repo, "not a reminder")
	err = repo.LinkReminderEvent(ctx, testOwner, task.ID, "evt-456")
	require.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestPreferences_RoundTripAndDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	defaults, err := repo.GetPreferences(ctx, testOwner)
	require.NoError(t, err)
	require.Equal(t, "UTC", defaults.Timezone)
	require.Equal(t, time.Hour, defaults.SessionLength)
	require.Equal(t, domain.CalendarNotIntegrated, defaults.CalendarStatus)

	defaults.Timezone = "Europe/Amsterdam"
	defaults.WorkingDays = []time.Weekday{time.Monday, time.Wednesday}
	defaults.MorningSummaryTime = "07:30"
	defaults.CalendarStatus = domain.CalendarConnected
	require.NoError(t, repo.SavePreferences(ctx, defaults))

	stored, err := repo.GetPreferences(ctx, testOwner)
	require.NoError(t, err)
	require.Equal(t, "Europe/Amsterdam", stored.Timezone)
	require.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, stored.WorkingDays)
	require.Equal(t, "07:30", stored.MorningSummaryTime)
	require.Equal(t, domain.CalendarConnected, stored.CalendarStatus)

	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{testOwner}, owners)
}
