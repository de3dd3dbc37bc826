package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whatstasker/internal/app/service"
	"whatstasker/internal/core/domain"
)

func TestReconcile_CancelsSessionsForVanishedEvents(t *testing.T) {
	repo := newFakeRepo()
	gateway := newFakeGateway()
	sync := service.NewSyncService(repo, gateway)
	ctx := context.Background()

	task, err := repo.CreateItem(ctx, domain.CreateItemInput{
		Owner: testOwner, Kind: domain.ItemKindTask, Description: "interrupted work",
	})
	require.NoError(t, err)

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	sess := domain.WorkingSession{
		ID: uuid.NewString(), TaskID: task.ID, Owner: testOwner,
		Start: start, End: start.Add(time.Hour),
		EventID: "evt-vanished", Status: domain.SessionStatusBooked,
	}
	require.NoError(t, repo.AttachSessions(ctx, task.ID, []domain.WorkingSession{sess}))

	report, err := sync.Reconcile(ctx, testOwner, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, report.Cancelled, 1)
	require.Equal(t, sess.ID, report.Cancelled[0].ID)

	remaining, err := repo.ListSessions(ctx, testOwner, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStatusCancelled, remaining[0].Status)
}

func TestReconcile_ReattachesTaggedEventWithKnownTask(t *testing.T) {
	repo := newFakeRepo()
	gateway := newFakeGateway()
	sync := service.NewSyncService(repo, gateway)
	ctx := context.Background()

	task, err := repo.CreateItem(ctx, domain.CreateItemInput{
		Owner: testOwner, Kind: domain.ItemKindTask, Description: "recovered work",
	})
	require.NoError(t, err)

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	gateway.events = []domain.CalendarEvent{{
		ID: "evt-orphan", Title: "Work: recovered work [1/1]",
		Start: start, End: start.Add(time.Hour), TaskID: task.ID,
	}}

	report, err := sync.Reconcile(ctx, testOwner, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, report.Reattached, 1)
	require.Empty(t, report.Orphaned)
	require.Empty(t, report.Cancelled)

	sessions, err := repo.ListSessions(ctx, testOwner, task.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "evt-orphan", sessions[0].EventID)
	require.Equal(t, domain.SessionStatusBooked, sessions[0].Status)
}

func TestReconcile_FlagsOrphanWithUnknownTask(t *testing.T) {
	repo := newFakeRepo()
	gateway := newFakeGateway()
	sync := service.NewSyncService(repo, gateway)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	gateway.events = []domain.CalendarEvent{{
		ID: "evt-lost", Start: start, End: start.Add(time.Hour), TaskID: "no-such-task",
	}}

	report, err := sync.Reconcile(ctx, testOwner, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, report.Orphaned, 1)
	require.Equal(t, "evt-lost", report.Orphaned[0].ID)
}

func TestReconcile_IgnoresUntaggedEvents(t *testing.T) {
	repo := newFakeRepo()
	gateway := newFakeGateway()
	sync := service.NewSyncService(repo, gateway)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	gateway.events = []domain.CalendarEvent{{
		ID: "evt-meeting", Title: "standup", Start: start, End: start.Add(time.Hour),
	}}

	report, err := sync.Reconcile(ctx, testOwner, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Empty(t, report.Reattached)
	require.Empty(t, report.Orphaned)
	require.Empty(t, report.Cancelled)
}
