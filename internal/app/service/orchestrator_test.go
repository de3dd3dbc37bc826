package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whatstasker/internal/app/service"
	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
)

type fakeReasoner struct {
	decision ports.Decision
	err      error
	lastTurn ports.Turn
}

func (f *fakeReasoner) Decide(_ context.Context, turn ports.Turn) (ports.Decision, error) {
	f.lastTurn = turn
	return f.decision, f.err
}

func orchestratorFixture(t *testing.T, decision ports.Decision) (*service.Orchestrator, *fakeRepo, *fakeGateway, *fakeTransport, *fakeReasoner) {
	t.Helper()
	repo := newFakeRepo()
	gateway := newFakeGateway()
	transport := &fakeTransport{}
	brain := &fakeReasoner{decision: decision}
	negotiator := service.NewNegotiator(repo, gateway)
	orch := service.NewOrchestrator(repo, gateway, negotiator, brain, transport)
	return orch, repo, gateway, transport, brain
}

func TestOrchestrator_DirectReply(t *testing.T) {
	orch, _, _, transport, brain := orchestratorFixture(t, ports.Decision{Reply: "Hi! What shall we plan?"})

	require.NoError(t, orch.HandleIncoming(context.Background(), testOwner, "hello"))

	sent := transport.all()
	require.Len(t, sent, 1)
	require.Equal(t, "Hi! What shall we plan?", sent[0].Body)
	require.Equal(t, "hello", brain.lastTurn.Message)
	require.Equal(t, testOwner, brain.lastTurn.Owner)
}

func TestOrchestrator_CreateTaskTool(t *testing.T) {
	orch, repo, _, transport, _ := orchestratorFixture(t, ports.Decision{
		ToolCall: &ports.ToolCall{
			Name: "create_task",
			Args: map[string]any{
				"description": "write the report",
				"duration":    "4h",
				"due_date":    "2026-01-09",
			},
		},
	})

	require.NoError(t, orch.HandleIncoming(context.Background(), testOwner, "I need to write a report by Friday"))

	items, err := repo.ListItems(context.Background(), testOwner, domain.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, domain.ItemKindTask, items[0].Kind)
	require.Equal(t, "write the report", items[0].Description)
	require.Equal(t, 4*time.Hour, *items[0].EstimatedDuration)
	require.Equal(t, "2026-01-09", items[0].DueDate.Format("2006-01-02"))

	sent := transport.all()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "write the report")
}

func TestOrchestrator_TimedReminderSyncsToCalendar(t *testing.T) {
	orch, repo, gateway, _, _ := orchestratorFixture(t, ports.Decision{
		ToolCall: &ports.ToolCall{
			Name: "create_reminder",
			Args: map[string]any{
				"description": "call the bank",
				"date":        "2026-01-07",
				"time":        "15:00",
			},
		},
	})

	require.NoError(t, orch.HandleIncoming(context.Background(), testOwner, "remind me to call the bank"))

	require.Len(t, gateway.created, 1)
	require.Equal(t, "Reminder: call the bank", gateway.created[0].Title)

	items, err := repo.ListItems(context.Background(), testOwner, domain.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].EventID)
	require.True(t, items[0].SyncedToCalendar)
}

func TestOrchestrator_DateOnlyReminderStaysLocal(t *testing.T) {
	orch, repo, gateway, _, _ := orchestratorFixture(t, ports.Decision{
		ToolCall: &ports.ToolCall{
			Name: "create_reminder",
			Args: map[string]any{
				"description": "renew passport",
				"date":        "2026-02-01",
			},
		},
	})

	require.NoError(t, orch.HandleIncoming(context.Background(), testOwner, "remind me to renew my passport"))

	require.Empty(t, gateway.created)
	items, err := repo.ListItems(context.Background(), testOwner, domain.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Nil(t, items[0].EventID)
}

func TestOrchestrator_ProposeWithoutCalendarIsFriendly(t *testing.T) {
	orch, _, gateway, transport, _ := orchestratorFixture(t, ports.Decision{
		ToolCall: &ports.ToolCall{
			Name: "propose_task_slots",
			Args: map[string]any{
				"description":  "write the report",
				"duration":     "2h",
				"window_start": "2026-01-05",
				"window_end":   "2026-01-09",
			},
		},
	})
	gateway.status = domain.CalendarNotIntegrated

	require.NoError(t, orch.HandleIncoming(context.Background(), testOwner, "find me time"))

	sent := transport.all()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "calendar isn't connected")
}

func TestOrchestrator_CancelTaskRemovesCalendarFootprint(t *testing.T) {
	orch, repo, gateway, transport, brain := orchestratorFixture(t, ports.Decision{})
	ctx := context.Background()

	// Book a task through the real negotiation path first.
	negotiator := service.NewNegotiator(repo, gateway)
	proposal, err := negotiator.ProposeSlots(ctx, proposeInput(2*time.Hour, time.Hour))
	require.NoError(t, err)
	booked, err := negotiator.FinalizeSlots(ctx, proposal.Context, []domain.Slot{{Ref: 1}, {Ref: 2}})
	require.NoError(t, err)
	require.Len(t, booked.Booked, 2)
	require.Len(t, gateway.created, 2)

	brain.decision = ports.Decision{
		ToolCall: &ports.ToolCall{
			Name: "update_item_status",
			Args: map[string]any{
				"item_id":    booked.TaskID,
				"new_status": "cancelled",
			},
		},
	}
	require.NoError(t, orch.HandleIncoming(ctx, testOwner, "cancel that task"))

	require.Empty(t, gateway.created, "booked events must be deleted on cancel")
	task, err := repo.GetItem(ctx, testOwner, booked.TaskID)
	require.NoError(t, err)
	require.Equal(t, domain.ItemStatusCancelled, task.Status)

	sessions, err := repo.ListSessions(ctx, testOwner, booked.TaskID)
	require.NoError(t, err)
	for _, s := range sessions {
		require.Equal(t, domain.SessionStatusCancelled, s.Status)
	}
	require.NotEmpty(t, transport.all())
}

func TestOrchestrator_TaskListRendersItems(t *testing.T) {
	orch, repo, _, transport, _ := orchestratorFixture(t, ports.Decision{
		ToolCall: &ports.ToolCall{Name: "get_task_list", Args: map[string]any{}},
	})
	ctx := context.Background()

	due := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	_, err := repo.CreateItem(ctx, domain.CreateItemInput{
		Owner: testOwner, Kind: domain.ItemKindTask,
		Description: "write the report", DueDate: &due,
	})
	require.NoError(t, err)

	require.NoError(t, orch.HandleIncoming(ctx, testOwner, "what's on my plate?"))

	sent := transport.all()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "write the report")
	require.Contains(t, sent[0].Body, "due 2026-01-09")
}

func TestOrchestrator_UnknownToolStillAnswers(t *testing.T) {
	orch, _, _, transport, _ := orchestratorFixture(t, ports.Decision{
		ToolCall: &ports.ToolCall{Name: "rm_rf_everything", Args: map[string]any{}},
	})

	require.NoError(t, orch.HandleIncoming(context.Background(), testOwner, "do something weird"))

	sent := transport.all()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "something went wrong")
}
