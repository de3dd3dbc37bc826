package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
)

const (
	historyLimit            = 20
	snapshotHistoryWeeks    = 1
	snapshotFutureWeeks     = 2
	defaultReminderDuration = 15 * time.Minute
)

// Orchestrator handles one conversation turn: it assembles the user's
// current snapshot, asks the reasoning service for a decision, executes
// at most one tool call and relays the outcome through the transport.
// All state lives in the store; the only cross-turn artifact is the
// opaque search context embedded in tool arguments.
type Orchestrator struct {
	repo       ports.ItemRepository
	gateway    ports.CalendarGateway
	negotiator ports.Negotiator
	reasoner   ports.Reasoner
	transport  ports.Transport

	mu      sync.Mutex
	history map[string][]string
}

func NewOrchestrator(repo ports.ItemRepository, gateway ports.CalendarGateway, negotiator ports.Negotiator, reasoner ports.Reasoner, transport ports.Transport) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		gateway:    gateway,
		negotiator: negotiator,
		reasoner:   reasoner,
		transport:  transport,
		history:    make(map[string][]string),
	}
}

// HandleIncoming processes one inbound user message end to end.
func (o *Orchestrator) HandleIncoming(ctx context.Context, owner, message string) error {
	turn, err := o.buildTurn(ctx, owner, message)
	if err != nil {
		return err
	}

	decision, err := o.reasoner.Decide(ctx, turn)
	if err != nil {
		return fmt.Errorf("reasoner: %w", err)
	}

	reply := decision.Reply
	if decision.ToolCall != nil {
		outcome := o.executeTool(ctx, owner, *decision.ToolCall)
		if reply != "" {
			reply = reply + "\n" + outcome
		} else {
			reply = outcome
		}
	}
	if reply == "" {
		return nil
	}

	o.transport.Send(owner, reply)
	o.remember(owner, "user: "+message, "assistant: "+reply)
	return nil
}

func (o *Orchestrator) buildTurn(ctx context.Context, owner, message string) (ports.Turn, error) {
	prefs, err := o.repo.GetPreferences(ctx, owner)
	if err != nil {
		return ports.Turn{}, fmt.Errorf("build turn: preferences: %w", err)
	}

	now := time.Now().In(prefs.Location())
	from := now.AddDate(0, 0, -7*snapshotHistoryWeeks)
	to := now.AddDate(0, 0, 7*snapshotFutureWeeks)

	items, err := o.repo.ListItems(ctx, owner, domain.ItemFilter{
		Statuses: []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusInProgress},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return ports.Turn{}, fmt.Errorf("build turn: items: %w", err)
	}

	var events []domain.CalendarEvent
	if o.gateway.Status(ctx, owner) == domain.CalendarConnected {
		events, err = o.gateway.ListEvents(ctx, owner, now, to)
		if err != nil {
			zap.L().Warn("turn snapshot without calendar", zap.String("owner", owner), zap.Error(err))
			events = nil
		}
	}

	o.mu.Lock()
	history := append([]string(nil), o.history[owner]...)
	o.mu.Unlock()

	return ports.Turn{
		Owner:    owner,
		Message:  message,
		History:  history,
		Items:    items,
		Calendar: events,
		Prefs:    prefs,
	}, nil
}

func (o *Orchestrator) remember(owner string, lines ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h := append(o.history[owner], lines...)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	o.history[owner] = h
}

// executeTool dispatches the single capability the reasoner picked and
// renders a human-readable outcome. Tool failures become messages, not
// errors: the user must always hear back.
func (o *Orchestrator) executeTool(ctx context.Context, owner string, call ports.ToolCall) string {
	var (
		out string
		err error
	)
	switch call.Name {
	case "create_task":
		out, err = o.toolCreateTask(ctx, owner, call.Args)
	case "create_reminder":
		out, err = o.toolCreateReminder(ctx, owner, call.Args)
	case "create_todo":
		out, err = o.toolCreateTodo(ctx, owner, call.Args)
	case "propose_task_slots":
		out, err = o.toolProposeSlots(ctx, owner, call.Args)
	case "finalize_task_and_book_sessions":
		out, err = o.toolFinalizeSlots(ctx, owner, call.Args)
	case "update_item_status":
		out, err = o.toolUpdateStatus(ctx, owner, call.Args)
	case "cancel_task_sessions":
		out, err = o.toolCancelSessions(ctx, owner, call.Args)
	case "get_task_list":
		out, err = o.toolTaskList(ctx, owner, call.Args)
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}
	if err != nil {
		zap.L().Error("tool execution failed",
			zap.String("owner", owner), zap.String("tool", call.Name), zap.Error(err))
		switch {
		case errors.Is(err, domain.ErrCalendarUnavailable):
			return "Your calendar isn't connected right now, so I can't check availability."
		case errors.Is(err, domain.ErrBookingInProgress):
			return "I'm still finishing your previous booking. Give me a moment and try again."
		default:
			return "Sorry, something went wrong handling that."
		}
	}
	return out
}

func (o *Orchestrator) toolCreateTask(ctx context.Context, owner string, args map[string]any) (string, error) {
	description := argString(args, "description")
	if description == "" {
		return "", fmt.Errorf("create_task: missing description")
	}
	duration, err := argDuration(args, "duration")
	if err != nil {
		return "", err
	}
	due, err := argDate(args, "due_date")
	if err != nil {
		return "", err
	}

	item, err := o.repo.CreateItem(ctx, domain.CreateItemInput{
		Owner:             owner,
		Kind:              domain.ItemKindTask,
		Description:       description,
		Project:           argStringPtr(args, "project"),
		EstimatedDuration: duration,
		DueDate:           due,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task noted: %q. Say the word when you want me to find time for it.", item.Description), nil
}

func (o *Orchestrator) toolCreateReminder(ctx context.Context, owner string, args map[string]any) (string, error) {
	description := argString(args, "description")
	date, err := argDate(args, "date")
	if err != nil {
		return "", err
	}
	if description == "" || date == nil {
		return "", fmt.Errorf("create_reminder: missing description or date")
	}
	timeOfDay := argStringPtr(args, "time")

	item, err := o.repo.CreateItem(ctx, domain.CreateItemInput{
		Owner:       owner,
		Kind:        domain.ItemKindReminder,
		Description: description,
		Date:        date,
		TimeOfDay:   timeOfDay,
	})
	if err != nil {
		return "", err
	}

	// Only timed reminders go to the calendar; date-only ones stay local.
	if timeOfDay != nil && o.gateway.Status(ctx, owner) == domain.CalendarConnected {
		start, perr := time.ParseInLocation("2006-01-02 15:04", date.Format("2006-01-02")+" "+*timeOfDay, time.UTC)
		if perr == nil {
			eventID, cerr := o.gateway.CreateEvent(ctx, owner, domain.CalendarEvent{
				Title: "Reminder: " + description,
				Start: start,
				End:   start.Add(defaultReminderDuration),
			})
			if cerr != nil {
				zap.L().Warn("reminder kept local, calendar event failed",
					zap.String("item_id", item.ID), zap.Error(cerr))
			} else if lerr := o.repo.LinkReminderEvent(ctx, owner, item.ID, eventID); lerr != nil {
				zap.L().Error("reminder event created but link failed",
					zap.String("item_id", item.ID), zap.String("event_id", eventID),
					zap.Error(fmt.Errorf("%w: %v", domain.ErrPersistenceInconsistency, lerr)))
			}
		}
	}
	return fmt.Sprintf("Reminder set for %s: %s", date.Format("2006-01-02"), description), nil
}

func (o *Orchestrator) toolCreateTodo(ctx context.Context, owner string, args map[string]any) (string, error) {
	description := argString(args, "description")
	if description == "" {
		return "", fmt.Errorf("create_todo: missing description")
	}
	due, err := argDate(args, "due_date")
	if err != nil {
		return "", err
	}
	duration, err := argDuration(args, "duration")
	if err != nil {
		return "", err
	}
	if _, err := o.repo.CreateItem(ctx, domain.CreateItemInput{
		Owner:             owner,
		Kind:              domain.ItemKindTodo,
		Description:       description,
		DueDate:           due,
		EstimatedDuration: duration,
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added to your list: %s", description), nil
}

func (o *Orchestrator) toolProposeSlots(ctx context.Context, owner string, args map[string]any) (string, error) {
	duration, err := argDuration(args, "duration")
	if err != nil {
		return "", err
	}
	if duration == nil {
		return "", fmt.Errorf("propose_task_slots: missing duration")
	}
	windowStart, err := argDate(args, "window_start")
	if err != nil {
		return "", err
	}
	windowEnd, err := argDate(args, "window_end")
	if err != nil {
		return "", err
	}
	if windowStart == nil || windowEnd == nil {
		return "", fmt.Errorf("propose_task_slots: missing search window")
	}
	due, err := argDate(args, "due_date")
	if err != nil {
		return "", err
	}

	prefs, err := o.repo.GetPreferences(ctx, owner)
	if err != nil {
		return "", err
	}
	sessionLength := prefs.SessionLength
	if override, derr := argDuration(args, "session_length"); derr == nil && override != nil {
		sessionLength = *override
	}

	proposal, err := o.negotiator.ProposeSlots(ctx, ports.ProposeInput{
		Owner:            owner,
		Description:      argString(args, "description"),
		TotalDuration:    *duration,
		SessionLength:    sessionLength,
		WindowStart:      *windowStart,
		WindowEnd:        *windowEnd,
		DueDate:          due,
		Project:          argStringPtr(args, "project"),
		Hints:            argHints(args),
		RescheduleTaskID: argString(args, "reschedule_task_id"),
	})
	if err != nil {
		return "", err
	}
	return renderProposal(proposal), nil
}

func (o *Orchestrator) toolFinalizeSlots(ctx context.Context, owner string, args map[string]any) (string, error) {
	blob := argString(args, "search_context")
	approved, err := argSlots(args, "approved_slots")
	if err != nil {
		return "", err
	}

	result, err := o.negotiator.FinalizeSlots(ctx, blob, approved)
	if err != nil {
		return "", err
	}
	return renderFinalize(result), nil
}

func (o *Orchestrator) toolUpdateStatus(ctx context.Context, owner string, args map[string]any) (string, error) {
	itemID := argString(args, "item_id")
	status := domain.ItemStatus(argString(args, "new_status"))
	if itemID == "" || status == "" {
		return "", fmt.Errorf("update_item_status: missing item_id or new_status")
	}

	if status == domain.ItemStatusCancelled {
		if err := o.cancelItem(ctx, owner, itemID); err != nil {
			return "", err
		}
		return "Done, it's cancelled.", nil
	}

	item, err := o.repo.UpdateItemStatus(ctx, owner, itemID, status)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Marked %q as %s.", item.Description, item.Status), nil
}

// cancelItem removes calendar footprints before flipping the status:
// the reminder's event, or every booked session of a task.
func (o *Orchestrator) cancelItem(ctx context.Context, owner, itemID string) error {
	item, err := o.repo.GetItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	connected := o.gateway.Status(ctx, owner) == domain.CalendarConnected

	switch item.Kind {
	case domain.ItemKindReminder:
		if item.EventID != nil && connected {
			if err := o.gateway.DeleteEvent(ctx, owner, *item.EventID); err != nil {
				zap.L().Warn("failed to delete reminder event during cancel",
					zap.String("event_id", *item.EventID), zap.Error(err))
			}
		}
	case domain.ItemKindTask:
		sessions, err := o.repo.ListSessions(ctx, owner, item.ID)
		if err != nil {
			return err
		}
		var ids []string
		for _, s := range sessions {
			if s.Status != domain.SessionStatusBooked {
				continue
			}
			ids = append(ids, s.ID)
			if connected {
				if err := o.gateway.DeleteEvent(ctx, owner, s.EventID); err != nil {
					zap.L().Warn("failed to delete session event during cancel",
						zap.String("event_id", s.EventID), zap.Error(err))
				}
			}
		}
		if len(ids) > 0 {
			if _, err := o.repo.CancelSessions(ctx, owner, item.ID, ids); err != nil {
				return err
			}
		}
	}

	_, err = o.repo.UpdateItemStatus(ctx, owner, itemID, domain.ItemStatusCancelled)
	return err
}

func (o *Orchestrator) toolCancelSessions(ctx context.Context, owner string, args map[string]any) (string, error) {
	taskID := argString(args, "task_id")
	ids := argStrings(args, "session_ids")
	if taskID == "" || len(ids) == 0 {
		return "", fmt.Errorf("cancel_task_sessions: missing task_id or session_ids")
	}

	sessions, err := o.repo.ListSessions(ctx, owner, taskID)
	if err != nil {
		return "", err
	}
	connected := o.gateway.Status(ctx, owner) == domain.CalendarConnected
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for _, s := range sessions {
		if wanted[s.ID] && s.Status == domain.SessionStatusBooked && connected {
			if err := o.gateway.DeleteEvent(ctx, owner, s.EventID); err != nil {
				zap.L().Warn("failed to delete session event",
					zap.String("event_id", s.EventID), zap.Error(err))
			}
		}
	}

	count, err := o.repo.CancelSessions(ctx, owner, taskID, ids)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Cancelled %d session(s).", count), nil
}

func (o *Orchestrator) toolTaskList(ctx context.Context, owner string, args map[string]any) (string, error) {
	filter := domain.ItemFilter{Project: argStringPtr(args, "project")}
	switch argString(args, "status_filter") {
	case "", "active":
		filter.Statuses = []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusInProgress}
	case "completed":
		filter.Statuses = []domain.ItemStatus{domain.ItemStatusCompleted}
	case "all":
	default:
		filter.Statuses = []domain.ItemStatus{domain.ItemStatus(argString(args, "status_filter"))}
	}

	items, err := o.repo.ListItems(ctx, owner, filter)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "No items found matching your criteria.", nil
	}

	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, item.Kind, item.Description)
		if item.DueDate != nil {
			fmt.Fprintf(&b, " (due %s)", item.DueDate.Format("2006-01-02"))
		}
		if item.Kind == domain.ItemKindReminder && item.Date != nil {
			fmt.Fprintf(&b, " (%s)", item.Date.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func renderProposal(p domain.Proposal) string {
	if len(p.Slots) == 0 {
		if p.Diagnostic != "" {
			return "I couldn't find any free slots: " + p.Diagnostic
		}
		return "I couldn't find any free slots in that window."
	}
	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for _, s := range p.Slots {
		fmt.Fprintf(&b, "%d. %s %s-%s\n",
			s.Ref, s.Start.Format("Mon 2 Jan"), s.Start.Format("15:04"), s.End.Format("15:04"))
	}
	if p.Diagnostic != "" {
		b.WriteString("(" + p.Diagnostic + ")\n")
	}
	b.WriteString("Reply with the numbers you'd like me to book.")
	return b.String()
}

func renderFinalize(r domain.FinalizeResult) string {
	var b strings.Builder
	if len(r.Booked) > 0 {
		fmt.Fprintf(&b, "Booked %d session(s):\n", len(r.Booked))
		for _, s := range r.Booked {
			fmt.Fprintf(&b, "- %s %s-%s\n",
				s.Start.Format("Mon 2 Jan"), s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	}
	for _, rej := range r.Rejected {
		fmt.Fprintf(&b, "Couldn't book %s %s-%s (%s).\n",
			rej.Slot.Start.Format("Mon 2 Jan"), rej.Slot.Start.Format("15:04"),
			rej.Slot.End.Format("15:04"), rej.Reason)
	}
	if b.Len() == 0 {
		return "None of the approved slots could be booked."
	}
	return strings.TrimRight(b.String(), "\n")
}
