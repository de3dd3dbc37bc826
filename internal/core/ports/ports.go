package ports

import (
	"context"
	"time"

	"whatstasker/internal/core/domain"
)

// ItemRepository is the persistent item store. FindSessionsInWindow must
// reflect every previously committed booking for the owner
// (read-your-writes), which finalize relies on for idempotency.
type ItemRepository interface {
	CreateItem(ctx context.Context, input domain.CreateItemInput) (domain.Item, error)
	GetItem(ctx context.Context, owner, itemID string) (domain.Item, error)
	ListItems(ctx context.Context, owner string, filter domain.ItemFilter) ([]domain.Item, error)
	UpdateItem(ctx context.Context, owner, itemID string, input domain.UpdateItemInput) (domain.Item, error)
	UpdateItemStatus(ctx context.Context, owner, itemID string, status domain.ItemStatus) (domain.Item, error)

	LinkReminderEvent(ctx context.Context, owner, itemID, eventID string) error

	AttachSessions(ctx context.Context, taskID string, sessions []domain.WorkingSession) error
	CancelSessions(ctx context.Context, owner, taskID string, sessionIDs []string) (int, error)
	ListSessions(ctx context.Context, owner, taskID string) ([]domain.WorkingSession, error)
	FindSessionsInWindow(ctx context.Context, owner string, start, end time.Time) ([]domain.WorkingSession, error)

	GetPreferences(ctx context.Context, owner string) (domain.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs domain.UserPreferences) error
	ListOwners(ctx context.Context) ([]string, error)
}

// CalendarGateway wraps the remote calendar service. Implementations
// return domain.ErrCalendarUnavailable when the service is unreachable or
// the owner is not connected; callers treat that as a hard stop.
type CalendarGateway interface {
	Status(ctx context.Context, owner string) domain.CalendarStatus
	ListEvents(ctx context.Context, owner string, start, end time.Time) ([]domain.CalendarEvent, error)
	CreateEvent(ctx context.Context, owner string, event domain.CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, owner, eventID string) error
}

// ProposeInput carries one phase-1 request.
type ProposeInput struct {
	Owner            string
	Description      string
	TotalDuration    time.Duration
	SessionLength    time.Duration
	WindowStart      time.Time
	WindowEnd        time.Time
	DueDate          *time.Time
	Project          *string
	Hints            domain.Hints
	RescheduleTaskID string
}

// Negotiator is the two-phase slot negotiation protocol.
type Negotiator interface {
	ProposeSlots(ctx context.Context, input ProposeInput) (domain.Proposal, error)
	FinalizeSlots(ctx context.Context, contextBlob string, approved []domain.Slot) (domain.FinalizeResult, error)
}

// Transport delivers assistant text back to the chat channel.
type Transport interface {
	Send(owner, message string) string // returns the queued message id
}

// ToolCall is the single capability invocation a reasoning turn may request.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Decision is what the reasoning service returns for one turn: either a
// direct reply, or exactly one tool call (with an optional lead-in reply).
type Decision struct {
	Reply    string
	ToolCall *ToolCall
}

// Turn is the full context handed to the reasoning service.
type Turn struct {
	Owner    string
	Message  string
	History  []string
	Items    []domain.Item
	Calendar []domain.CalendarEvent
	Prefs    domain.UserPreferences
}

// Reasoner is the external reasoning service (intent parsing, response
// generation). It is a collaborator, not part of this repository's logic.
type Reasoner interface {
	Decide(ctx context.Context, turn Turn) (Decision, error)
}
