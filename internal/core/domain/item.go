package domain

import "time"

type ItemKind string

const (
	ItemKindTask     ItemKind = "task"
	ItemKindTodo     ItemKind = "todo"
	ItemKindReminder ItemKind = "reminder"
)

type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusCancelled  ItemStatus = "cancelled"
)

// Item is the common record for tasks, todos and reminders. Only tasks
// (through their sessions) and timed reminders may reference a calendar
// event; todos never do.
type Item struct {
	ID          string
	Owner       string
	Kind        ItemKind
	Description string
	Status      ItemStatus
	Project     *string

	// Task fields.
	EstimatedDuration *time.Duration
	DueDate           *time.Time
	SessionsPlanned   int
	SessionsCompleted int

	// Reminder fields.
	Date             *time.Time
	TimeOfDay        *string
	EventID          *string
	SyncedToCalendar bool

	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateItemInput struct {
	Owner             string
	Kind              ItemKind
	Description       string
	Project           *string
	EstimatedDuration *time.Duration
	DueDate           *time.Time
	Date              *time.Time
	TimeOfDay         *string
}

type UpdateItemInput struct {
	Description       *string
	Project           *string
	ProjectSet        bool
	EstimatedDuration *time.Duration
	DueDate           *time.Time
	DueDateSet        bool
	Date              *time.Time
	TimeOfDay         *string
	TimeOfDaySet      bool
}

// ItemFilter narrows ListItems. Zero values mean "no constraint".
type ItemFilter struct {
	Statuses []ItemStatus
	Project  *string
	From     *time.Time
	To       *time.Time
}

// Active reports whether the item still needs attention.
func (i Item) Active() bool {
	return i.Status == ItemStatusPending || i.Status == ItemStatusInProgress
}
