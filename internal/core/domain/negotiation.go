package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DayPart is a soft time-of-day preference. Morning ends at noon,
// afternoon runs noon to 17:00, evening starts at 17:00.
type DayPart string

const (
	DayPartAny       DayPart = ""
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
	DayPartEvening   DayPart = "evening"
)

// Hints are pre-parsed soft scheduling constraints. Free-text
// interpretation ("prefer afternoons") happens upstream in the reasoning
// service; the negotiation core only sees this structured form. Hints may
// be relaxed when they leave too few candidates; hard constraints never are.
type Hints struct {
	AvoidWeekdays []time.Weekday `json:"avoid_weekdays,omitempty"`
	PreferPart    DayPart        `json:"prefer_part,omitempty"`
	Consecutive   bool           `json:"consecutive,omitempty"`
}

// Slot is a candidate or committed interval for one working session.
// Refs are assigned from 1 in proposal order.
type Slot struct {
	Ref   int       `json:"ref"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s Slot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// SchedulePrefs is the snapshot of the user preferences a search ran
// against, carried inside the SearchContext so finalize re-validates with
// the exact same rules.
type SchedulePrefs struct {
	Timezone         string         `json:"timezone"`
	WorkingDays      []time.Weekday `json:"working_days"`
	WorkStartMinutes int            `json:"work_start_minutes"`
	WorkEndMinutes   int            `json:"work_end_minutes"`
}

// SearchContext captures one slot search. It is inert data: callers echo
// it back verbatim between propose and finalize, and finalize never
// trusts it as a source of booking truth, only as the parameter set to
// re-run validation against fresh calendar data.
type SearchContext struct {
	Owner            string        `json:"owner"`
	Description      string        `json:"description"`
	TotalDuration    time.Duration `json:"total_duration"`
	SessionLength    time.Duration `json:"session_length"`
	WindowStart      time.Time     `json:"window_start"`
	WindowEnd        time.Time     `json:"window_end"`
	DueDate          *time.Time    `json:"due_date,omitempty"`
	Project          *string       `json:"project,omitempty"`
	Hints            Hints         `json:"hints"`
	Prefs            SchedulePrefs `json:"prefs"`
	Proposed         []Slot        `json:"proposed"`
	RescheduleTaskID string        `json:"reschedule_task_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Encode serializes the context to an opaque blob safe to hand across
// conversational turns.
func (c SearchContext) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode search context: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSearchContext parses an opaque blob back into a SearchContext.
// A blob that does not round-trip is a caller bug and maps to
// ErrMalformedSearchContext.
func DecodeSearchContext(blob string) (SearchContext, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return SearchContext{}, fmt.Errorf("%w: %v", ErrMalformedSearchContext, err)
	}
	var c SearchContext
	if err := json.Unmarshal(raw, &c); err != nil {
		return SearchContext{}, fmt.Errorf("%w: %v", ErrMalformedSearchContext, err)
	}
	if c.Owner == "" || c.SessionLength <= 0 {
		return SearchContext{}, fmt.Errorf("%w: missing owner or session length", ErrMalformedSearchContext)
	}
	return c, nil
}

// Proposal is the phase-1 outcome. An empty slot list with a diagnostic
// is a normal negotiation result, not an error.
type Proposal struct {
	Slots      []Slot
	Context    string
	Diagnostic string
}

type RejectReason string

const (
	RejectConflict      RejectReason = "conflict"
	RejectOutsideHours  RejectReason = "outside_hours"
	RejectOutsideWindow RejectReason = "outside_window"
	RejectNotWorkingDay RejectReason = "not_working_day"
	RejectPersistence   RejectReason = "persistence"
	RejectUnknownSlot   RejectReason = "unknown_slot"
)

type RejectedSlot struct {
	Slot   Slot
	Reason RejectReason
}

// FinalizeResult reports the phase-2 outcome. Partial success is
// first-class: some approved slots may book while siblings are rejected.
type FinalizeResult struct {
	TaskID     string
	Booked     []WorkingSession
	Rejected   []RejectedSlot
	Diagnostic string
}

// CalendarEvent is the gateway's view of one busy interval.
type CalendarEvent struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	TaskID string // set when the event is a tagged working session
}

func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && start.Before(e.End)
}
