package dto

type ItemView struct {
	ID                string  `json:"id"`
	Kind              string  `json:"kind"`
	Description       string  `json:"description"`
	Status            string  `json:"status"`
	Project           *string `json:"project,omitempty"`
	EstimatedDuration *string `json:"estimated_duration,omitempty"`
	DueDate           *string `json:"due_date,omitempty"`
	SessionsPlanned   int     `json:"sessions_planned,omitempty"`
	SessionsCompleted int     `json:"sessions_completed,omitempty"`
	Date              *string `json:"date,omitempty"`
	TimeOfDay         *string `json:"time,omitempty"`
	SyncedToCalendar  bool    `json:"synced_to_calendar,omitempty"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type SessionView struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

type SlotView struct {
	Ref   int    `json:"ref"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type ProposeSlotsRequest struct {
	Description   string    `json:"description" binding:"required,max=500"`
	Duration      string    `json:"duration" binding:"required"`
	SessionLength *string   `json:"session_length" binding:"omitempty"`
	WindowStart   string    `json:"window_start" binding:"required,datetime=2006-01-02"`
	WindowEnd     string    `json:"window_end" binding:"required,datetime=2006-01-02"`
	DueDate       *string   `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Project       *string   `json:"project" binding:"omitempty,max=100"`
	Hints         *HintsDTO `json:"hints"`
	RescheduleID  string    `json:"reschedule_task_id"`
}

type HintsDTO struct {
	AvoidWeekdays []int  `json:"avoid_weekdays" binding:"omitempty,dive,gte=0,lte=6"`
	PreferPart    string `json:"prefer_part" binding:"omitempty,oneof=morning afternoon evening"`
	Consecutive   bool   `json:"consecutive"`
}

type ProposeSlotsResponse struct {
	Slots         []SlotView `json:"slots"`
	SearchContext string     `json:"search_context"`
	Diagnostic    string     `json:"diagnostic,omitempty"`
}

type FinalizeSlotsRequest struct {
	SearchContext string    `json:"search_context" binding:"required"`
	ApprovedSlots []SlotRef `json:"approved_slots" binding:"required,min=1"`
}

type SlotRef struct {
	Ref   int     `json:"ref"`
	Start *string `json:"start" binding:"omitempty"`
	End   *string `json:"end" binding:"omitempty"`
}

type RejectedSlotView struct {
	Slot   SlotView `json:"slot"`
	Reason string   `json:"reason"`
}

type FinalizeSlotsResponse struct {
	TaskID     string             `json:"task_id,omitempty"`
	Booked     []SessionView      `json:"booked"`
	Rejected   []RejectedSlotView `json:"rejected,omitempty"`
	Diagnostic string             `json:"diagnostic,omitempty"`
}
