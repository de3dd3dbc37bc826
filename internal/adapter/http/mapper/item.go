package mapper

import (
	"time"

	"whatstasker/internal/adapter/http/dto"
	"whatstasker/internal/core/domain"
)

func ToItemViews(items []domain.Item) []dto.ItemView {
	views := make([]dto.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ToItemView(item))
	}
	return views
}

func ToItemView(item domain.Item) dto.ItemView {
	view := dto.ItemView{
		ID:                item.ID,
		Kind:              string(item.Kind),
		Description:       item.Description,
		Status:            string(item.Status),
		SessionsPlanned:   item.SessionsPlanned,
		SessionsCompleted: item.SessionsCompleted,
		SyncedToCalendar:  item.SyncedToCalendar,
		CreatedAt:         item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.Format(time.RFC3339),
	}

	if item.Project != nil {
		value := *item.Project
		view.Project = &value
	}

	if item.EstimatedDuration != nil {
		value := domain.FormatUserDuration(*item.EstimatedDuration)
		view.EstimatedDuration = &value
	}

	if item.DueDate != nil {
		value := item.DueDate.Format("2006-01-02")
		view.DueDate = &value
	}

	if item.Date != nil {
		value := item.Date.Format("2006-01-02")
		view.Date = &value
	}

	if item.TimeOfDay != nil {
		value := *item.TimeOfDay
		view.TimeOfDay = &value
	}

	if item.CompletedAt != nil {
		value := item.CompletedAt.Format("2006-01-02")
		view.CompletedAt = &value
	}

	return view
}

func ToSessionViews(sessions []domain.WorkingSession) []dto.SessionView {
	views := make([]dto.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, ToSessionView(s))
	}
	return views
}

func ToSessionView(s domain.WorkingSession) dto.SessionView {
	return dto.SessionView{
		ID:     s.ID,
		TaskID: s.TaskID,
		Start:  s.Start.Format(time.RFC3339),
		End:    s.End.Format(time.RFC3339),
		Status: string(s.Status),
	}
}

func ToSlotViews(slots []domain.Slot) []dto.SlotView {
	views := make([]dto.SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, ToSlotView(slot))
	}
	return views
}

func ToSlotView(slot domain.Slot) dto.SlotView {
	return dto.SlotView{
		Ref:   slot.Ref,
		Start: slot.Start.Format(time.RFC3339),
		End:   slot.End.Format(time.RFC3339),
	}
}

func ToRejectedSlotViews(rejected []domain.RejectedSlot) []dto.RejectedSlotView {
	views := make([]dto.RejectedSlotView, 0, len(rejected))
	for _, r := range rejected {
		views = append(views, dto.RejectedSlotView{
			Slot:   ToSlotView(r.Slot),
			Reason: string(r.Reason),
		})
	}
	return views
}
