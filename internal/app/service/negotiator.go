package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
)

// DefaultDueDateBufferDays keeps the last booked session at least this
// many calendar days before a task's due date when the window permits.
const DefaultDueDateBufferDays = 2

// Negotiator implements the two-phase slot negotiation protocol:
// ProposeSlots searches the candidate grid against live calendar data and
// returns an opaque resumable context; FinalizeSlots re-validates the
// approved subset against fresh data and books it. Nothing is persisted
// until finalize.
type Negotiator struct {
	repo    ports.ItemRepository
	gateway ports.CalendarGateway

	// DueDateBufferDays is policy, not law; see ProposeSlots step 5.
	DueDateBufferDays int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewNegotiator(repo ports.ItemRepository, gateway ports.CalendarGateway) *Negotiator {
	return &Negotiator{
		repo:              repo,
		gateway:           gateway,
		DueDateBufferDays: DefaultDueDateBufferDays,
		locks:             make(map[string]*sync.Mutex),
	}
}

var _ ports.Negotiator = (*Negotiator)(nil)

// ownerLock returns the finalize mutex for one owner. At most one
// finalize may run per owner at a time; a second caller is rejected with
// ErrBookingInProgress instead of racing re-validation on stale data.
func (n *Negotiator) ownerLock(owner string) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()
	lock, ok := n.locks[owner]
	if !ok {
		lock = &sync.Mutex{}
		n.locks[owner] = lock
	}
	return lock
}

// ProposeSlots runs phase 1. An empty proposal with a diagnostic is a
// normal outcome; only calendar unavailability or store failures are errors.
func (n *Negotiator) ProposeSlots(ctx context.Context, input ports.ProposeInput) (domain.Proposal, error) {
	if input.Owner == "" || input.TotalDuration <= 0 || input.SessionLength <= 0 {
		return domain.Proposal{}, fmt.Errorf("propose: owner, total duration and session length are required")
	}
	if input.WindowEnd.Before(input.WindowStart) {
		return domain.Proposal{}, fmt.Errorf("propose: search window end before start")
	}

	prefs, err := n.repo.GetPreferences(ctx, input.Owner)
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("propose: load preferences: %w", err)
	}
	if status := n.gateway.Status(ctx, input.Owner); status != domain.CalendarConnected {
		return domain.Proposal{}, fmt.Errorf("propose: status %s: %w", status, domain.ErrCalendarUnavailable)
	}

	snapshot := domain.SchedulePrefs{
		Timezone:         prefs.Timezone,
		WorkingDays:      prefs.WorkingDays,
		WorkStartMinutes: prefs.WorkStartMinutes,
		WorkEndMinutes:   prefs.WorkEndMinutes,
	}

	busy, err := n.loadBusy(ctx, input.Owner, snapshot, input.WindowStart, input.WindowEnd)
	if err != nil {
		return domain.Proposal{}, err
	}

	sessionCount := int((input.TotalDuration + input.SessionLength - 1) / input.SessionLength)
	if sessionCount < 1 {
		sessionCount = 1
	}

	candidates := enumerateFreeSlots(snapshot, input.WindowStart, input.WindowEnd, input.SessionLength, busy)
	filtered := relaxHints(candidates, input.Hints, sessionCount)
	filtered = applyDueDateBuffer(filtered, input.DueDate, sessionCount, n.DueDateBufferDays)
	selected := selectSlots(filtered, sessionCount, input.Hints.Consecutive)

	diagnostic := ""
	if len(selected) < sessionCount {
		if len(selected) == 0 {
			diagnostic = fmt.Sprintf("no free %s slots between %s and %s within working hours",
				domain.FormatUserDuration(input.SessionLength),
				input.WindowStart.Format("2006-01-02"), input.WindowEnd.Format("2006-01-02"))
		} else {
			diagnostic = fmt.Sprintf("only %d of the %d required slots are free in the window", len(selected), sessionCount)
		}
	}

	searchCtx := domain.SearchContext{
		Owner:            input.Owner,
		Description:      input.Description,
		TotalDuration:    input.TotalDuration,
		SessionLength:    input.SessionLength,
		WindowStart:      input.WindowStart,
		WindowEnd:        input.WindowEnd,
		DueDate:          input.DueDate,
		Project:          input.Project,
		Hints:            input.Hints,
		Prefs:            snapshot,
		Proposed:         selected,
		RescheduleTaskID: input.RescheduleTaskID,
		CreatedAt:        time.Now().UTC(),
	}
	blob, err := searchCtx.Encode()
	if err != nil {
		return domain.Proposal{}, err
	}

	zap.L().Info("slot proposal",
		zap.String("owner", input.Owner),
		zap.Int("requested", sessionCount),
		zap.Int("proposed", len(selected)))

	return domain.Proposal{Slots: selected, Context: blob, Diagnostic: diagnostic}, nil
}

// FinalizeSlots runs phase 2: decode the echoed context, take the owner
// lock, re-validate every approved slot against fresh calendar data and
// book the survivors. Per-slot rejection never aborts sibling slots.
func (n *Negotiator) FinalizeSlots(ctx context.Context, contextBlob string, approved []domain.Slot) (domain.FinalizeResult, error) {
	sc, err := domain.DecodeSearchContext(contextBlob)
	if err != nil {
		return domain.FinalizeResult{}, err
	}
	if len(approved) == 0 {
		return domain.FinalizeResult{}, fmt.Errorf("finalize: no approved slots")
	}

	lock := n.ownerLock(sc.Owner)
	if !lock.TryLock() {
		return domain.FinalizeResult{}, domain.ErrBookingInProgress
	}
	defer lock.Unlock()

	if status := n.gateway.Status(ctx, sc.Owner); status != domain.CalendarConnected {
		return domain.FinalizeResult{}, fmt.Errorf("finalize: status %s: %w", status, domain.ErrCalendarUnavailable)
	}

	// Fresh data guards against time elapsed since propose and against
	// bookings made in between.
	busy, err := n.loadBusy(ctx, sc.Owner, sc.Prefs, sc.WindowStart, sc.WindowEnd)
	if err != nil {
		return domain.FinalizeResult{}, err
	}

	result := domain.FinalizeResult{}
	var toBook []domain.Slot
	for _, a := range approved {
		slot, ok := resolveApprovedSlot(sc, a)
		if !ok {
			result.Rejected = append(result.Rejected, domain.RejectedSlot{Slot: a, Reason: domain.RejectUnknownSlot})
			continue
		}
		if reason := validateSlot(sc, slot, busy, toBook); reason != "" {
			result.Rejected = append(result.Rejected, domain.RejectedSlot{Slot: slot, Reason: reason})
			continue
		}
		toBook = append(toBook, slot)
	}

	task, err := n.resolveTask(ctx, sc)
	if err != nil {
		return domain.FinalizeResult{}, err
	}
	result.TaskID = task.ID

	for i, slot := range toBook {
		session, reason := n.bookSlot(ctx, sc, task, slot, i+1, len(toBook))
		if reason != "" {
			result.Rejected = append(result.Rejected, domain.RejectedSlot{Slot: slot, Reason: reason})
			continue
		}
		result.Booked = append(result.Booked, session)
	}

	status := domain.ItemStatusPending
	if len(result.Booked) > 0 {
		status = domain.ItemStatusInProgress
	}
	if task.Status != status {
		if _, err := n.repo.UpdateItemStatus(ctx, sc.Owner, task.ID, status); err != nil {
			zap.L().Error("failed to update task status after booking",
				zap.String("task_id", task.ID), zap.Error(err))
		}
	}

	if len(result.Rejected) > 0 {
		result.Diagnostic = fmt.Sprintf("booked %d slot(s), rejected %d at re-validation", len(result.Booked), len(result.Rejected))
	}

	zap.L().Info("slot finalize",
		zap.String("owner", sc.Owner),
		zap.String("task_id", task.ID),
		zap.Int("booked", len(result.Booked)),
		zap.Int("rejected", len(result.Rejected)))

	return result, nil
}

// bookSlot commits one slot: calendar event first, local session record
// second, rolling the event back if the record cannot be written. A
// rollback failure leaves an orphan for the sync service to reconcile.
func (n *Negotiator) bookSlot(ctx context.Context, sc domain.SearchContext, task domain.Item, slot domain.Slot, seq, total int) (domain.WorkingSession, domain.RejectReason) {
	event := domain.CalendarEvent{
		Title:  fmt.Sprintf("Work: %s [%d/%d]", sc.Description, seq, total),
		Start:  slot.Start,
		End:    slot.End,
		TaskID: task.ID,
	}
	eventID, err := n.gateway.CreateEvent(ctx, sc.Owner, event)
	if err != nil {
		zap.L().Error("calendar event creation failed",
			zap.String("owner", sc.Owner), zap.String("task_id", task.ID), zap.Error(err))
		return domain.WorkingSession{}, domain.RejectPersistence
	}

	session := domain.WorkingSession{
		ID:      uuid.NewString(),
		TaskID:  task.ID,
		Owner:   sc.Owner,
		Start:   slot.Start,
		End:     slot.End,
		EventID: eventID,
		Status:  domain.SessionStatusBooked,
	}
	if err := n.repo.AttachSessions(ctx, task.ID, []domain.WorkingSession{session}); err != nil {
		zap.L().Error("session persistence failed, rolling back calendar event",
			zap.String("event_id", eventID), zap.Error(err))
		if delErr := n.gateway.DeleteEvent(ctx, sc.Owner, eventID); delErr != nil {
			zap.L().Error("rollback delete failed, orphan event left for reconciliation",
				zap.String("event_id", eventID),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrPersistenceInconsistency, delErr)))
		}
		return domain.WorkingSession{}, domain.RejectPersistence
	}
	return session, ""
}

func (n *Negotiator) resolveTask(ctx context.Context, sc domain.SearchContext) (domain.Item, error) {
	if sc.RescheduleTaskID != "" {
		task, err := n.repo.GetItem(ctx, sc.Owner, sc.RescheduleTaskID)
		if err != nil {
			return domain.Item{}, fmt.Errorf("finalize: reschedule target: %w", err)
		}
		return task, nil
	}
	duration := sc.TotalDuration
	return n.repo.CreateItem(ctx, domain.CreateItemInput{
		Owner:             sc.Owner,
		Kind:              domain.ItemKindTask,
		Description:       sc.Description,
		Project:           sc.Project,
		EstimatedDuration: &duration,
		DueDate:           sc.DueDate,
	})
}

// loadBusy merges gateway events with locally booked sessions so a
// freshly committed booking conflicts even before the remote list
// catches up (read-your-writes on the store side).
func (n *Negotiator) loadBusy(ctx context.Context, owner string, prefs domain.SchedulePrefs, windowStart, windowEnd time.Time) ([]domain.CalendarEvent, error) {
	loc := locationOf(prefs)
	start := dayStart(windowStart, loc)
	end := dayStart(windowEnd, loc).Add(24 * time.Hour)

	events, err := n.gateway.ListEvents(ctx, owner, start, end)
	if err != nil {
		return nil, err
	}
	sessions, err := n.repo.FindSessionsInWindow(ctx, owner, start, end)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for _, s := range sessions {
		if s.Status != domain.SessionStatusBooked {
			continue
		}
		events = append(events, domain.CalendarEvent{
			ID:     s.EventID,
			Start:  s.Start,
			End:    s.End,
			TaskID: s.TaskID,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// resolveApprovedSlot maps a caller-approved slot back onto the context's
// proposal. Reference numbers win; a full slot value is accepted when no
// reference matches so callers may echo explicit times.
func resolveApprovedSlot(sc domain.SearchContext, approved domain.Slot) (domain.Slot, bool) {
	if approved.Ref > 0 {
		for _, p := range sc.Proposed {
			if p.Ref == approved.Ref {
				return p, true
			}
		}
	}
	if !approved.Start.IsZero() && approved.Start.Before(approved.End) {
		return approved, true
	}
	return domain.Slot{}, false
}

// validateSlot applies the hard constraints to one approved slot against
// fresh busy data plus the slots already accepted in this call.
func validateSlot(sc domain.SearchContext, slot domain.Slot, busy []domain.CalendarEvent, accepted []domain.Slot) domain.RejectReason {
	loc := locationOf(sc.Prefs)
	start := slot.Start.In(loc)
	end := slot.End.In(loc)

	windowStart := dayStart(sc.WindowStart, loc)
	windowEnd := dayStart(sc.WindowEnd, loc).Add(24 * time.Hour)
	if start.Before(windowStart) || end.After(windowEnd) {
		return domain.RejectOutsideWindow
	}
	if !workingDay(sc.Prefs, start.Weekday()) {
		return domain.RejectNotWorkingDay
	}
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()
	sameDay := start.Year() == end.Year() && start.YearDay() == end.YearDay()
	if !sameDay || startMinutes < sc.Prefs.WorkStartMinutes || endMinutes > sc.Prefs.WorkEndMinutes {
		return domain.RejectOutsideHours
	}
	for _, e := range busy {
		if e.Overlaps(slot.Start, slot.End) {
			return domain.RejectConflict
		}
	}
	for _, a := range accepted {
		if a.Overlaps(slot.Start, slot.End) {
			return domain.RejectConflict
		}
	}
	return ""
}

// enumerateFreeSlots walks the candidate grid: every working day in the
// window, stepped by sessionLength inside working hours, skipping any
// interval that overlaps existing busy time.
func enumerateFreeSlots(prefs domain.SchedulePrefs, windowStart, windowEnd time.Time, sessionLength time.Duration, busy []domain.CalendarEvent) []domain.Slot {
	loc := locationOf(prefs)
	var out []domain.Slot

	for day := dayStart(windowStart, loc); !day.After(dayStart(windowEnd, loc)); day = day.AddDate(0, 0, 1) {
		if !workingDay(prefs, day.Weekday()) {
			continue
		}
		for m := prefs.WorkStartMinutes; m+int(sessionLength.Minutes()) <= prefs.WorkEndMinutes; m += int(sessionLength.Minutes()) {
			start := day.Add(time.Duration(m) * time.Minute)
			end := start.Add(sessionLength)
			if overlapsAny(busy, start, end) {
				continue
			}
			out = append(out, domain.Slot{Start: start, End: end})
		}
	}
	return out
}

// relaxHints applies soft constraints, dropping them one at a time when
// they leave fewer candidates than needed. The time-of-day preference is
// relaxed before weekday exclusions; hard constraints are never touched.
func relaxHints(candidates []domain.Slot, hints domain.Hints, need int) []domain.Slot {
	stages := []domain.Hints{
		hints,
		{AvoidWeekdays: hints.AvoidWeekdays},
		{},
	}
	for _, stage := range stages {
		filtered := filterByHints(candidates, stage)
		if len(filtered) >= need {
			return filtered
		}
	}
	return candidates
}

func filterByHints(candidates []domain.Slot, hints domain.Hints) []domain.Slot {
	var out []domain.Slot
	for _, c := range candidates {
		if weekdayAvoided(hints.AvoidWeekdays, c.Start.Weekday()) {
			continue
		}
		if hints.PreferPart != domain.DayPartAny && dayPartOf(c.Start) != hints.PreferPart {
			continue
		}
		out = append(out, c)
	}
	return out
}

// applyDueDateBuffer caps candidates so the last session lands at least
// bufferDays before the due date, but only when the cap still leaves
// enough slots; a tight window keeps the full candidate set.
func applyDueDateBuffer(candidates []domain.Slot, due *time.Time, need, bufferDays int) []domain.Slot {
	if due == nil || len(candidates) == 0 {
		return candidates
	}
	cutoff := due.AddDate(0, 0, -bufferDays)
	var capped []domain.Slot
	for _, c := range candidates {
		if !dayStart(c.Start, c.Start.Location()).After(dayStart(cutoff, c.Start.Location())) {
			capped = append(capped, c)
		}
	}
	if len(capped) >= need {
		return capped
	}
	return candidates
}

// selectSlots picks up to need slots, earliest first. Multi-session
// requests spread across distinct days unless consecutive placement was
// asked for; a second pass fills the remainder when there are not enough
// distinct days.
func selectSlots(candidates []domain.Slot, need int, consecutive bool) []domain.Slot {
	if len(candidates) == 0 || need <= 0 {
		return nil
	}
	var picked []domain.Slot
	if consecutive {
		picked = append(picked, candidates[:min(need, len(candidates))]...)
	} else {
		usedDays := make(map[string]bool)
		taken := make(map[int]bool)
		for i, c := range candidates {
			if len(picked) == need {
				break
			}
			day := c.Start.Format("2006-01-02")
			if usedDays[day] {
				continue
			}
			usedDays[day] = true
			taken[i] = true
			picked = append(picked, c)
		}
		for i, c := range candidates {
			if len(picked) == need {
				break
			}
			if taken[i] {
				continue
			}
			picked = append(picked, c)
		}
		sort.Slice(picked, func(i, j int) bool { return picked[i].Start.Before(picked[j].Start) })
	}
	for i := range picked {
		picked[i].Ref = i + 1
	}
	return picked
}

func overlapsAny(busy []domain.CalendarEvent, start, end time.Time) bool {
	for _, e := range busy {
		if e.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func weekdayAvoided(avoid []time.Weekday, d time.Weekday) bool {
	for _, a := range avoid {
		if a == d {
			return true
		}
	}
	return false
}

func workingDay(prefs domain.SchedulePrefs, d time.Weekday) bool {
	for _, wd := range prefs.WorkingDays {
		if wd == d {
			return true
		}
	}
	return false
}

func dayPartOf(t time.Time) domain.DayPart {
	switch h := t.Hour(); {
	case h < 12:
		return domain.DayPartMorning
	case h < 17:
		return domain.DayPartAfternoon
	default:
		return domain.DayPartEvening
	}
}

func locationOf(prefs domain.SchedulePrefs) *time.Location {
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
