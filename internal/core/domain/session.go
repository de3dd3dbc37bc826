package domain

import "time"

type SessionStatus string

const (
	SessionStatusProposed  SessionStatus = "proposed"
	SessionStatusBooked    SessionStatus = "booked"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// WorkingSession is a calendar block allocated to one task. Sessions are
// created "proposed" by the search phase and become "booked" only through
// finalize; a booked session can only move to "cancelled". Proposals that
// are never approved are discarded, not persisted.
type WorkingSession struct {
	ID      string
	TaskID  string
	Owner   string
	Start   time.Time
	End     time.Time
	EventID string
	Status  SessionStatus
}

// CanTransition reports whether the status change is allowed by the
// session lifecycle.
func (s WorkingSession) CanTransition(to SessionStatus) bool {
	switch s.Status {
	case SessionStatusProposed:
		return to == SessionStatusBooked
	case SessionStatusBooked:
		return to == SessionStatusCancelled
	default:
		return false
	}
}

// Overlaps uses inclusive-exclusive interval semantics: touching
// endpoints do not conflict.
func (s WorkingSession) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}
