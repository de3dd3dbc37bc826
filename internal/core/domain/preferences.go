package domain

import "time"

type CalendarStatus string

const (
	CalendarNotIntegrated CalendarStatus = "not_integrated"
	CalendarPendingAuth   CalendarStatus = "pending_auth"
	CalendarConnected     CalendarStatus = "connected"
	CalendarError         CalendarStatus = "error"
)

// UserPreferences drives slot search and routine triggers. Times of day
// are minutes from midnight in the user's timezone.
type UserPreferences struct {
	Owner            string
	Timezone         string
	WorkingDays      []time.Weekday
	WorkStartMinutes int
	WorkEndMinutes   int
	SessionLength    time.Duration
	Language         string
	CalendarStatus   CalendarStatus

	MorningSummaryTime string // "HH:MM", empty disables
	EveningSummaryTime string
	LastMorningTrigger string // "YYYY-MM-DD" of the last fired summary
	LastEveningTrigger string
}

// DefaultPreferences mirrors the onboarding defaults: Mon-Fri, 09:00-18:00,
// one-hour sessions, UTC.
func DefaultPreferences(owner string) UserPreferences {
	return UserPreferences{
		Owner:            owner,
		Timezone:         "UTC",
		WorkingDays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		WorkStartMinutes: 9 * 60,
		WorkEndMinutes:   18 * 60,
		SessionLength:    time.Hour,
		Language:         "en",
		CalendarStatus:   CalendarNotIntegrated,
	}
}

// IsWorkingDay reports whether the weekday is configured as a working day.
func (p UserPreferences) IsWorkingDay(d time.Weekday) bool {
	for _, wd := range p.WorkingDays {
		if wd == d {
			return true
		}
	}
	return false
}

// Location resolves the user's timezone, falling back to UTC when the
// stored name is unknown.
func (p UserPreferences) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
