package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whatstasker/internal/core/domain"
)

func TestParseUserDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"2h":     2 * time.Hour,
		"90m":    90 * time.Minute,
		"1h30m":  90 * time.Minute,
		"1.5h":   90 * time.Minute,
		"45":     45 * time.Minute,
		" 2h ":   2 * time.Hour,
		"1h 30m": 90 * time.Minute,
	}
	for input, want := range cases {
		got, err := domain.ParseUserDuration(input)
		require.NoError(t, err, "input %q", input)
		require.Equal(t, want, got, "input %q", input)
	}

	for _, bad := range []string{"", "abc", "-2h", "0"} {
		_, err := domain.ParseUserDuration(bad)
		require.Error(t, err, "input %q", bad)
	}
}

func TestFormatUserDuration(t *testing.T) {
	require.Equal(t, "2h", domain.FormatUserDuration(2*time.Hour))
	require.Equal(t, "1h30m", domain.FormatUserDuration(90*time.Minute))
	require.Equal(t, "45m", domain.FormatUserDuration(45*time.Minute))
}

func TestSearchContext_RoundTrip(t *testing.T) {
	due := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	sc := domain.SearchContext{
		Owner:         "31612345678@c.us",
		Description:   "write the report",
		TotalDuration: 4 * time.Hour,
		SessionLength: 2 * time.Hour,
		WindowStart:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		WindowEnd:     time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC),
		DueDate:       &due,
		Hints:         domain.Hints{PreferPart: domain.DayPartMorning},
		Prefs: domain.SchedulePrefs{
			Timezone:         "UTC",
			WorkingDays:      []time.Weekday{time.Monday, time.Tuesday},
			WorkStartMinutes: 540,
			WorkEndMinutes:   1080,
		},
		Proposed: []domain.Slot{{
			Ref:   1,
			Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
		}},
		CreatedAt: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC),
	}

	blob, err := sc.Encode()
	require.NoError(t, err)

	decoded, err := domain.DecodeSearchContext(blob)
	require.NoError(t, err)
	require.Equal(t, sc.Owner, decoded.Owner)
	require.Equal(t, sc.SessionLength, decoded.SessionLength)
	require.Equal(t, sc.Proposed, decoded.Proposed)
	require.Equal(t, sc.Prefs, decoded.Prefs)
	require.True(t, decoded.DueDate.Equal(due))
}

func TestDecodeSearchContext_Malformed(t *testing.T) {
	_, err := domain.DecodeSearchContext("definitely not base64 ###")
	require.ErrorIs(t, err, domain.ErrMalformedSearchContext)

	// Valid base64, invalid payload.
	_, err = domain.DecodeSearchContext("bm90IGpzb24=")
	require.ErrorIs(t, err, domain.ErrMalformedSearchContext)

	// Valid JSON missing the required fields.
	empty := domain.SearchContext{}
	blob, encErr := empty.Encode()
	require.NoError(t, encErr)
	_, err = domain.DecodeSearchContext(blob)
	require.ErrorIs(t, err, domain.ErrMalformedSearchContext)
}

func TestWorkingSession_Lifecycle(t *testing.T) {
	s := domain.WorkingSession{Status: domain.SessionStatusProposed}
	require.True(t, s.CanTransition(domain.SessionStatusBooked))
	require.False(t, s.CanTransition(domain.SessionStatusCancelled))

	s.Status = domain.SessionStatusBooked
	require.True(t, s.CanTransition(domain.SessionStatusCancelled))
	require.False(t, s.CanTransition(domain.SessionStatusProposed))

	s.Status = domain.SessionStatusCancelled
	require.False(t, s.CanTransition(domain.SessionStatusBooked))
}

func TestOverlaps_InclusiveExclusive(t *testing.T) {
	nine := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	ten := nine.Add(time.Hour)
	eleven := ten.Add(time.Hour)

	s := domain.WorkingSession{Start: nine, End: ten}
	require.True(t, s.Overlaps(nine.Add(30*time.Minute), eleven))
	require.False(t, s.Overlaps(ten, eleven), "touching endpoints do not conflict")
	require.False(t, s.Overlaps(eleven, eleven.Add(time.Hour)))
}
