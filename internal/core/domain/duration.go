package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseUserDuration accepts the duration shapes users type in chat:
// "2h", "90m", "1h30m", "1.5h" or a bare number meaning minutes.
func ParseUserDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("non-positive duration %q", s)
		}
		return time.Duration(n * float64(time.Minute)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unrecognized duration %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return d, nil
}

// FormatUserDuration renders a duration the way the assistant speaks it:
// "2h", "90m", "1h30m".
func FormatUserDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
