package service

import (
	"fmt"
	"time"

	"whatstasker/internal/core/domain"
)

// Helpers for decoding the loosely-typed tool arguments handed over by
// the reasoning service.

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argStringPtr(args map[string]any, key string) *string {
	if v, ok := args[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argDuration(args map[string]any, key string) (*time.Duration, error) {
	s := argString(args, key)
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseUserDuration(s)
	if err != nil {
		return nil, fmt.Errorf("argument %q: %w", key, err)
	}
	return &d, nil
}

func argDate(args map[string]any, key string) (*time.Time, error) {
	s := argString(args, key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("argument %q: expected YYYY-MM-DD: %w", key, err)
	}
	return &t, nil
}

func argHints(args map[string]any) domain.Hints {
	raw, ok := args["hints"].(map[string]any)
	if !ok {
		return domain.Hints{}
	}
	hints := domain.Hints{
		PreferPart:  domain.DayPart(argString(raw, "prefer_part")),
		Consecutive: raw["consecutive"] == true,
	}
	if days, ok := raw["avoid_weekdays"].([]any); ok {
		for _, d := range days {
			if n, ok := d.(float64); ok && n >= 0 && n <= 6 {
				hints.AvoidWeekdays = append(hints.AvoidWeekdays, time.Weekday(int(n)))
			}
		}
	}
	return hints
}

func argSlots(args map[string]any, key string) ([]domain.Slot, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q: expected a list of slots", key)
	}
	var out []domain.Slot
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("argument %q: slot entries must be objects", key)
		}
		var slot domain.Slot
		if n, ok := m["ref"].(float64); ok {
			slot.Ref = int(n)
		}
		if s := argString(m, "start"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("argument %q: slot start: %w", key, err)
			}
			slot.Start = t
		}
		if s := argString(m, "end"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("argument %q: slot end: %w", key, err)
			}
			slot.End = t
		}
		out = append(out, slot)
	}
	return out, nil
}
