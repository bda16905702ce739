package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowParams are the raw query-string values describing a window.
type WindowParams struct {
	Days  string
	Start string
	End   string
}

// ParseWindow builds a Window from raw parameters. Explicit start/end take
// precedence over days. A date-only end covers that whole day.
func ParseWindow(params WindowParams, defaultDays int) (Window, error) {
	var w Window

	if s := strings.TrimSpace(params.Start); s != "" {
		start, _, err := parseInstant(s)
		if err != nil {
			return Window{}, fmt.Errorf("%w: invalid 'start' date: %v", ErrInvalidWindow, err)
		}
		w.Start = &start
	}

	if s := strings.TrimSpace(params.End); s != "" {
		end, dateOnly, err := parseInstant(s)
		if err != nil {
			return Window{}, fmt.Errorf("%w: invalid 'end' date: %v", ErrInvalidWindow, err)
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		w.End = &end
	}

	if w.Start == nil {
		if s := strings.TrimSpace(params.Days); s != "" {
			days, err := strconv.Atoi(s)
			if err != nil {
				return Window{}, fmt.Errorf("%w: days must be an integer, got %q", ErrInvalidWindow, s)
			}
			if days < 1 {
				return Window{}, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidWindow, MaxDays, days)
			}
			w.Days = days
		} else {
			w.Days = defaultDays
		}
	}

	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func parseInstant(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(UserFacingDayFormat, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}
