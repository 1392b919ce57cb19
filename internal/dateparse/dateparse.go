// Package dateparse parses the --date values accepted by the CLI into
// calendar dates.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/roster/internal/workpattern"
)

// Parse parses a date input string relative to now and returns midnight of
// that date in now's location.
//
// Supported formats:
//   - Exact dates: "2026-03-01"
//   - Relative days: "+7d", "-1d"
//   - Relative weeks: "+2w"
//   - Day names: "monday", "mon", "월", "월요일" (next occurrence, today excluded)
//   - Keywords: "today", "tomorrow", "yesterday", "오늘", "내일", "어제"
func Parse(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if t, err := time.ParseInLocation(workpattern.DateLayout, input, now.Location()); err == nil {
		return t, nil
	}

	switch input {
	case "today", "오늘":
		return today, nil
	case "tomorrow", "내일":
		return today.AddDate(0, 0, 1), nil
	case "yesterday", "어제":
		return today.AddDate(0, 0, -1), nil
	}

	// Relative offsets: +Nd, -Nd, +Nw, -Nw
	if (input[0] == '+' || input[0] == '-') && len(input) >= 3 {
		suffix := input[len(input)-1]
		n, err := strconv.Atoi(input[1 : len(input)-1])
		if err == nil && n >= 0 {
			if input[0] == '-' {
				n = -n
			}
			switch suffix {
			case 'd':
				return today.AddDate(0, 0, n), nil
			case 'w':
				return today.AddDate(0, 0, n*7), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use d or w)", string(suffix), input)
			}
		}
	}

	// Day names: next occurrence of that weekday. Bare digits are not day names here.
	if _, err := strconv.Atoi(input); err != nil {
		if target, err := workpattern.ParseDay(input); err == nil {
			ahead := (int(target) - int(today.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return today.AddDate(0, 0, ahead), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

// ParseDate is Parse formatted as YYYY-MM-DD.
func ParseDate(input string, now time.Time) (string, error) {
	t, err := Parse(input, now)
	if err != nil {
		return "", err
	}
	return t.Format(workpattern.DateLayout), nil
}
