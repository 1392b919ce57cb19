// Package workpattern decides which work teams are on duty on a given date.
package workpattern

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/roster/internal/models"
)

// DateLayout is the calendar date format used by schedules.
const DateLayout = "2006-01-02"

var ErrBadDay = errors.New("unrecognized weekday")
var ErrBadTime = errors.New("unrecognized time of day")

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "일": time.Sunday, "일요일": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "월": time.Monday, "월요일": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "화": time.Tuesday, "화요일": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "수": time.Wednesday, "수요일": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "목": time.Thursday, "목요일": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "금": time.Friday, "금요일": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "토": time.Saturday, "토요일": time.Saturday,
}

// ParseDay accepts English names and abbreviations, Korean day names, and
// the digits 0-6 with 0 as Sunday.
func ParseDay(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := dayNames[s]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadDay, s)
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is allowed.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hh < 0 || mm < 0 || mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	return hh*60 + mm, nil
}

// inRange reports whether d falls in start..end, wrapping past Saturday.
func inRange(d, start, end time.Weekday) bool {
	if start <= end {
		return d >= start && d <= end
	}
	return d >= start || d <= end
}

// WeekParityMatches reports whether the ISO week of date fits the pattern.
func WeekParityMatches(p models.WorkPattern, date time.Time) bool {
	_, week := date.ISOWeek()
	switch p {
	case models.PatternAlternateOdd:
		return week%2 == 1
	case models.PatternAlternateEven:
		return week%2 == 0
	}
	return true
}

// ActiveOn reports whether the team's shift starts on date.
func ActiveOn(team models.WorkTeam, date time.Time) (bool, error) {
	start, err := ParseDay(team.StartDay)
	if err != nil {
		return false, err
	}
	end, err := ParseDay(team.EndDay)
	if err != nil {
		return false, err
	}
	if !inRange(date.Weekday(), start, end) {
		return false, nil
	}
	return WeekParityMatches(team.WorkPattern, date), nil
}

// Shift is one concrete occurrence of a team's shift.
type Shift struct {
	Team  models.WorkTeam
	Start time.Time
	End   time.Time
}

// Overnight reports whether the shift ends on the following day.
func (s Shift) Overnight() bool {
	return s.End.YearDay() != s.Start.YearDay() || s.End.Year() != s.Start.Year()
}

// ShiftOn returns the team's shift starting on date. End times at or before
// the start time roll over to the next day.
func ShiftOn(team models.WorkTeam, date time.Time) (Shift, error) {
	from, err := ParseClock(team.StartTime)
	if err != nil {
		return Shift{}, err
	}
	to, err := ParseClock(team.EndTime)
	if err != nil {
		return Shift{}, err
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	s := Shift{
		Team:  team,
		Start: day.Add(time.Duration(from) * time.Minute),
		End:   day.Add(time.Duration(to) * time.Minute),
	}
	if to <= from {
		s.End = s.End.AddDate(0, 0, 1)
	}
	return s, nil
}

// OnDuty returns the shifts starting on date, ordered by start time. Teams
// with unparseable days or times are skipped and returned as errors.
func OnDuty(teams []models.WorkTeam, date time.Time) ([]Shift, []error) {
	var shifts []Shift
	var errs []error
	for _, team := range teams {
		ok, err := ActiveOn(team, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", team.WorkTeam, err))
			continue
		}
		if !ok {
			continue
		}
		s, err := ShiftOn(team, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", team.WorkTeam, err))
			continue
		}
		shifts = append(shifts, s)
	}
	sort.SliceStable(shifts, func(i, j int) bool { return shifts[i].Start.Before(shifts[j].Start) })
	return shifts, errs
}

// WorkingAt returns the shifts in progress at t, including overnight shifts
// that started the day before.
func WorkingAt(teams []models.WorkTeam, t time.Time) []Shift {
	var out []Shift
	for _, date := range []time.Time{t.AddDate(0, 0, -1), t} {
		shifts, _ := OnDuty(teams, date)
		for _, s := range shifts {
			if !t.Before(s.Start) && t.Before(s.End) {
				out = append(out, s)
			}
		}
	}
	return out
}

// SchedulesOn returns the schedules dated on date, ordered by work team then
// driver name.
func SchedulesOn(schedules []models.Schedule, date time.Time) []models.Schedule {
	key := date.Format(DateLayout)
	var out []models.Schedule
	for _, s := range schedules {
		if strings.TrimSpace(s.Date) == key {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WorkTeam != out[j].WorkTeam {
			return out[i].WorkTeam < out[j].WorkTeam
		}
		return out[i].DriverName < out[j].DriverName
	})
	return out
}
