package workpattern

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/roster/internal/models"
)

func date(s string) time.Time {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseDay(t *testing.T) {
	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"mon", time.Monday},
		{"Friday", time.Friday},
		{"토", time.Saturday},
		{"일요일", time.Sunday},
		{"0", time.Sunday},
		{"3", time.Wednesday},
	}
	for _, tt := range tests {
		got, err := ParseDay(tt.in)
		if err != nil {
			t.Fatalf("ParseDay(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseDay(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := ParseDay("someday"); !errors.Is(err, ErrBadDay) {
		t.Fatalf("got %v, want ErrBadDay", err)
	}
}

func TestParseClock(t *testing.T) {
	if got, err := ParseClock("06:30"); err != nil || got != 390 {
		t.Fatalf("got %d, %v", got, err)
	}
	for _, bad := range []string{"6", "25:00", "12:60", "24:01", "ab:cd"} {
		if _, err := ParseClock(bad); !errors.Is(err, ErrBadTime) {
			t.Errorf("ParseClock(%q): got %v, want ErrBadTime", bad, err)
		}
	}
}

func TestActiveOnWeekly(t *testing.T) {
	team := models.WorkTeam{WorkPattern: models.PatternWeekly, StartDay: "mon", EndDay: "fri"}
	// 2026-10-19 is a Monday, 2026-10-24 a Saturday
	if ok, _ := ActiveOn(team, date("2026-10-19")); !ok {
		t.Error("monday should be active")
	}
	if ok, _ := ActiveOn(team, date("2026-10-24")); ok {
		t.Error("saturday should be inactive")
	}
}

func TestActiveOnWrapsWeekend(t *testing.T) {
	team := models.WorkTeam{WorkPattern: models.PatternWeekly, StartDay: "fri", EndDay: "mon"}
	for _, d := range []string{"2026-10-23", "2026-10-24", "2026-10-25", "2026-10-26"} {
		if ok, _ := ActiveOn(team, date(d)); !ok {
			t.Errorf("%s should be active", d)
		}
	}
	if ok, _ := ActiveOn(team, date("2026-10-21")); ok {
		t.Error("wednesday should be inactive")
	}
}

func TestAlternatePatterns(t *testing.T) {
	odd := models.WorkTeam{WorkPattern: models.PatternAlternateOdd, StartDay: "mon", EndDay: "sun"}
	even := odd
	even.WorkPattern = models.PatternAlternateEven

	// ISO week 43 of 2026 starts on Monday 2026-10-19; week 44 on 2026-10-26.
	wk43, wk44 := date("2026-10-21"), date("2026-10-28")
	if ok, _ := ActiveOn(odd, wk43); !ok {
		t.Error("odd team should work week 43")
	}
	if ok, _ := ActiveOn(odd, wk44); ok {
		t.Error("odd team should rest week 44")
	}
	if ok, _ := ActiveOn(even, wk44); !ok {
		t.Error("even team should work week 44")
	}

	// every date is covered by exactly one of the two
	for d := date("2026-01-01"); d.Year() == 2026; d = d.AddDate(0, 0, 1) {
		a, _ := ActiveOn(odd, d)
		b, _ := ActiveOn(even, d)
		if a == b {
			t.Fatalf("%s: odd=%v even=%v", d.Format(DateLayout), a, b)
		}
	}
}

func TestShiftOnOvernight(t *testing.T) {
	team := models.WorkTeam{StartTime: "18:00", EndTime: "04:00"}
	s, err := ShiftOn(team, date("2026-10-19"))
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if !s.Overnight() {
		t.Fatal("expected overnight shift")
	}
	if got := s.End.Format("2006-01-02 15:04"); got != "2026-10-20 04:00" {
		t.Fatalf("end: got %s", got)
	}
}

func TestOnDutyOrderAndErrors(t *testing.T) {
	teams := []models.WorkTeam{
		{WorkTeam: "night", WorkPattern: models.PatternWeekly, StartDay: "mon", EndDay: "sun", StartTime: "18:00", EndTime: "04:00"},
		{WorkTeam: "day", WorkPattern: models.PatternWeekly, StartDay: "mon", EndDay: "sun", StartTime: "06:00", EndTime: "16:00"},
		{WorkTeam: "broken", WorkPattern: models.PatternWeekly, StartDay: "funday", EndDay: "sun"},
	}
	shifts, errs := OnDuty(teams, date("2026-10-19"))
	if len(shifts) != 2 || shifts[0].Team.WorkTeam != "day" || shifts[1].Team.WorkTeam != "night" {
		t.Fatalf("got %+v", shifts)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrBadDay) {
		t.Fatalf("errs: %v", errs)
	}
}

func TestWorkingAtIncludesPreviousNight(t *testing.T) {
	teams := []models.WorkTeam{
		{WorkTeam: "night", WorkPattern: models.PatternWeekly, StartDay: "mon", EndDay: "mon", StartTime: "18:00", EndTime: "04:00"},
	}
	// Tuesday 02:00 is still Monday's night shift
	at := time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC)
	if got := WorkingAt(teams, at); len(got) != 1 {
		t.Fatalf("got %d shifts, want 1", len(got))
	}
	at = time.Date(2026, 10, 20, 5, 0, 0, 0, time.UTC)
	if got := WorkingAt(teams, at); len(got) != 0 {
		t.Fatalf("got %d shifts after end, want 0", len(got))
	}
}

func TestSchedulesOn(t *testing.T) {
	all := []models.Schedule{
		{ID: "1", Date: "2026-10-19", WorkTeam: "B", DriverName: "Kim"},
		{ID: "2", Date: "2026-10-20", WorkTeam: "A", DriverName: "Lee"},
		{ID: "3", Date: "2026-10-19", WorkTeam: "A", DriverName: "Park"},
	}
	got := SchedulesOn(all, date("2026-10-19"))
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("got %+v", got)
	}
}
