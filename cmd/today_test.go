package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/marcus/roster/internal/models"
)

func dashboardData() *models.AppData {
	return &models.AppData{
		WorkTeams: []models.WorkTeam{
			{ID: "t1", WorkTeam: "1조", ShiftName: "day", WorkPattern: models.PatternWeekly,
				StartDay: "mon", EndDay: "fri", StartTime: "06:00", EndTime: "16:00"},
			{ID: "t2", WorkTeam: "2조", ShiftName: "night", WorkPattern: models.PatternWeekly,
				StartDay: "mon", EndDay: "sun", StartTime: "20:00", EndTime: "04:00"},
			{ID: "t3", WorkTeam: "3조", WorkPattern: models.PatternWeekly,
				StartDay: "someday", EndDay: "sun", StartTime: "08:00", EndTime: "12:00"},
		},
		Schedules: []models.Schedule{
			{ID: "s1", Date: "2026-10-19", WorkTeam: "1조", DriverName: "Kim"},
			{ID: "s2", Date: "2026-10-20", WorkTeam: "1조", DriverName: "Lee"},
		},
	}
}

func TestRenderDashboardToday(t *testing.T) {
	loc := testNow.Location()
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, loc)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)

	var buf bytes.Buffer
	renderDashboard(&buf, dashboardData(), date, now)
	out := buf.String()

	for _, want := range []string{"2026-10-19 (월)", "ON DUTY:", "WORKING NOW:", "SCHEDULES:", "Kim", "team 3조"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Lee") {
		t.Errorf("schedule from another day shown:\n%s", out)
	}
	// 2조 started at 20:00 yesterday and is off by 10:00
	working := out[strings.Index(out, "WORKING NOW:"):strings.Index(out, "SCHEDULES:")]
	if !strings.Contains(working, "1조") || strings.Contains(working, "2조") {
		t.Errorf("working now:\n%s", working)
	}
}

func TestRenderDashboardOtherDay(t *testing.T) {
	loc := testNow.Location()
	date := time.Date(2026, 10, 24, 0, 0, 0, 0, loc)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)

	var buf bytes.Buffer
	renderDashboard(&buf, dashboardData(), date, now)
	out := buf.String()
	if strings.Contains(out, "WORKING NOW:") {
		t.Errorf("working now shown for another day:\n%s", out)
	}
	if !strings.Contains(out, "2조") || strings.Contains(out, "1조") {
		t.Errorf("saturday duty:\n%s", out)
	}
}

func TestSameDay(t *testing.T) {
	kst := testNow.Location()
	a := time.Date(2026, 10, 19, 0, 0, 0, 0, kst)
	// 2026-10-18 16:00 UTC is 2026-10-19 01:00 in KST
	b := time.Date(2026, 10, 18, 16, 0, 0, 0, time.UTC)
	if !sameDay(a, b) {
		t.Error("expected same day in a's location")
	}
	if sameDay(a, a.AddDate(0, 0, 1)) {
		t.Error("different days reported equal")
	}
}
