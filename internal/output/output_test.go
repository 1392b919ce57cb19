package output

import (
	"strings"
	"testing"
	"time"

	"github.com/marcus/roster/internal/gate"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/workpattern"
)

// TestFormatTimeAgoJustNow tests times less than a minute ago
func TestFormatTimeAgoJustNow(t *testing.T) {
	now := time.Now()
	tests := []time.Time{
		now,
		now.Add(-30 * time.Second),
		now.Add(-59 * time.Second),
	}

	for _, tm := range tests {
		result := FormatTimeAgo(tm)
		if result != "just now" {
			t.Errorf("FormatTimeAgo(%v) = %q, want 'just now'", tm, result)
		}
	}
}

// TestFormatTimeAgoMinutes tests times 1-59 minutes ago
func TestFormatTimeAgoMinutes(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Minute, "1m ago"},
		{2 * time.Minute, "2m ago"},
		{30 * time.Minute, "30m ago"},
		{59 * time.Minute, "59m ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoHours tests times 1-23 hours ago
func TestFormatTimeAgoHours(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Hour, "1h ago"},
		{2 * time.Hour, "2h ago"},
		{12 * time.Hour, "12h ago"},
		{23 * time.Hour, "23h ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoDays tests times 1-6 days ago
func TestFormatTimeAgoDays(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{24 * time.Hour, "1d ago"},
		{48 * time.Hour, "2d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}

	for _, tc := range tests {
		tm := time.Now().Add(-tc.duration)
		result := FormatTimeAgo(tm)
		if result != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.duration, result, tc.expected)
		}
	}
}

// TestFormatTimeAgoDate tests times 7+ days ago (returns date)
func TestFormatTimeAgoDate(t *testing.T) {
	tm := time.Now().Add(-8 * 24 * time.Hour)
	result := FormatTimeAgo(tm)
	expected := tm.Format("2006-01-02")
	if result != expected {
		t.Errorf("FormatTimeAgo(-8d) = %q, want %q", result, expected)
	}
}

// TestSectionHeader tests section header formatting
func TestSectionHeader(t *testing.T) {
	if got := SectionHeader("on duty"); got != "\nON DUTY:\n" {
		t.Errorf("SectionHeader = %q", got)
	}
}

// TestMask tests credential masking
func TestMask(t *testing.T) {
	tests := map[string]string{
		"AIzaSyExample1234": "*************1234",
		"abcd":              "****",
		"ab":                "**",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Mask(""); !strings.Contains(got, "unset") {
		t.Errorf("Mask(\"\") = %q", got)
	}
}

// TestTableAlignsWideCharacters checks that Hangul counts as two cells
func TestTableAlignsWideCharacters(t *testing.T) {
	out := Table([]string{"name", "team"}, [][]string{
		{"김기사", "1조"},
		{"Lee", "2조"},
	})
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), out)
	}
	col := func(line string) int {
		i := strings.Index(line, "조")
		if i < 0 {
			return -1
		}
		return len([]rune(line[:i]))
	}
	// "김기사" is three runes but six cells, "Lee" three runes and three cells
	if col(lines[1])+3 != col(lines[2]) {
		t.Fatalf("misaligned:\n%s", out)
	}
}

// TestEntityTable tests record table rendering
func TestEntityTable(t *testing.T) {
	out := EntityTable(models.EntityDriver, []models.Entity{
		models.Driver{ID: "d1", DriverName: "Kim", Contact: "010-1111-2222", HireDate: "2024-03-01"},
	})
	for _, want := range []string{"driver_name", "Kim", "010-1111-2222", "d1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if empty := EntityTable(models.EntityVehicle, nil); !strings.Contains(empty, "no vehicles") {
		t.Errorf("empty table = %q", empty)
	}
}

// TestFormatEntityShort tests one-line record formatting
func TestFormatEntityShort(t *testing.T) {
	got := FormatEntityShort(models.Schedule{ID: "s1", Date: "2026-10-19", WorkTeam: "1조", DriverName: "Kim", VehicleNumber: "12가3456"})
	for _, want := range []string{"s1", "2026-10-19", "1조", "Kim", "12가3456"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

// TestFormatShiftOvernight tests the next-day marker
func TestFormatShiftOvernight(t *testing.T) {
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	s, err := workpattern.ShiftOn(models.WorkTeam{WorkTeam: "night", StartTime: "18:00", EndTime: "04:00"}, day)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	got := FormatShift(s)
	if !strings.Contains(got, "18:00-04:00") || !strings.Contains(got, "+1d") {
		t.Errorf("FormatShift = %q", got)
	}
}

// TestFormatMode tests mode labels
func TestFormatMode(t *testing.T) {
	if got := FormatMode(gate.Mode{Kind: gate.Ready}); !strings.Contains(got, "ready") {
		t.Errorf("FormatMode(ready) = %q", got)
	}
}

// TestGuidanceFallsBackToText tests that guidance always contains the command hint
func TestGuidanceFallsBackToText(t *testing.T) {
	got := Guidance(gate.Mode{Kind: gate.NeedsSignIn})
	if !strings.Contains(got, "roster auth login") {
		t.Errorf("Guidance = %q", got)
	}
}
