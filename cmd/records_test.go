package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/marcus/roster/internal/models"
	"github.com/spf13/pflag"
)

var testNow = time.Date(2026, 10, 18, 21, 30, 0, 0, time.FixedZone("KST", 9*3600))

func recordFlags(t models.EntityType) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	for _, field := range dataFields(t) {
		fs.String(flagName(field), "", "")
	}
	return fs
}

func TestFlagName(t *testing.T) {
	if got := flagName("vehicle_number"); got != "vehicle-number" {
		t.Errorf("got %q", got)
	}
}

func TestDataFieldsSkipID(t *testing.T) {
	for _, et := range models.AllEntityTypes {
		for _, f := range dataFields(et) {
			if f == "id" {
				t.Errorf("%s: id is settable", et)
			}
		}
	}
	// FieldNames must not be clobbered
	if names := models.FieldNames(models.EntityDriver); names[0] != "id" {
		t.Errorf("field order changed: %v", names)
	}
}

func TestFieldsFromFlags(t *testing.T) {
	fs := recordFlags(models.EntityDriver)
	if err := fs.Parse([]string{"--driver-name", " Kim ", "--hire-date", "tomorrow"}); err != nil {
		t.Fatal(err)
	}
	got, err := fieldsFromFlags(models.EntityDriver, fs, testNow)
	if err != nil {
		t.Fatalf("fieldsFromFlags: %v", err)
	}
	if got["driver_name"] != "Kim" {
		t.Errorf("driver_name: %q", got["driver_name"])
	}
	if got["hire_date"] != "2026-10-19" {
		t.Errorf("hire_date: %q", got["hire_date"])
	}
	if _, ok := got["contact"]; ok {
		t.Error("unset flag included")
	}
}

func TestFieldsFromFlagsBadDate(t *testing.T) {
	fs := recordFlags(models.EntitySchedule)
	fs.Parse([]string{"--date", "someday"})
	_, err := fieldsFromFlags(models.EntitySchedule, fs, testNow)
	if err == nil || !strings.Contains(err.Error(), "--date") {
		t.Fatalf("got %v", err)
	}
}

func TestFieldsFromFlagsClearsField(t *testing.T) {
	fs := recordFlags(models.EntitySchedule)
	fs.Parse([]string{"--notes", ""})
	got, err := fieldsFromFlags(models.EntitySchedule, fs, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := got["notes"]; !ok || v != "" {
		t.Errorf("notes: %q, %v", v, ok)
	}
}

func TestMergeFields(t *testing.T) {
	d := models.Driver{ID: "d1", DriverName: "Kim", Contact: "010-1111-2222", HireDate: "2024-03-01"}
	merged, err := mergeFields(d, map[string]string{"contact": "010-3333-4444"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := merged.(models.Driver)
	want := models.Driver{ID: "d1", DriverName: "Kim", Contact: "010-3333-4444", HireDate: "2024-03-01"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDanglingRefs(t *testing.T) {
	data := &models.AppData{
		Drivers:  []models.Driver{{ID: "d1", DriverName: "Kim"}},
		Vehicles: []models.Vehicle{{ID: "v1", VehicleNumber: "전남12바0001"}},
	}

	if got := danglingRefs(data, models.Schedule{DriverName: "Kim", VehicleNumber: "전남12바0001"}); len(got) != 0 {
		t.Errorf("known refs flagged: %v", got)
	}
	if got := danglingRefs(data, models.Schedule{}); len(got) != 0 {
		t.Errorf("empty refs flagged: %v", got)
	}
	got := danglingRefs(data, models.Schedule{DriverName: "Lee", VehicleNumber: "전남12바9999"})
	if len(got) != 2 || !strings.Contains(got[0], "Lee") || !strings.Contains(got[1], "9999") {
		t.Errorf("got %v", got)
	}
}

func TestFilterRecords(t *testing.T) {
	items := []models.Entity{
		models.Schedule{ID: "a", Date: "2026-10-20", WorkTeam: "1조"},
		models.Schedule{ID: "b", Date: "2026-10-19", WorkTeam: "2조"},
		models.Schedule{ID: "c", Date: "2026-10-19", WorkTeam: "1조"},
	}

	all := filterRecords(models.EntitySchedule, items, "")
	var ids []string
	for _, e := range all {
		ids = append(ids, e.EntityID())
	}
	if strings.Join(ids, ",") != "c,b,a" {
		t.Errorf("order: %v", ids)
	}
	if items[0].EntityID() != "a" {
		t.Error("input reordered")
	}

	day := filterRecords(models.EntitySchedule, items, "2026-10-20")
	if len(day) != 1 || day[0].EntityID() != "a" {
		t.Errorf("date filter: %v", day)
	}
}
