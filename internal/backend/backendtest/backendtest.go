// Package backendtest is a conformance suite run against every backend.Backend.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/models"
)

// Factory returns a fresh, empty backend for one test.
type Factory func(t *testing.T) backend.Backend

// Sample returns a distinct, id-less entity of type et.
func Sample(et models.EntityType, n int) models.Entity {
	switch et {
	case models.EntitySchedule:
		return models.Schedule{
			Date:          fmt.Sprintf("2026-10-%02d", n%28+1),
			WorkTeam:      "1조",
			WorkTime:      "06:00-16:00",
			DriverName:    fmt.Sprintf("driver-%d", n),
			VehicleNumber: fmt.Sprintf("전남12바%04d", n),
			Notes:         "spare",
		}
	case models.EntityDriver:
		return models.Driver{DriverName: fmt.Sprintf("driver-%d", n), Contact: "010-0000-0000", HireDate: "2024-03-01"}
	case models.EntityVehicle:
		return models.Vehicle{VehicleNumber: fmt.Sprintf("전남12바%04d", n), VehicleModel: "Sonata", RegistrationDate: "2023-01-15"}
	case models.EntityWorkTeam:
		return models.WorkTeam{
			WorkTeam: fmt.Sprintf("%d조", n), ShiftName: "day", WorkPattern: models.PatternWeekly,
			StartDay: "mon", EndDay: "fri", StartTime: "06:00", EndTime: "16:00",
		}
	}
	return nil
}

// Run executes the suite.
func Run(t *testing.T, newBackend Factory) {
	t.Run("AddThenLoad", func(t *testing.T) { testAddThenLoad(t, newBackend) })
	t.Run("UpdateExisting", func(t *testing.T) { testUpdateExisting(t, newBackend) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newBackend) })
	t.Run("RemoveIdempotent", func(t *testing.T) { testRemoveIdempotent(t, newBackend) })
	t.Run("BulkRemoveMixed", func(t *testing.T) { testBulkRemoveMixed(t, newBackend) })
	t.Run("TypeMismatch", func(t *testing.T) { testTypeMismatch(t, newBackend) })
	t.Run("AddProperty", func(t *testing.T) { testAddProperty(t, newBackend) })
}

func mustLoad(t *testing.T, b backend.Backend) *models.AppData {
	t.Helper()
	data, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return data
}

func testAddThenLoad(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	for _, et := range models.AllEntityTypes {
		t.Run(string(et), func(t *testing.T) {
			b := newBackend(t)
			first, err := b.Add(ctx, et, Sample(et, 1))
			if err != nil {
				t.Fatalf("seed add: %v", err)
			}
			before := mustLoad(t, b).Len(et)

			input := Sample(et, 2)
			stored, err := b.Add(ctx, et, input)
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if stored.EntityID() == "" || stored.EntityID() == first.EntityID() {
				t.Fatalf("id not fresh: %q (first %q)", stored.EntityID(), first.EntityID())
			}

			after := mustLoad(t, b)
			if after.Len(et) != before+1 {
				t.Fatalf("len: got %d, want %d", after.Len(et), before+1)
			}
			got, ok := after.Find(et, stored.EntityID())
			if !ok {
				t.Fatalf("added record %s not loaded", stored.EntityID())
			}
			if !reflect.DeepEqual(got, input.WithID(stored.EntityID())) {
				t.Fatalf("got %+v, want %+v", got, input.WithID(stored.EntityID()))
			}
		})
	}
}

func testUpdateExisting(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t)
	stored, err := b.Add(ctx, models.EntityDriver, Sample(models.EntityDriver, 1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	changed := stored.(models.Driver)
	changed.Contact = "010-9999-9999"
	if err := b.Update(ctx, models.EntityDriver, changed); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := mustLoad(t, b).Find(models.EntityDriver, changed.ID)
	if got.(models.Driver).Contact != "010-9999-9999" {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func testUpdateMissing(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	for _, et := range models.AllEntityTypes {
		t.Run(string(et), func(t *testing.T) {
			b := newBackend(t)
			if _, err := b.Add(ctx, et, Sample(et, 1)); err != nil {
				t.Fatalf("add: %v", err)
			}
			before := mustLoad(t, b)

			err := b.Update(ctx, et, Sample(et, 2).WithID("no-such-id"))
			if !errors.Is(err, backend.ErrNotFound) {
				t.Fatalf("got %v, want ErrNotFound", err)
			}
			if after := mustLoad(t, b); !reflect.DeepEqual(before, after) {
				t.Fatalf("failed update changed data:\nbefore %+v\nafter  %+v", before, after)
			}
		})
	}
}

func testRemoveIdempotent(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t)
	if _, err := b.Add(ctx, models.EntityVehicle, Sample(models.EntityVehicle, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := b.Remove(ctx, models.EntityVehicle, "absent"); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	once := mustLoad(t, b)
	if err := b.Remove(ctx, models.EntityVehicle, "absent"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	twice := mustLoad(t, b)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("remove of absent id is not idempotent")
	}
	if once.Len(models.EntityVehicle) != 1 {
		t.Fatalf("len: got %d, want 1", once.Len(models.EntityVehicle))
	}
}

func testBulkRemoveMixed(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	b := newBackend(t)
	var ids []string
	for i := 0; i < 4; i++ {
		stored, err := b.Add(ctx, models.EntitySchedule, Sample(models.EntitySchedule, i))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, stored.EntityID())
	}

	if err := b.BulkRemove(ctx, models.EntitySchedule, []string{ids[0], "ghost", ids[2]}); err != nil {
		t.Fatalf("bulk remove: %v", err)
	}
	data := mustLoad(t, b)
	if data.Len(models.EntitySchedule) != 2 {
		t.Fatalf("len: got %d, want 2", data.Len(models.EntitySchedule))
	}
	for _, id := range []string{ids[1], ids[3]} {
		if !data.Has(models.EntitySchedule, id) {
			t.Errorf("%s should survive", id)
		}
	}
}

func testTypeMismatch(t *testing.T, newBackend Factory) {
	b := newBackend(t)
	_, err := b.Add(context.Background(), models.EntityVehicle, Sample(models.EntityDriver, 1))
	if !errors.Is(err, backend.ErrWrite) {
		t.Fatalf("got %v, want ErrWrite", err)
	}
	if !errors.Is(err, models.ErrTypeMismatch) {
		t.Fatalf("got %v, want ErrTypeMismatch in chain", err)
	}
}

func testAddProperty(t *testing.T, newBackend Factory) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	properties := gopter.NewProperties(parameters)

	properties.Property("n adds yield n records with unique ids", prop.ForAll(
		func(n int) bool {
			b := newBackend(t)
			ctx := context.Background()
			seen := map[string]bool{}
			for i := 0; i < n; i++ {
				stored, err := b.Add(ctx, models.EntityDriver, Sample(models.EntityDriver, i))
				if err != nil || seen[stored.EntityID()] {
					return false
				}
				seen[stored.EntityID()] = true
			}
			data, err := b.Load(ctx)
			return err == nil && data.Len(models.EntityDriver) == n
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
