package models

import (
	"encoding/json"
	"fmt"
)

// AppData is the full in-memory snapshot of all four collections
type AppData struct {
	Schedules []Schedule `json:"schedules"`
	Drivers   []Driver   `json:"drivers"`
	Vehicles  []Vehicle  `json:"vehicles"`
	WorkTeams []WorkTeam `json:"workTeams"`
}

// NewAppData returns an AppData with empty, non-nil collections.
func NewAppData() *AppData {
	return &AppData{
		Schedules: []Schedule{},
		Drivers:   []Driver{},
		Vehicles:  []Vehicle{},
		WorkTeams: []WorkTeam{},
	}
}

type identified interface {
	EntityID() string
}

func cloneSlice[T any](xs []T) []T {
	out := make([]T, len(xs))
	copy(out, xs)
	return out
}

func indexOf[T identified](xs []T, id string) int {
	for i, x := range xs {
		if x.EntityID() == id {
			return i
		}
	}
	return -1
}

func without[T identified](xs []T, ids map[string]bool) ([]T, int) {
	out := xs[:0:0]
	removed := 0
	for _, x := range xs {
		if ids[x.EntityID()] {
			removed++
			continue
		}
		out = append(out, x)
	}
	return out, removed
}

func toEntities[T Entity](xs []T) []Entity {
	out := make([]Entity, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// Clone returns a deep copy; all record fields are strings so a slice copy suffices.
func (d *AppData) Clone() *AppData {
	if d == nil {
		return NewAppData()
	}
	return &AppData{
		Schedules: cloneSlice(d.Schedules),
		Drivers:   cloneSlice(d.Drivers),
		Vehicles:  cloneSlice(d.Vehicles),
		WorkTeams: cloneSlice(d.WorkTeams),
	}
}

// Items returns the records of one collection as entities.
func (d *AppData) Items(t EntityType) []Entity {
	switch t {
	case EntitySchedule:
		return toEntities(d.Schedules)
	case EntityDriver:
		return toEntities(d.Drivers)
	case EntityVehicle:
		return toEntities(d.Vehicles)
	case EntityWorkTeam:
		return toEntities(d.WorkTeams)
	}
	return nil
}

// Len returns the size of one collection.
func (d *AppData) Len(t EntityType) int {
	switch t {
	case EntitySchedule:
		return len(d.Schedules)
	case EntityDriver:
		return len(d.Drivers)
	case EntityVehicle:
		return len(d.Vehicles)
	case EntityWorkTeam:
		return len(d.WorkTeams)
	}
	return 0
}

// Find looks up a record by id.
func (d *AppData) Find(t EntityType, id string) (Entity, bool) {
	for _, e := range d.Items(t) {
		if e.EntityID() == id {
			return e, true
		}
	}
	return nil, false
}

// Has reports whether a record with id exists in the collection of t.
func (d *AppData) Has(t EntityType, id string) bool {
	_, ok := d.Find(t, id)
	return ok
}

// Insert appends e to its collection.
func (d *AppData) Insert(e Entity) error {
	switch v := e.(type) {
	case Schedule:
		d.Schedules = append(d.Schedules, v)
	case Driver:
		d.Drivers = append(d.Drivers, v)
	case Vehicle:
		d.Vehicles = append(d.Vehicles, v)
	case WorkTeam:
		d.WorkTeams = append(d.WorkTeams, v)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEntityType, e)
	}
	return nil
}

// Replace swaps the record sharing e's id. Returns false if no such record.
func (d *AppData) Replace(e Entity) bool {
	id := e.EntityID()
	switch v := e.(type) {
	case Schedule:
		if i := indexOf(d.Schedules, id); i >= 0 {
			d.Schedules[i] = v
			return true
		}
	case Driver:
		if i := indexOf(d.Drivers, id); i >= 0 {
			d.Drivers[i] = v
			return true
		}
	case Vehicle:
		if i := indexOf(d.Vehicles, id); i >= 0 {
			d.Vehicles[i] = v
			return true
		}
	case WorkTeam:
		if i := indexOf(d.WorkTeams, id); i >= 0 {
			d.WorkTeams[i] = v
			return true
		}
	}
	return false
}

// Delete removes the records of type t whose ids are listed and returns
// how many were removed. Absent ids are ignored.
func (d *AppData) Delete(t EntityType, ids ...string) int {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var n int
	switch t {
	case EntitySchedule:
		d.Schedules, n = without(d.Schedules, set)
	case EntityDriver:
		d.Drivers, n = without(d.Drivers, set)
	case EntityVehicle:
		d.Vehicles, n = without(d.Vehicles, set)
	case EntityWorkTeam:
		d.WorkTeams, n = without(d.WorkTeams, set)
	}
	return n
}

// MarshalCollection encodes one collection as a JSON array.
func (d *AppData) MarshalCollection(t EntityType) ([]byte, error) {
	switch t {
	case EntitySchedule:
		return json.Marshal(d.Schedules)
	case EntityDriver:
		return json.Marshal(d.Drivers)
	case EntityVehicle:
		return json.Marshal(d.Vehicles)
	case EntityWorkTeam:
		return json.Marshal(d.WorkTeams)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
}

// UnmarshalCollection replaces one collection from a JSON array.
func (d *AppData) UnmarshalCollection(t EntityType, data []byte) error {
	switch t {
	case EntitySchedule:
		return json.Unmarshal(data, &d.Schedules)
	case EntityDriver:
		return json.Unmarshal(data, &d.Drivers)
	case EntityVehicle:
		return json.Unmarshal(data, &d.Vehicles)
	case EntityWorkTeam:
		return json.Unmarshal(data, &d.WorkTeams)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
}

// Normalize replaces nil collections with empty ones so JSON encodes [] not null.
func (d *AppData) Normalize() {
	if d.Schedules == nil {
		d.Schedules = []Schedule{}
	}
	if d.Drivers == nil {
		d.Drivers = []Driver{}
	}
	if d.Vehicles == nil {
		d.Vehicles = []Vehicle{}
	}
	if d.WorkTeams == nil {
		d.WorkTeams = []WorkTeam{}
	}
}
