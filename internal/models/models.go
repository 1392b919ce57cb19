package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EntityType tags which AppData collection an operation targets
type EntityType string

const (
	EntitySchedule EntityType = "schedule"
	EntityDriver   EntityType = "driver"
	EntityVehicle  EntityType = "vehicle"
	EntityWorkTeam EntityType = "workTeam"
)

// AllEntityTypes lists entity types in collection order
var AllEntityTypes = []EntityType{EntitySchedule, EntityDriver, EntityVehicle, EntityWorkTeam}

// Collection names, also used as worksheet tab names
const (
	CollectionSchedules = "schedules"
	CollectionDrivers   = "drivers"
	CollectionVehicles  = "vehicles"
	CollectionWorkTeams = "workTeams"
)

var (
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrTypeMismatch      = errors.New("entity does not match entity type")
	ErrInvalidPattern    = errors.New("invalid work pattern")
)

// Collection returns the AppData collection name for the entity type
func (t EntityType) Collection() string {
	switch t {
	case EntitySchedule:
		return CollectionSchedules
	case EntityDriver:
		return CollectionDrivers
	case EntityVehicle:
		return CollectionVehicles
	case EntityWorkTeam:
		return CollectionWorkTeams
	}
	return ""
}

// Valid reports whether t is one of the four entity types
func (t EntityType) Valid() bool {
	return t.Collection() != ""
}

// ParseEntityType accepts the canonical tag, the collection name, or "team".
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "schedule", "schedules":
		return EntitySchedule, nil
	case "driver", "drivers":
		return EntityDriver, nil
	case "vehicle", "vehicles":
		return EntityVehicle, nil
	case "workteam", "workteams", "team", "teams":
		return EntityWorkTeam, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// WorkPattern is the recurrence rule of a work team
type WorkPattern string

const (
	PatternWeekly        WorkPattern = "weekly"
	PatternAlternateOdd  WorkPattern = "alternate_odd"
	PatternAlternateEven WorkPattern = "alternate_even"
)

// IsValidPattern checks if a work pattern is valid
func IsValidPattern(p WorkPattern) bool {
	switch p {
	case PatternWeekly, PatternAlternateOdd, PatternAlternateEven:
		return true
	}
	return false
}

// Entity is implemented by the four record types.
type Entity interface {
	EntityType() EntityType
	EntityID() string
	// WithID returns a copy of the entity carrying id.
	WithID(id string) Entity
}

// Schedule is one driver's assignment on one date and shift
type Schedule struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	WorkTeam      string `json:"work_team"`
	WorkTime      string `json:"work_time"`
	DriverName    string `json:"driver_name"`
	VehicleNumber string `json:"vehicle_number"`
	BreakTime     string `json:"break_time,omitempty"`
	MealTime      string `json:"meal_time,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Driver is a roster entry. Schedules reference it by name only.
type Driver struct {
	ID         string `json:"id"`
	DriverName string `json:"driver_name"`
	Contact    string `json:"contact"`
	HireDate   string `json:"hire_date"`
}

// Vehicle is a fleet entry. Schedules reference it by number only.
type Vehicle struct {
	ID               string `json:"id"`
	VehicleNumber    string `json:"vehicle_number"`
	VehicleModel     string `json:"vehicle_model"`
	RegistrationDate string `json:"registration_date"`
}

// WorkTeam is a recurring shift template
type WorkTeam struct {
	ID          string      `json:"id"`
	WorkTeam    string      `json:"work_team"`
	ShiftName   string      `json:"shift_name"`
	WorkPattern WorkPattern `json:"work_pattern"`
	StartDay    string      `json:"start_day"`
	EndDay      string      `json:"end_day"`
	StartTime   string      `json:"start_time"`
	EndTime     string      `json:"end_time"`
}

func (s Schedule) EntityType() EntityType { return EntitySchedule }
func (s Schedule) EntityID() string       { return s.ID }
func (s Schedule) WithID(id string) Entity {
	s.ID = id
	return s
}

func (d Driver) EntityType() EntityType { return EntityDriver }
func (d Driver) EntityID() string       { return d.ID }
func (d Driver) WithID(id string) Entity {
	d.ID = id
	return d
}

func (v Vehicle) EntityType() EntityType { return EntityVehicle }
func (v Vehicle) EntityID() string       { return v.ID }
func (v Vehicle) WithID(id string) Entity {
	v.ID = id
	return v
}

func (w WorkTeam) EntityType() EntityType { return EntityWorkTeam }
func (w WorkTeam) EntityID() string       { return w.ID }
func (w WorkTeam) WithID(id string) Entity {
	w.ID = id
	return w
}

// fieldOrder is the column order written to a fresh worksheet header and
// used for tabular exports.
var fieldOrder = map[EntityType][]string{
	EntitySchedule: {"id", "date", "work_team", "work_time", "driver_name", "vehicle_number", "break_time", "meal_time", "notes"},
	EntityDriver:   {"id", "driver_name", "contact", "hire_date"},
	EntityVehicle:  {"id", "vehicle_number", "vehicle_model", "registration_date"},
	EntityWorkTeam: {"id", "work_team", "shift_name", "work_pattern", "start_day", "end_day", "start_time", "end_time"},
}

// FieldNames returns the field names of an entity type, id first.
func FieldNames(t EntityType) []string {
	names := fieldOrder[t]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Validate checks that e belongs to t and carries legal enum values.
func Validate(t EntityType, e Entity) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}
	if e == nil || e.EntityType() != t {
		return fmt.Errorf("%w: want %s", ErrTypeMismatch, t)
	}
	if wt, ok := e.(WorkTeam); ok && !IsValidPattern(wt.WorkPattern) {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, wt.WorkPattern)
	}
	return nil
}

// Fields flattens an entity into field name -> string value.
func Fields(e Entity) (map[string]string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, name := range fieldOrder[e.EntityType()] {
		if _, ok := raw[name]; !ok {
			raw[name] = ""
		}
	}
	return raw, nil
}

// FromFields builds an entity of type t from field name -> value pairs.
// Unknown fields are ignored.
func FromFields(t EntityType, fields map[string]string) (Entity, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return Decode(t, data)
}

// Decode unmarshals a single JSON object into an entity of type t.
func Decode(t EntityType, data []byte) (Entity, error) {
	switch t {
	case EntitySchedule:
		var s Schedule
		err := json.Unmarshal(data, &s)
		return s, err
	case EntityDriver:
		var d Driver
		err := json.Unmarshal(data, &d)
		return d, err
	case EntityVehicle:
		var v Vehicle
		err := json.Unmarshal(data, &v)
		return v, err
	case EntityWorkTeam:
		var w WorkTeam
		err := json.Unmarshal(data, &w)
		return w, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
}
