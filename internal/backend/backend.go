// Package backend defines the persistence contract shared by the local store
// and the remote sheet store, plus the error taxonomy both report through.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/marcus/roster/internal/models"
)

// Backend persists AppData. Implementations are selected once per activation.
type Backend interface {
	// Name identifies the backend in logs ("local", "googleSheets").
	Name() string
	// Load returns the whole dataset.
	Load(ctx context.Context) (*models.AppData, error)
	// Add stores item under a freshly assigned id and returns the stored copy.
	Add(ctx context.Context, t models.EntityType, item models.Entity) (models.Entity, error)
	// Update overwrites the record with item's id; ErrNotFound if absent.
	Update(ctx context.Context, t models.EntityType, item models.Entity) error
	// Remove deletes one record. Absent ids are a no-op.
	Remove(ctx context.Context, t models.EntityType, id string) error
	// BulkRemove deletes every listed id that exists.
	BulkRemove(ctx context.Context, t models.EntityType, ids []string) error
}

// Sentinel errors, matched with errors.Is.
var (
	ErrLoad         = errors.New("load failed")
	ErrWrite        = errors.New("write rejected")
	ErrNotFound     = errors.New("record not found")
	ErrAuthRequired = errors.New("sign-in required")
	ErrStorageQuota = errors.New("storage quota exceeded")
)

// Error carries the failing operation and target alongside its class.
type Error struct {
	Op   string
	Type models.EntityType
	ID   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Type != "" {
		msg += " " + string(e.Type)
	}
	if e.ID != "" {
		msg += " " + e.ID
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error class.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// LoadError wraps a failure to read the dataset.
func LoadError(err error) error {
	return &Error{Op: "load", Kind: ErrLoad, Err: err}
}

// WriteError wraps a rejected mutation.
func WriteError(op string, t models.EntityType, id string, err error) error {
	return &Error{Op: op, Type: t, ID: id, Kind: ErrWrite, Err: err}
}

// NotFound reports an update aimed at a missing id.
func NotFound(t models.EntityType, id string) error {
	return &Error{Op: "update", Type: t, ID: id, Kind: ErrNotFound}
}

// AuthRequired reports a remote operation attempted while signed out.
func AuthRequired(op string) error {
	return &Error{Op: op, Kind: ErrAuthRequired}
}

// QuotaExceeded reports a write that would overflow the local store.
func QuotaExceeded(op string, t models.EntityType, need, limit int64) error {
	return &Error{Op: op, Type: t, Kind: ErrStorageQuota, Err: fmt.Errorf("%d bytes over %d byte limit", need, limit)}
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// CheckItem validates a mutation input before any backend work.
func CheckItem(op string, t models.EntityType, item models.Entity) error {
	if err := models.Validate(t, item); err != nil {
		id := ""
		if item != nil {
			id = item.EntityID()
		}
		return WriteError(op, t, id, err)
	}
	return nil
}
