// Package orchestrator is the single CRUD surface over the active backend.
// It owns the in-memory AppData snapshot and only changes it after the
// backend has confirmed a mutation.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/models"
)

// ErrNotLoaded is returned by mutations issued before the first Load.
var ErrNotLoaded = errors.New("data not loaded")

// Orchestrator routes CRUD calls to one backend and reconciles the snapshot.
// Backend calls are not serialized; only the snapshot is guarded.
type Orchestrator struct {
	backend backend.Backend

	mu       sync.RWMutex
	data     *models.AppData
	loadedAt time.Time
}

// New wraps b. The snapshot is empty until Load succeeds.
func New(b backend.Backend) *Orchestrator {
	return &Orchestrator{backend: b}
}

// Backend returns the backend this orchestrator routes to.
func (o *Orchestrator) Backend() backend.Backend {
	return o.backend
}

// Load replaces the snapshot with a full read from the backend. On failure
// the previous snapshot is kept.
func (o *Orchestrator) Load(ctx context.Context) error {
	start := time.Now()
	data, err := o.backend.Load(ctx)
	if err != nil {
		slog.Warn("load failed", "backend", o.backend.Name(), "err", err)
		return err
	}
	data.Normalize()

	o.mu.Lock()
	o.data = data
	o.loadedAt = time.Now()
	o.mu.Unlock()

	slog.Info("data loaded", "backend", o.backend.Name(),
		"schedules", len(data.Schedules), "drivers", len(data.Drivers),
		"vehicles", len(data.Vehicles), "work_teams", len(data.WorkTeams),
		"elapsed", time.Since(start))
	return nil
}

// Loaded reports whether a Load has succeeded.
func (o *Orchestrator) Loaded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.data != nil
}

// LoadedAt returns when the snapshot was last replaced.
func (o *Orchestrator) LoadedAt() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loadedAt
}

// Snapshot returns a copy of the current data. Callers may keep and modify it.
func (o *Orchestrator) Snapshot() *models.AppData {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.data == nil {
		return models.NewAppData()
	}
	return o.data.Clone()
}

func (o *Orchestrator) ready() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.data == nil {
		return ErrNotLoaded
	}
	return nil
}

// Add stores item and appends the stored copy to the snapshot.
func (o *Orchestrator) Add(ctx context.Context, t models.EntityType, item models.Entity) (models.Entity, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}
	stored, err := o.backend.Add(ctx, t, item)
	if err != nil {
		slog.Warn("add failed", "type", t, "err", err)
		return nil, err
	}

	o.mu.Lock()
	if !o.data.Replace(stored) {
		if err := o.data.Insert(stored); err != nil {
			slog.Error("snapshot insert", "type", t, "id", stored.EntityID(), "err", err)
		}
	}
	o.mu.Unlock()

	slog.Debug("added", "type", t, "id", stored.EntityID())
	return stored, nil
}

// Update overwrites the record with item's id.
func (o *Orchestrator) Update(ctx context.Context, t models.EntityType, item models.Entity) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.backend.Update(ctx, t, item); err != nil {
		slog.Warn("update failed", "type", t, "id", idOf(item), "err", err)
		return err
	}

	o.mu.Lock()
	if !o.data.Replace(item) {
		// the backend had it, the snapshot was stale
		if err := o.data.Insert(item); err != nil {
			slog.Error("snapshot insert", "type", t, "id", item.EntityID(), "err", err)
		}
	}
	o.mu.Unlock()

	slog.Debug("updated", "type", t, "id", item.EntityID())
	return nil
}

// Remove deletes one record. Absent ids succeed without change.
func (o *Orchestrator) Remove(ctx context.Context, t models.EntityType, id string) error {
	if err := o.ready(); err != nil {
		return err
	}
	if err := o.backend.Remove(ctx, t, id); err != nil {
		slog.Warn("remove failed", "type", t, "id", id, "err", err)
		return err
	}

	o.mu.Lock()
	n := o.data.Delete(t, id)
	o.mu.Unlock()

	slog.Debug("removed", "type", t, "id", id, "count", n)
	return nil
}

// BulkRemove deletes every listed id that exists.
func (o *Orchestrator) BulkRemove(ctx context.Context, t models.EntityType, ids []string) error {
	if err := o.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := o.backend.BulkRemove(ctx, t, ids); err != nil {
		slog.Warn("bulk remove failed", "type", t, "ids", len(ids), "err", err)
		return err
	}

	o.mu.Lock()
	n := o.data.Delete(t, ids...)
	o.mu.Unlock()

	slog.Debug("bulk removed", "type", t, "requested", len(ids), "count", n)
	return nil
}

func idOf(e models.Entity) string {
	if e == nil {
		return ""
	}
	return e.EntityID()
}
