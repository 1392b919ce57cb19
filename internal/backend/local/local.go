// Package local implements the durable local backend: a SQLite key-value
// table holding one JSON array per collection.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/lock"
	"github.com/marcus/roster/internal/models"
	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the roster home directory.
const DBFile = "roster.db"

// DefaultQuota matches the usual browser local-storage budget.
const DefaultQuota int64 = 5 << 20

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the local backend.
type Store struct {
	conn     *sql.DB
	lockPath string
	quota    int64
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithQuota caps the total stored bytes. Zero or negative disables the cap.
func WithQuota(n int64) Option {
	return func(s *Store) { s.quota = n }
}

// WithIDGenerator replaces the id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers; writers serialize on the file lock.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	lockPath := filepath.Join(filepath.Dir(path), filepath.Base(path)+".lock")
	s, err := New(conn, lockPath, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection. An empty lockPath skips cross-process locking.
func New(conn *sql.DB, lockPath string, opts ...Option) (*Store, error) {
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &Store{
		conn:     conn,
		lockPath: lockPath,
		quota:    DefaultQuota,
		newID:    backend.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Name() string { return "local" }

func (s *Store) Load(ctx context.Context) (*models.AppData, error) {
	data := models.NewAppData()
	rows, err := s.conn.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, backend.LoadError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, backend.LoadError(err)
		}
		t, err := models.ParseEntityType(key)
		if err != nil {
			continue
		}
		if err := data.UnmarshalCollection(t, []byte(value)); err != nil {
			return nil, backend.LoadError(fmt.Errorf("decode %s: %w", key, err))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, backend.LoadError(err)
	}
	data.Normalize()
	return data, nil
}

func (s *Store) Add(ctx context.Context, t models.EntityType, item models.Entity) (models.Entity, error) {
	if err := backend.CheckItem("add", t, item); err != nil {
		return nil, err
	}
	var stored models.Entity
	err := s.mutate(ctx, "add", t, func(d *models.AppData) (bool, error) {
		id := s.newID()
		for d.Has(t, id) {
			id = s.newID()
		}
		stored = item.WithID(id)
		return true, d.Insert(stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, t models.EntityType, item models.Entity) error {
	if err := backend.CheckItem("update", t, item); err != nil {
		return err
	}
	return s.mutate(ctx, "update", t, func(d *models.AppData) (bool, error) {
		if !d.Replace(item) {
			return false, backend.NotFound(t, item.EntityID())
		}
		return true, nil
	})
}

func (s *Store) Remove(ctx context.Context, t models.EntityType, id string) error {
	return s.BulkRemove(ctx, t, []string{id})
}

func (s *Store) BulkRemove(ctx context.Context, t models.EntityType, ids []string) error {
	if !t.Valid() {
		return backend.WriteError("remove", t, "", models.ErrUnknownEntityType)
	}
	return s.mutate(ctx, "remove", t, func(d *models.AppData) (bool, error) {
		return d.Delete(t, ids...) > 0, nil
	})
}

// mutate reads one collection, applies fn, and writes it back in a single
// transaction. fn reports whether anything changed.
func (s *Store) mutate(ctx context.Context, op string, t models.EntityType, fn func(*models.AppData) (bool, error)) error {
	run := func() error {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return backend.WriteError(op, t, "", err)
		}
		defer tx.Rollback()

		key := t.Collection()
		data := models.NewAppData()
		var raw string
		err = tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return backend.WriteError(op, t, "", err)
		default:
			if err := data.UnmarshalCollection(t, []byte(raw)); err != nil {
				return backend.WriteError(op, t, "", fmt.Errorf("decode %s: %w", key, err))
			}
		}

		changed, err := fn(data)
		if err != nil {
			var be *backend.Error
			if errors.As(err, &be) {
				return err
			}
			return backend.WriteError(op, t, "", err)
		}
		if !changed {
			return nil
		}

		data.Normalize()
		encoded, err := data.MarshalCollection(t)
		if err != nil {
			return backend.WriteError(op, t, "", err)
		}
		if err := s.checkQuota(ctx, tx, op, t, key, int64(len(encoded))); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(encoded)); err != nil {
			return backend.WriteError(op, t, "", err)
		}
		if err := tx.Commit(); err != nil {
			return backend.WriteError(op, t, "", err)
		}
		slog.Debug("local write", "op", op, "type", t, "bytes", len(encoded))
		return nil
	}

	if s.lockPath == "" {
		return run()
	}
	return lock.With(s.lockPath, lock.DefaultTimeout, run)
}

func (s *Store) checkQuota(ctx context.Context, tx *sql.Tx, op string, t models.EntityType, key string, size int64) error {
	if s.quota <= 0 {
		return nil
	}
	var others int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv WHERE key <> ?`, key).Scan(&others); err != nil {
		return backend.WriteError(op, t, "", err)
	}
	total := others + int64(len(key)) + size
	if total > s.quota {
		return backend.QuotaExceeded(op, t, total, s.quota)
	}
	return nil
}
