// Package admin implements the password-gated admin mode. Normal mode sees
// the dashboard and schedules; admin mode unlocks every surface.
//
// An unlocked session is a small file under the roster home holding an
// Argon2id key derived from the password, so changing the password locks
// every existing session.
package admin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/argon2"
)

const (
	// DefaultPassword is used when ROSTER_ADMIN_PASSWORD is unset.
	DefaultPassword = "admin1234"
	// PasswordEnv overrides the admin password.
	PasswordEnv = "ROSTER_ADMIN_PASSWORD"
	// SessionFile is the session file name under the roster home.
	SessionFile = "admin.json"
	// DefaultTTL is how long an unlocked session lasts.
	DefaultTTL = 8 * time.Hour

	saltLen = 16
	keyLen  = 32

	// Argon2id parameters.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	ErrWrongPassword = errors.New("wrong admin password")
	ErrLocked        = errors.New("admin mode required")
)

// Tab is a management surface.
type Tab string

const (
	TabDashboard Tab = "dashboard"
	TabSchedules Tab = "schedules"
	TabDrivers   Tab = "drivers"
	TabVehicles  Tab = "vehicles"
	TabWorkTeams Tab = "workTeams"
	TabData      Tab = "data"
)

// Tabs lists every surface in display order.
var Tabs = []Tab{TabDashboard, TabSchedules, TabDrivers, TabVehicles, TabWorkTeams, TabData}

var labels = map[Tab]string{
	TabDashboard: "근무현황",
	TabSchedules: "근무표 관리",
	TabDrivers:   "운전자 관리",
	TabVehicles:  "차량 관리",
	TabWorkTeams: "근무조 관리",
	TabData:      "데이터 관리",
}

// Label returns the display label.
func (t Tab) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// AdminOnly reports whether t requires admin mode.
func (t Tab) AdminOnly() bool {
	return t != TabDashboard && t != TabSchedules
}

// Visible returns the tabs shown in the given mode.
func Visible(admin bool) []Tab {
	if admin {
		out := make([]Tab, len(Tabs))
		copy(out, Tabs)
		return out
	}
	return []Tab{TabDashboard, TabSchedules}
}

// Landing is the tab shown right after entering or leaving admin mode.
func Landing(admin bool) Tab {
	if admin {
		return TabDrivers
	}
	return TabDashboard
}

// Password returns the configured admin password.
func Password() string {
	if p := os.Getenv(PasswordEnv); p != "" {
		return p
	}
	return DefaultPassword
}

type session struct {
	UnlockedAt time.Time `json:"unlocked_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Salt       []byte    `json:"salt"`
	Key        []byte    `json:"key"`
}

// Gate checks passwords and persists the unlocked state.
type Gate struct {
	Path     string
	Password string
	TTL      time.Duration
	Now      func() time.Time
	Rand     io.Reader
}

// New returns a gate storing its session under dir.
func New(dir string) *Gate {
	return &Gate{
		Path:     filepath.Join(dir, SessionFile),
		Password: Password(),
		TTL:      DefaultTTL,
		Now:      time.Now,
		Rand:     rand.Reader,
	}
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// Login unlocks admin mode if password matches.
func (g *Gate) Login(password string) error {
	if subtle.ConstantTimeCompare([]byte(password), []byte(g.Password)) != 1 {
		slog.Warn("admin login rejected")
		return ErrWrongPassword
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(g.Rand, salt); err != nil {
		return fmt.Errorf("random salt: %w", err)
	}
	now := g.Now().UTC()
	s := session{
		UnlockedAt: now,
		ExpiresAt:  now.Add(g.TTL),
		Salt:       salt,
		Key:        deriveKey(password, salt),
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := g.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write admin session: %w", err)
	}
	if err := os.Rename(tmp, g.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write admin session: %w", err)
	}
	slog.Info("admin mode unlocked", "expires", s.ExpiresAt)
	return nil
}

// Logout returns to normal mode. Logging out twice is not an error.
func (g *Gate) Logout() error {
	if err := os.Remove(g.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove admin session: %w", err)
	}
	return nil
}

// Active reports whether a valid, unexpired session exists.
func (g *Gate) Active() bool {
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return false
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return false
	}
	if !g.Now().Before(s.ExpiresAt) || len(s.Salt) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(deriveKey(g.Password, s.Salt), s.Key) == 1
}

// Require returns ErrLocked when tab needs admin mode and none is active.
func (g *Gate) Require(tab Tab) error {
	if tab.AdminOnly() && !g.Active() {
		return fmt.Errorf("%w: %s", ErrLocked, tab.Label())
	}
	return nil
}

// RequireEdit returns ErrLocked unless admin mode is active. Changing
// records on any tab, schedules included, needs admin mode.
func (g *Gate) RequireEdit(tab Tab) error {
	if !g.Active() {
		return fmt.Errorf("%w: editing %s", ErrLocked, tab.Label())
	}
	return nil
}
