// Package app wires one activation: it reads the configuration store once,
// picks the backend, and builds the auth machine and orchestrator around it.
// A settings change that requires reload means closing the App and
// activating a new one; nothing is re-wired in place.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/marcus/roster/internal/auth"
	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/backend/local"
	"github.com/marcus/roster/internal/backend/sheets"
	"github.com/marcus/roster/internal/gate"
	"github.com/marcus/roster/internal/orchestrator"
	"github.com/marcus/roster/internal/settings"
)

// Options configures Activate. Zero fields take defaults.
type Options struct {
	// Home holds the local database and the token cache.
	Home string
	// Store defaults to the file store in Home.
	Store settings.Store
	// Provider defaults to the Google device-flow provider.
	Provider auth.Provider
	// ClientSecret is passed to the default provider.
	ClientSecret string
	// Backend overrides the backend picked from the settings.
	Backend backend.Backend
	// LocalOptions and SheetsOptions tune the backend that gets built.
	LocalOptions  []local.Option
	SheetsOptions []sheets.Option
}

// NotReadyError is returned when an operation needs the Ready mode.
type NotReadyError struct {
	Mode gate.Mode
	Err  error
}

func (e *NotReadyError) Error() string {
	return "not ready: " + e.Mode.String()
}

func (e *NotReadyError) Unwrap() error { return e.Err }

// App is one activation.
type App struct {
	Home     string
	Settings settings.Store
	Active   settings.Snapshot
	Auth     *auth.Machine
	// Data is nil until a data source is selected.
	Data *orchestrator.Orchestrator

	closeFn func() error

	mu      sync.Mutex
	loading bool
	loadErr error
}

// Activate reads the settings and builds the backend they select.
func Activate(opts Options) (*App, error) {
	home := opts.Home
	if home == "" {
		h, err := settings.Home()
		if err != nil {
			return nil, err
		}
		home = h
	}
	store := opts.Store
	if store == nil {
		store = settings.NewFileStore(home)
	}

	snap, err := settings.Load(store)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider = auth.NewGoogle(home, opts.ClientSecret)
	}

	a := &App{
		Home:     home,
		Settings: store,
		Active:   snap,
		Auth:     auth.New(provider),
	}

	b := opts.Backend
	switch snap.DataSource {
	case settings.Local:
		a.Auth.Bypass()
		if b == nil {
			s, err := local.Open(filepath.Join(home, local.DBFile), opts.LocalOptions...)
			if err != nil {
				return nil, err
			}
			a.closeFn = s.Close
			b = s
		}
	case settings.GoogleSheets:
		if b == nil {
			b = sheets.New(a.Auth, snap.Config.SpreadsheetID, snap.Config.APIKey, opts.SheetsOptions...)
		}
	default:
		a.Auth.Bypass()
		b = nil
	}
	if b != nil {
		a.Data = orchestrator.New(b)
	}

	slog.Debug("activated", "data_source", string(snap.DataSource), "home", home)
	return a, nil
}

// Start runs auth initialization for the remote backend and returns once it
// settles. Classified auth failures are left to the gate and not returned.
func (a *App) Start(ctx context.Context) error {
	if a.Active.DataSource != settings.GoogleSheets {
		return nil
	}
	cfg := a.Active.Config
	err := a.Auth.Initialize(ctx, cfg.APIKey, cfg.ClientID)
	var f *auth.Failure
	if errors.As(err, &f) {
		return nil
	}
	return err
}

// Load reads the dataset if the gate has reached the load stage.
func (a *App) Load(ctx context.Context) error {
	if a.Data == nil {
		return &NotReadyError{Mode: a.Mode()}
	}
	if k := a.Mode().Kind; k != gate.Loading && k != gate.LoadError && k != gate.Ready {
		return &NotReadyError{Mode: a.Mode()}
	}

	a.mu.Lock()
	a.loading = true
	a.loadErr = nil
	a.mu.Unlock()

	err := a.Data.Load(ctx)

	a.mu.Lock()
	a.loading = false
	a.loadErr = err
	a.mu.Unlock()
	return err
}

// Open is Start followed by Load, returning a NotReadyError unless the gate
// ends in Ready.
func (a *App) Open(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	if err := a.Load(ctx); err != nil {
		var nr *NotReadyError
		if errors.As(err, &nr) {
			return err
		}
		return &NotReadyError{Mode: a.Mode(), Err: err}
	}
	return nil
}

// Input assembles the gate input from the current state.
func (a *App) Input() gate.Input {
	a.mu.Lock()
	loading, loadErr := a.loading, a.loadErr
	a.mu.Unlock()
	return gate.Input{
		DataSource:  a.Active.DataSource,
		Config:      a.Active.Config,
		Auth:        a.Auth.Status(),
		AuthFailure: a.Auth.Failure(),
		Loading:     loading || (a.Data != nil && !a.Data.Loaded() && loadErr == nil),
		LoadErr:     loadErr,
	}
}

// Mode evaluates the gate.
func (a *App) Mode() gate.Mode {
	return gate.Compute(a.Input())
}

// Close stops auth polling and releases the backend.
func (a *App) Close() error {
	a.Auth.Stop()
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}
