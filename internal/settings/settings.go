// Package settings persists the data source selection and the remote sheet
// connection parameters, and decides when a change needs a full reload.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DataSource selects the persistence backend
type DataSource string

const (
	GoogleSheets DataSource = "googleSheets"
	Local        DataSource = "local"
)

// Persisted keys, mirroring the browser storage keys of the web dashboard.
const (
	KeyDataSource = "dataSource"
	KeyConfig     = "googleSheetsConfig"
)

var (
	ErrUnknownDataSource = errors.New("unknown data source")
	// ErrCorrupt marks a settings file or value that cannot be parsed.
	ErrCorrupt = errors.New("settings corrupt")
)

// ParseDataSource accepts "googleSheets" (or "sheets", "google") and "local".
func ParseDataSource(s string) (DataSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "googlesheets", "sheets", "google":
		return GoogleSheets, nil
	case "local":
		return Local, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataSource, s)
}

// Config holds the remote sheet connection parameters
type Config struct {
	APIKey        string `json:"apiKey"`
	ClientID      string `json:"clientId"`
	SpreadsheetID string `json:"spreadsheetId"`
}

// HasCredentials reports whether both apiKey and clientId are set.
func (c Config) HasCredentials() bool {
	return c.APIKey != "" && c.ClientID != ""
}

// Snapshot is the persisted state as of one read.
type Snapshot struct {
	DataSource DataSource
	Config     Config
}

// Store is the configuration store.
type Store interface {
	// LoadDataSource returns "" when no selection is persisted.
	LoadDataSource() (DataSource, error)
	// LoadConfig returns nil when no configuration is persisted.
	LoadConfig() (*Config, error)
	// SelectDataSource persists the first-run selection without touching the config.
	SelectDataSource(ds DataSource) error
	// Save persists both keys and reports whether a full reload is required.
	Save(ds DataSource, cfg Config) (requiresReload bool, err error)
	// Reset erases both keys. Callers must confirm with the user first;
	// the erased credentials cannot be recovered.
	Reset() error
}

// RequiresReload reports whether moving from the old to the new settings
// changes the data source or any connection field.
func RequiresReload(oldDS, newDS DataSource, oldCfg, newCfg Config) bool {
	return oldDS != newDS ||
		oldCfg.APIKey != newCfg.APIKey ||
		oldCfg.ClientID != newCfg.ClientID ||
		oldCfg.SpreadsheetID != newCfg.SpreadsheetID
}

// Load reads both keys. An absent config reads as the zero Config.
func Load(s Store) (Snapshot, error) {
	ds, err := s.LoadDataSource()
	if err != nil {
		return Snapshot{}, err
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{DataSource: ds}
	if cfg != nil {
		snap.Config = *cfg
	}
	return snap, nil
}

// SwitchWarning returns the confirmation text shown before switching backends,
// or "" when the data source is unchanged.
func SwitchWarning(from, to DataSource) string {
	if from == to || from == "" {
		return ""
	}
	if to == Local {
		return "Stop using Google Sheets and switch to local data mode?\n\n" +
			"This cannot be undone; from now on data is stored on this machine only."
	}
	return "Stop using local data and switch to Google Sheets mode?\n\n" +
		"Locally stored data is kept, but the app will work against Google Sheets."
}

func decodeKV(kv map[string]string) (Snapshot, *Config, error) {
	var snap Snapshot
	snap.DataSource = DataSource(kv[KeyDataSource])
	raw, ok := kv[KeyConfig]
	if !ok {
		return snap, nil, nil
	}
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return snap, nil, fmt.Errorf("%w: parse %s: %w", ErrCorrupt, KeyConfig, err)
	}
	snap.Config = cfg
	return snap, &cfg, nil
}

func encodeConfig(cfg Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
