package cmd

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/marcus/roster/internal/settings"
)

func neverAsk(t *testing.T) confirmFunc {
	return func(title, description string, yes bool) (bool, error) {
		t.Fatalf("unexpected confirmation: %s", title)
		return false, nil
	}
}

func answer(ok bool, asked *string) confirmFunc {
	return func(title, description string, yes bool) (bool, error) {
		*asked = description
		return ok || yes, nil
	}
}

func TestApplyUseFirstSelection(t *testing.T) {
	store := settings.NewMemoryStore()
	changed, err := applyUse(store, settings.Local, false, neverAsk(t))
	if err != nil {
		t.Fatalf("applyUse: %v", err)
	}
	if !changed {
		t.Error("expected a change")
	}
	ds, _ := store.LoadDataSource()
	if ds != settings.Local {
		t.Errorf("data source: got %q", ds)
	}
	// the first selection leaves the config untouched
	if cfg, _ := store.LoadConfig(); cfg != nil {
		t.Errorf("config written: %+v", cfg)
	}
}

func TestApplyUseSameSourceIsNoop(t *testing.T) {
	store := settings.NewMemoryStore()
	store.SelectDataSource(settings.Local)
	changed, err := applyUse(store, settings.Local, false, neverAsk(t))
	if err != nil || changed {
		t.Fatalf("got changed=%v err=%v", changed, err)
	}
}

func TestApplyUseSwitchDeclined(t *testing.T) {
	store := settings.NewMemoryStore()
	store.Save(settings.GoogleSheets, settings.Config{APIKey: "A", ClientID: "B"})

	var asked string
	_, err := applyUse(store, settings.Local, false, answer(false, &asked))
	if !errors.Is(err, errCancelled) {
		t.Fatalf("got %v, want errCancelled", err)
	}
	if !strings.Contains(asked, "local data mode") {
		t.Errorf("warning: %q", asked)
	}
	ds, _ := store.LoadDataSource()
	if ds != settings.GoogleSheets {
		t.Errorf("data source changed to %q", ds)
	}
}

func TestApplyUseSwitchKeepsConfig(t *testing.T) {
	store := settings.NewMemoryStore()
	cfg := settings.Config{APIKey: "A", ClientID: "B", SpreadsheetID: "C"}
	store.Save(settings.GoogleSheets, cfg)

	var asked string
	reload, err := applyUse(store, settings.Local, true, answer(false, &asked))
	if err != nil {
		t.Fatalf("applyUse: %v", err)
	}
	if !reload {
		t.Error("switching backends must require a reload")
	}
	snap, _ := settings.Load(store)
	if snap.DataSource != settings.Local || snap.Config != cfg {
		t.Errorf("got %+v", snap)
	}
}

func TestApplyConfigSaveDefaultsToSheets(t *testing.T) {
	store := settings.NewMemoryStore()
	key, client := "AIza-test", "client.apps.googleusercontent.com"
	reload, err := applyConfigSave(store, configChanges{APIKey: &key, ClientID: &client}, false, neverAsk(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !reload {
		t.Error("expected reload")
	}
	snap, _ := settings.Load(store)
	if snap.DataSource != settings.GoogleSheets {
		t.Errorf("data source: got %q", snap.DataSource)
	}
	if !snap.Config.HasCredentials() {
		t.Errorf("config: %+v", snap.Config)
	}
}

func TestApplyConfigSaveMergesFields(t *testing.T) {
	store := settings.NewMemoryStore()
	store.Save(settings.GoogleSheets, settings.Config{APIKey: "A", ClientID: "B"})

	sheet := "sheet-1"
	reload, err := applyConfigSave(store, configChanges{SpreadsheetID: &sheet}, false, neverAsk(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !reload {
		t.Error("a new spreadsheet id requires reload")
	}
	snap, _ := settings.Load(store)
	want := settings.Config{APIKey: "A", ClientID: "B", SpreadsheetID: "sheet-1"}
	if snap.Config != want {
		t.Errorf("got %+v, want %+v", snap.Config, want)
	}

	// saving identical values changes nothing
	reload, err = applyConfigSave(store, configChanges{SpreadsheetID: &sheet}, false, neverAsk(t))
	if err != nil || reload {
		t.Errorf("got reload=%v err=%v", reload, err)
	}
}

func TestApplyConfigSaveSwitchAsks(t *testing.T) {
	store := settings.NewMemoryStore()
	store.SelectDataSource(settings.Local)

	ds := settings.GoogleSheets
	var asked string
	if _, err := applyConfigSave(store, configChanges{DataSource: &ds}, false, answer(false, &asked)); !errors.Is(err, errCancelled) {
		t.Fatalf("got %v, want errCancelled", err)
	}
	if asked == "" {
		t.Error("no warning shown")
	}
}

func TestApplyUseStorageFailure(t *testing.T) {
	store := settings.NewMemoryStore()
	store.FailWith(errors.New("storage disabled"))
	if _, err := applyUse(store, settings.Local, true, neverAsk(t)); err == nil {
		t.Fatal("expected error")
	}
}

const corruptSettings = `{"dataSource":"googleSheets","googleSheetsConfig":"{broken"}`

// withHome points the commands at a fresh home holding body as settings.json.
func withHome(t *testing.T, body string) *settings.FileStore {
	t.Helper()
	prev := homeFlag
	homeFlag = t.TempDir()
	t.Cleanup(func() { homeFlag = prev })
	store := settings.NewFileStore(homeFlag)
	if err := os.WriteFile(store.Path(), []byte(body), 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return store
}

func TestConfigResetOverCorruptSettings(t *testing.T) {
	store := withHome(t, corruptSettings)
	configResetCmd.SetContext(context.Background())
	if err := configResetCmd.Flags().Set("yes", "true"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	t.Cleanup(func() { configResetCmd.Flags().Set("yes", "false") })

	if err := configResetCmd.RunE(configResetCmd, nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	snap, err := settings.Load(store)
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if snap != (settings.Snapshot{}) {
		t.Fatalf("got %+v, want empty settings", snap)
	}
}

func TestConfigEditsOverCorruptSettings(t *testing.T) {
	store := withHome(t, corruptSettings)
	key := "A"
	reload, err := applyConfigSave(store, configChanges{APIKey: &key}, false, neverAsk(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !reload {
		t.Error("expected reload")
	}
	snap, err := settings.Load(store)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.DataSource != settings.GoogleSheets || snap.Config.APIKey != "A" {
		t.Fatalf("got %+v", snap)
	}

	withHome(t, corruptSettings)
	store = settings.NewFileStore(homeFlag)
	var asked string
	if _, err := applyUse(store, settings.Local, false, answer(true, &asked)); err != nil {
		t.Fatalf("use: %v", err)
	}
	if ds, _ := store.LoadDataSource(); ds != settings.Local {
		t.Fatalf("data source: got %q", ds)
	}
}
