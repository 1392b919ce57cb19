package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFirstRunIsEmpty(t *testing.T) {
	s := NewFileStore(t.TempDir())

	ds, err := s.LoadDataSource()
	if err != nil {
		t.Fatalf("load data source: %v", err)
	}
	if ds != "" {
		t.Fatalf("data source: got %q, want empty", ds)
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg != nil {
		t.Fatalf("config: got %+v, want nil", cfg)
	}
}

func TestSaveIdenticalDoesNotRequireReload(t *testing.T) {
	s := NewFileStore(t.TempDir())
	cfg := Config{APIKey: "A", ClientID: "B", SpreadsheetID: "C"}

	if _, err := s.Save(GoogleSheets, cfg); err != nil {
		t.Fatalf("first save: %v", err)
	}
	reload, err := s.Save(GoogleSheets, cfg)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if reload {
		t.Fatal("saving identical settings should not require reload")
	}
}

func TestSaveReloadCases(t *testing.T) {
	base := Config{APIKey: "A", ClientID: "B", SpreadsheetID: "C"}
	tests := []struct {
		name string
		ds   DataSource
		cfg  Config
		want bool
	}{
		{"same", GoogleSheets, base, false},
		{"data source", Local, base, true},
		{"api key", GoogleSheets, Config{APIKey: "X", ClientID: "B", SpreadsheetID: "C"}, true},
		{"client id", GoogleSheets, Config{APIKey: "A", ClientID: "X", SpreadsheetID: "C"}, true},
		{"spreadsheet", GoogleSheets, Config{APIKey: "A", ClientID: "B", SpreadsheetID: "X"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewFileStore(t.TempDir())
			if _, err := s.Save(GoogleSheets, base); err != nil {
				t.Fatalf("seed: %v", err)
			}
			got, err := s.Save(tt.ds, tt.cfg)
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if got != tt.want {
				t.Fatalf("reload: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSavePersistsBothKeys(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{APIKey: "key", ClientID: "client", SpreadsheetID: "sheet"}
	if _, err := NewFileStore(dir).Save(GoogleSheets, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened := NewFileStore(dir)
	snap, err := Load(reopened)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.DataSource != GoogleSheets || snap.Config != cfg {
		t.Fatalf("got %+v", snap)
	}

	info, err := os.Stat(filepath.Join(dir, settingsFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("settings perms: got %o, want 600", info.Mode().Perm())
	}
}

func TestSelectKeepsConfig(t *testing.T) {
	s := NewFileStore(t.TempDir())
	cfg := Config{APIKey: "k", ClientID: "c"}
	if _, err := s.Save(GoogleSheets, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SelectDataSource(Local); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap, _ := Load(s)
	if snap.DataSource != Local || snap.Config != cfg {
		t.Fatalf("got %+v", snap)
	}
}

func TestResetForcesFirstRun(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if _, err := s.Save(Local, Config{APIKey: "k"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	ds, _ := s.LoadDataSource()
	cfg, _ := s.LoadConfig()
	if ds != "" || cfg != nil {
		t.Fatalf("after reset: ds=%q cfg=%+v", ds, cfg)
	}
}

func TestParseDataSource(t *testing.T) {
	for in, want := range map[string]DataSource{"googleSheets": GoogleSheets, "sheets": GoogleSheets, "LOCAL": Local} {
		got, err := ParseDataSource(in)
		if err != nil || got != want {
			t.Errorf("ParseDataSource(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDataSource("dropbox"); !errors.Is(err, ErrUnknownDataSource) {
		t.Errorf("expected ErrUnknownDataSource, got %v", err)
	}
}

func TestSwitchWarning(t *testing.T) {
	if SwitchWarning(Local, Local) != "" {
		t.Error("no warning expected when unchanged")
	}
	if SwitchWarning("", Local) != "" {
		t.Error("no warning expected on first selection")
	}
	if SwitchWarning(GoogleSheets, Local) == "" || SwitchWarning(Local, GoogleSheets) == "" {
		t.Error("switching backends must warn")
	}
}

func TestMemoryStoreFailure(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("storage disabled")
	s.FailWith(boom)
	if _, err := s.Save(Local, Config{}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestRequiresReloadProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	field := gen.OneConstOf("", "A", "B")
	source := gen.OneConstOf(GoogleSheets, Local)

	properties.Property("reload iff data source or any field differs", prop.ForAll(
		func(ds1, ds2 DataSource, a1, a2, c1, c2, s1, s2 string) bool {
			old := Config{APIKey: a1, ClientID: c1, SpreadsheetID: s1}
			next := Config{APIKey: a2, ClientID: c2, SpreadsheetID: s2}
			want := ds1 != ds2 || a1 != a2 || c1 != c2 || s1 != s2

			m := NewMemoryStore()
			if _, err := m.Save(ds1, old); err != nil {
				return false
			}
			got, err := m.Save(ds2, next)
			return err == nil && got == want && RequiresReload(ds1, ds2, old, next) == want
		},
		source, source, field, field, field, field, field, field,
	))

	properties.TestingRun(t)
}

func TestWatchReportsReloadingChange(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	active := Snapshot{DataSource: Local}
	if err := s.SelectDataSource(Local); err != nil {
		t.Fatalf("select: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Snapshot, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, active, func(snap Snapshot) { got <- snap })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	if _, err := NewFileStore(dir).Save(GoogleSheets, Config{APIKey: "k", ClientID: "c"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case snap := <-got:
		if snap.DataSource != GoogleSheets {
			t.Fatalf("got %+v", snap)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}

func writeRaw(t *testing.T, s *FileStore, body string) {
	t.Helper()
	if err := os.WriteFile(s.Path(), []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCorruptConfigIsReported(t *testing.T) {
	s := NewFileStore(t.TempDir())
	writeRaw(t, s, `{"dataSource":"googleSheets","googleSheetsConfig":"{broken"}`)

	if _, err := Load(s); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("load: got %v, want ErrCorrupt", err)
	}
}

func TestSaveReplacesCorruptConfig(t *testing.T) {
	s := NewFileStore(t.TempDir())
	writeRaw(t, s, `{"dataSource":"googleSheets","googleSheetsConfig":"{broken"}`)

	cfg := Config{APIKey: "A", ClientID: "B", SpreadsheetID: "C"}
	reload, err := s.Save(GoogleSheets, cfg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !reload {
		t.Error("replacing an unreadable config should require reload")
	}
	snap, err := Load(s)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.DataSource != GoogleSheets || snap.Config != cfg {
		t.Fatalf("got %+v", snap)
	}
}

func TestResetClearsCorruptFile(t *testing.T) {
	for name, body := range map[string]string{
		"bad config": `{"dataSource":"local","googleSheetsConfig":"{broken"}`,
		"not json":   `{"dataSource":`,
	} {
		t.Run(name, func(t *testing.T) {
			s := NewFileStore(t.TempDir())
			writeRaw(t, s, body)

			if err := s.Reset(); err != nil {
				t.Fatalf("reset: %v", err)
			}
			snap, err := Load(s)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if snap != (Snapshot{}) {
				t.Fatalf("got %+v, want empty", snap)
			}
		})
	}
}
