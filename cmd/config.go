package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/settings"
	"github.com/spf13/cobra"
)

var errCancelled = errors.New("cancelled")

// confirmFunc matches confirm so tests can answer prompts.
type confirmFunc func(title, description string, yes bool) (bool, error)

// loadForEdit reads the stored settings for a command that rewrites them.
// An unreadable config is treated as empty so it can be replaced.
func loadForEdit(store settings.Store) (settings.Snapshot, error) {
	snap, err := settings.Load(store)
	if !errors.Is(err, settings.ErrCorrupt) {
		return snap, err
	}
	slog.Warn("discarding unreadable settings", "err", err)
	ds, _ := store.LoadDataSource()
	return settings.Snapshot{DataSource: ds}, nil
}

// applyUse selects a data source. The first selection needs no
// confirmation; switching an existing one shows the switch warning.
func applyUse(store settings.Store, to settings.DataSource, yes bool, ask confirmFunc) (bool, error) {
	snap, err := loadForEdit(store)
	if err != nil {
		return false, err
	}
	if snap.DataSource == to {
		return false, nil
	}
	if snap.DataSource == "" {
		return true, store.SelectDataSource(to)
	}
	if warning := settings.SwitchWarning(snap.DataSource, to); warning != "" {
		ok, err := ask("Switch data source?", warning, yes)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, errCancelled
		}
	}
	return store.Save(to, snap.Config)
}

// configChanges holds the flags given to `config save`; nil means unchanged.
type configChanges struct {
	DataSource    *settings.DataSource
	APIKey        *string
	ClientID      *string
	SpreadsheetID *string
}

// applyConfigSave merges changes into the stored settings and saves them.
func applyConfigSave(store settings.Store, ch configChanges, yes bool, ask confirmFunc) (bool, error) {
	snap, err := loadForEdit(store)
	if err != nil {
		return false, err
	}
	ds, cfg := snap.DataSource, snap.Config
	if ch.DataSource != nil {
		ds = *ch.DataSource
	}
	if ch.APIKey != nil {
		cfg.APIKey = *ch.APIKey
	}
	if ch.ClientID != nil {
		cfg.ClientID = *ch.ClientID
	}
	if ch.SpreadsheetID != nil {
		cfg.SpreadsheetID = *ch.SpreadsheetID
	}
	if ds == "" {
		ds = settings.GoogleSheets
	}
	if warning := settings.SwitchWarning(snap.DataSource, ds); warning != "" {
		ok, err := ask("Switch data source?", warning, yes)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, errCancelled
		}
	}
	return store.Save(ds, cfg)
}

const resetWarning = "All settings are erased and roster returns to the data source choice. " +
	"The saved API key and spreadsheet details are deleted."

var useCmd = &cobra.Command{
	Use:   "use <local|googleSheets>",
	Short: "Choose where data is stored",
	Long: `Choose the data source.

  googleSheets  data lives in a shared Google spreadsheet; needs an API key,
                an OAuth client id and a Google sign-in
  local         data lives in a database on this machine only`,
	Args:    cobra.ExactArgs(1),
	GroupID: "setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := settings.ParseDataSource(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := requireSettingsAccess(cmd); err != nil {
			return err
		}
		store, err := settingsStore()
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		changed, err := applyUse(store, ds, yes, confirm)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if !changed {
			fmt.Printf("Already using %s\n", output.FormatDataSource(ds))
			return nil
		}
		output.Success("Using %s", output.FormatDataSource(ds))
		fmt.Println("Run `roster status` for the next step.")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage roster settings",
	GroupID: "setup",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsStore()
		if err != nil {
			return err
		}
		snap, err := settings.Load(store)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(map[string]interface{}{
				"dataSource":    snap.DataSource,
				"apiKeySet":     snap.Config.APIKey != "",
				"clientId":      snap.Config.ClientID,
				"spreadsheetId": snap.Config.SpreadsheetID,
				"path":          store.Path(),
			})
		}
		fmt.Printf("Data source:    %s\n", output.FormatDataSource(snap.DataSource))
		fmt.Printf("API key:        %s\n", output.Mask(snap.Config.APIKey))
		fmt.Printf("Client id:      %s\n", snap.Config.ClientID)
		fmt.Printf("Spreadsheet id: %s\n", snap.Config.SpreadsheetID)
		fmt.Printf("Settings file:  %s\n", store.Path())
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the data source and Google Sheets connection",
	Example: `  roster config save --api-key AIza... --client-id 123.apps.googleusercontent.com
  roster config save --spreadsheet-id 1AbC...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var ch configChanges
		flags := cmd.Flags()
		if flags.Changed("data-source") {
			raw, _ := flags.GetString("data-source")
			ds, err := settings.ParseDataSource(raw)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			ch.DataSource = &ds
		}
		for name, dst := range map[string]**string{
			"api-key":        &ch.APIKey,
			"client-id":      &ch.ClientID,
			"spreadsheet-id": &ch.SpreadsheetID,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*dst = &v
			}
		}

		if err := requireSettingsAccess(cmd); err != nil {
			return err
		}
		store, err := settingsStore()
		if err != nil {
			return err
		}
		yes, _ := flags.GetBool("yes")
		reload, err := applyConfigSave(store, ch, yes, confirm)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if reload {
			output.Success("Settings saved; the next command connects with the new settings")
		} else {
			fmt.Println("Settings unchanged")
		}
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase all settings and return to the data source choice",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSettingsAccess(cmd); err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		ok, err := confirm("Reset all settings?", resetWarning, yes)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if !ok {
			fmt.Println("Cancelled")
			return nil
		}
		store, err := settingsStore()
		if err != nil {
			return err
		}
		if err := store.Reset(); err != nil {
			output.Error("%v", err)
			return err
		}
		if g, err := adminGate(); err == nil {
			g.Logout()
		}
		output.Success("Settings erased")
		return nil
	},
}

// requireSettingsAccess checks the admin gate when the dashboard is usable.
// Unreadable settings leave the dashboard unusable, so they stay open for
// repair.
func requireSettingsAccess(cmd *cobra.Command) error {
	a, err := activate(cmd)
	if errors.Is(err, settings.ErrCorrupt) {
		slog.Warn("settings unreadable; skipping admin check", "err", err)
		return nil
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}
	defer a.Close()
	if err := a.Start(cmd.Context()); err != nil {
		output.Error("%v", err)
		return err
	}
	if !settingsLocked(a.Mode()) {
		return nil
	}
	g, err := adminGate()
	if err != nil {
		return err
	}
	if g.Active() {
		return nil
	}
	err = fmt.Errorf("%w: settings", admin.ErrLocked)
	output.Error("%v (run `roster admin login`)", err)
	return err
}

func init() {
	rootCmd.AddCommand(useCmd)
	useCmd.Flags().BoolP("yes", "y", false, "Switch without asking")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSaveCmd, configResetCmd)
	configShowCmd.Flags().Bool("json", false, "JSON output")
	configSaveCmd.Flags().String("data-source", "", "local or googleSheets")
	configSaveCmd.Flags().String("api-key", "", "Google API key")
	configSaveCmd.Flags().String("client-id", "", "Google OAuth client id")
	configSaveCmd.Flags().String("spreadsheet-id", "", "Spreadsheet id")
	configSaveCmd.Flags().BoolP("yes", "y", false, "Switch data source without asking")
	configResetCmd.Flags().BoolP("yes", "y", false, "Reset without asking")
}
