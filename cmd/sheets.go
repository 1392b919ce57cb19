package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/roster/internal/auth"
	"github.com/marcus/roster/internal/backend/sheets"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/settings"
	"github.com/spf13/cobra"
)

var sheetsCmd = &cobra.Command{
	Use:     "sheets",
	Aliases: []string{"sheet"},
	Short:   "Pick the Google spreadsheet to use",
	GroupID: "setup",
}

// spreadsheetRows formats the picker rows, marking the active spreadsheet.
func spreadsheetRows(files []sheets.Spreadsheet, active string) [][]string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		mark := ""
		if f.ID == active {
			mark = "*"
		}
		rows = append(rows, []string{mark, f.Name, f.ID})
	}
	return rows
}

var sheetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spreadsheets in the signed-in Drive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := startRemote(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Auth.State() != auth.SignedIn {
			fmt.Fprintln(cmd.ErrOrStderr(), output.Guidance(a.Mode()))
			return auth.ErrSignedOut
		}

		search, _ := cmd.Flags().GetString("search")
		files, err := a.Auth.ListSpreadsheets(cmd.Context(), search)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(files)
		}
		if len(files) == 0 {
			if search != "" {
				fmt.Printf("No spreadsheets match %q\n", search)
			} else {
				fmt.Println("No spreadsheets found")
			}
			return nil
		}
		fmt.Println(output.Table([]string{"", "name", "id"}, spreadsheetRows(files, a.Active.Config.SpreadsheetID)))
		fmt.Println()
		fmt.Println("Select one with `roster sheets select ID`")
		return nil
	},
}

var sheetsSelectCmd = &cobra.Command{
	Use:   "select <spreadsheet-id>",
	Short: "Use a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(args[0])
		if id == "" {
			return fmt.Errorf("spreadsheet id required")
		}
		if err := requireSettingsAccess(cmd); err != nil {
			return err
		}
		store, err := settingsStore()
		if err != nil {
			return err
		}
		ds := settings.GoogleSheets
		reload, err := applyConfigSave(store, configChanges{DataSource: &ds, SpreadsheetID: &id}, false, confirm)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if reload {
			output.Success("Using spreadsheet %s", id)
		} else {
			fmt.Println("Spreadsheet already selected")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
	sheetsCmd.AddCommand(sheetsListCmd, sheetsSelectCmd)
	sheetsListCmd.Flags().StringP("search", "s", "", "Case-insensitive name filter")
	sheetsListCmd.Flags().Bool("json", false, "JSON output")
}
