package cmd

import (
	"fmt"

	"github.com/marcus/roster/internal/app"
	"github.com/marcus/roster/internal/auth"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/settings"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage the Google sign-in",
	GroupID: "setup",
}

// startRemote activates and initializes auth, failing unless the data source
// is Google Sheets and auth settled without a classified failure.
func startRemote(cmd *cobra.Command) (*app.App, error) {
	a, err := activate(cmd)
	if err != nil {
		output.Error("%v", err)
		return nil, err
	}
	if a.Active.DataSource != settings.GoogleSheets {
		a.Close()
		err := fmt.Errorf("sign-in applies to Google Sheets only (data source: %s)", output.FormatDataSource(a.Active.DataSource))
		output.Error("%v", err)
		return nil, err
	}
	if err := a.Start(cmd.Context()); err != nil {
		a.Close()
		output.Error("%v", err)
		return nil, err
	}
	if f := a.Auth.Failure(); f != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), output.Guidance(a.Mode()))
		a.Close()
		return nil, f
	}
	return a, nil
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a Google account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := startRemote(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Auth.State() == auth.SignedIn {
			fmt.Println("Already signed in")
			return nil
		}
		if err := a.Auth.SignIn(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), output.Guidance(a.Mode()))
			return err
		}
		output.Success("Signed in")
		if a.Active.Config.SpreadsheetID == "" {
			fmt.Println("Next: pick a spreadsheet with `roster sheets list`")
		}
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the cached token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := startRemote(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Auth.SignOut(cmd.Context()); err != nil {
			output.Error("%v", err)
			return err
		}
		// admin mode needs a signed-in session on Google Sheets
		if g, err := adminGate(); err == nil {
			g.Logout()
		}
		output.Success("Signed out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sign-in state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := activate(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()
		if err := a.Start(cmd.Context()); err != nil {
			output.Error("%v", err)
			return err
		}
		st := a.Auth.Status()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			result := map[string]interface{}{
				"state":          a.Auth.State().String(),
				"isInitializing": st.IsInitializing,
				"isSignedIn":     st.IsSignedIn,
			}
			if f := a.Auth.Failure(); f != nil {
				result["error"] = map[string]interface{}{
					"kind":    f.Kind.String(),
					"origin":  f.Origin,
					"message": f.Message,
				}
			}
			return output.JSON(result)
		}
		fmt.Printf("Data source: %s\n", output.FormatDataSource(a.Active.DataSource))
		fmt.Printf("Auth state:  %s\n", a.Auth.State())
		if f := a.Auth.Failure(); f != nil {
			fmt.Println()
			fmt.Println(output.Guidance(a.Mode()))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	authStatusCmd.Flags().Bool("json", false, "JSON output")
}
