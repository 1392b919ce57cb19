package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/app"
	"github.com/marcus/roster/internal/gate"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/settings"
	"github.com/spf13/cobra"
)

// statusReport is what `roster status` shows.
type statusReport struct {
	DataSource settings.DataSource `json:"dataSource"`
	Mode       string              `json:"mode"`
	CanManage  bool                `json:"canManage"`
	Admin      bool                `json:"admin"`
	Tabs       []admin.Tab         `json:"tabs"`
	Counts     map[string]int      `json:"counts,omitempty"`

	mode gate.Mode
}

func buildStatus(a *app.App, adminActive bool) statusReport {
	m := a.Mode()
	// admin mode is only offered where it could be entered
	adminActive = adminActive && m.CanManage()
	r := statusReport{
		DataSource: a.Active.DataSource,
		Mode:       m.String(),
		CanManage:  m.CanManage(),
		Admin:      adminActive,
		Tabs:       admin.Visible(adminActive),
		mode:       m,
	}
	if m.CanRender() {
		snap := a.Data.Snapshot()
		r.Counts = make(map[string]int, len(models.AllEntityTypes))
		for _, t := range models.AllEntityTypes {
			r.Counts[t.Collection()] = snap.Len(t)
		}
	}
	return r
}

func renderStatus(w io.Writer, r statusReport) {
	fmt.Fprintf(w, "Data source: %s\n", output.FormatDataSource(r.DataSource))
	fmt.Fprintf(w, "Mode:        %s\n", output.FormatMode(r.mode))
	if r.Admin {
		fmt.Fprintln(w, "Admin:       on")
	} else {
		fmt.Fprintln(w, "Admin:       off")
	}
	labels := make([]string, len(r.Tabs))
	for i, t := range r.Tabs {
		labels[i] = t.Label()
	}
	fmt.Fprintf(w, "Tabs:        %s\n", strings.Join(labels, ", "))

	if !r.mode.CanRender() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, output.Guidance(r.mode))
		return
	}
	fmt.Fprint(w, output.SectionHeader("records"))
	for _, t := range models.AllEntityTypes {
		fmt.Fprintf(w, "  %-10s %d\n", t.Collection(), r.Counts[t.Collection()])
	}
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show what roster needs next",
	GroupID: "setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := activate(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		if err := a.Open(cmd.Context()); err != nil {
			var nr *app.NotReadyError
			if !errors.As(err, &nr) {
				output.Error("%v", err)
				return err
			}
		}
		g, err := adminGate()
		if err != nil {
			return err
		}
		r := buildStatus(a, g.Active())
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(r)
		}
		renderStatus(cmd.OutOrStdout(), r)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "JSON output")
}
